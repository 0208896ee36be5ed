package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bull/futurenest-rag/internal/rag"
)

var diagnoseJSON bool

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Check the embedding provider, generator and index",
	Args:  cobra.NoArgs,
	RunE:  runDiagnose,
}

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop every indexed record",
	Long: `Drops the vector collection or table and recreates it empty with the
current embedding dimension. Documents must be ingested again afterwards.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	diagnoseCmd.Flags().BoolVar(&diagnoseJSON, "json", false, "print the report as JSON")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "do not ask for confirmation")
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	d := a.Service.Diagnose(ctx)
	out := cmd.OutOrStdout()
	if diagnoseJSON {
		return printJSON(out, d)
	}

	fmt.Fprintf(out, "Status: %s\n", d.Status)
	fmt.Fprintf(out, "  Embedding: %s %s (dim %d)\n", d.Embedding.Kind, d.Embedding.Model, d.Embedding.Dimension)
	fmt.Fprintf(out, "  Generator: %s %s\n", d.Generator.Provider, d.Generator.Model)
	fmt.Fprintf(out, "  Index: %s %s, %d records\n", d.Index.Backend, d.Index.Status, d.Index.Records)
	fmt.Fprintf(out, "  Templates: %d\n", d.Templates)
	for i, issue := range d.Issues {
		fmt.Fprintf(out, "\n  ! %s\n", issue)
		if i < len(d.Recommendations) {
			fmt.Fprintf(out, "    -> %s\n", d.Recommendations[i])
		}
	}

	if d.Status == rag.StatusError {
		return fmt.Errorf("service is not operational")
	}
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !resetYes {
		fmt.Fprint(cmd.OutOrStdout(), "This deletes every indexed record. Continue? [y/N] ")
		var answer string
		fmt.Fscanln(cmd.InOrStdin(), &answer)
		if answer != "y" && answer != "Y" && answer != "yes" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Index.Reset(ctx); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Index cleared.")
	return nil
}
