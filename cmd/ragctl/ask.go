package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bull/futurenest-rag/internal/rag"
)

var (
	askTopK   int
	askDocs   []string
	askInline bool
	askJSON   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "passages to retrieve (default 5)")
	askCmd.Flags().StringSliceVar(&askDocs, "doc", nil, "restrict retrieval to these document ids")
	askCmd.Flags().BoolVar(&askInline, "inline", false, "keep [n] citation markers")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the response as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := rag.Request{
		Message:     strings.Join(args, " "),
		TopK:        askTopK,
		DocumentIDs: askDocs,
	}
	if cmd.Flags().Changed("inline") {
		req.InlineCitations = &askInline
	}

	resp, err := a.Service.Answer(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if askJSON {
		return printJSON(out, resp)
	}

	fmt.Fprintln(out, resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for i, s := range resp.Sources {
			label := s.ID
			if s.ArticleReference != "" {
				label = s.ArticleReference + " (" + s.ID + ")"
			}
			fmt.Fprintf(out, "  [%d] %s  score=%.3f\n", i+1, label, s.Score)
		}
	}
	return nil
}
