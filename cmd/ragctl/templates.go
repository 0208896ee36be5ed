package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	ghclient "github.com/bull/futurenest-rag/internal/github"
	"github.com/bull/futurenest-rag/internal/indexer"
	"github.com/bull/futurenest-rag/internal/templates"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage statute reference templates",
}

var listOutline bool

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered templates",
	Args:  cobra.NoArgs,
	RunE:  runTemplatesList,
}

var templatesIngestCmd = &cobra.Command{
	Use:   "ingest [template-id]...",
	Short: "Index templates (all of them when no id is given)",
	RunE:  runTemplatesIngest,
}

var (
	syncRepo   string
	syncPath   string
	syncRef    string
	syncIngest bool
)

var templatesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download template files from GitHub",
	Long: `Mirrors .txt, .md and .pdf files from a GitHub repository directory into
the templates directory. Files whose content is unchanged are skipped.

Environment variables:
  GITHUB_TOKEN   GitHub token for higher rate limits (optional)
  TEMPLATES_DIR  Destination directory (default: templates)`,
	Args: cobra.NoArgs,
	RunE: runTemplatesSync,
}

func init() {
	templatesListCmd.Flags().BoolVar(&listOutline, "outline", false, "print the heading outline of markdown templates")
	templatesSyncCmd.Flags().StringVar(&syncRepo, "repo", "", "source repository as owner/name")
	templatesSyncCmd.Flags().StringVar(&syncPath, "path", "", "directory inside the repository")
	templatesSyncCmd.Flags().StringVar(&syncRef, "ref", "", "branch, tag or commit (default from config)")
	templatesSyncCmd.Flags().BoolVar(&syncIngest, "ingest", false, "index all templates after syncing")

	templatesCmd.AddCommand(templatesListCmd, templatesIngestCmd, templatesSyncCmd)
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := templates.NewRegistry(cfg.Templates.Dir, templates.Defaults)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tFILE\tDESCRIPTION")
	for _, m := range reg.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Title, m.Filename, m.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !listOutline {
		return nil
	}
	out := cmd.OutOrStdout()
	for _, m := range reg.List() {
		outline, err := reg.Outline(m.ID)
		if err != nil {
			fmt.Fprintf(out, "\n%s: %v\n", m.ID, err)
			continue
		}
		if len(outline) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s:\n", m.ID)
		for _, h := range outline {
			fmt.Fprintf(out, "  %s\n", h)
		}
	}
	return nil
}

func runTemplatesIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var report *indexer.Report
	if len(args) == 0 {
		bar := newProgress(len(a.Service.Templates()), "templates")
		report = a.Service.IngestAllTemplates(ctx, reporter(bar))
		finish(bar)
	} else {
		report = &indexer.Report{}
		for _, id := range args {
			chunks, upserts, err := a.Service.IngestTemplate(ctx, id)
			r := indexer.Result{DocumentID: id, Chunks: chunks, Upserts: upserts}
			if err != nil {
				r.Error = err.Error()
				report.Failed++
			} else {
				r.OK = true
				report.Succeeded++
				report.TotalChunks += chunks
			}
			report.Results = append(report.Results, r)
		}
	}

	printReport(cmd, report)
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d templates failed", report.Failed, len(report.Results))
	}
	return nil
}

func runTemplatesSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	src := cfg.Templates.Source
	if syncRepo != "" {
		owner, repo, ok := strings.Cut(syncRepo, "/")
		if !ok || owner == "" || repo == "" {
			return fmt.Errorf("--repo must be owner/name, got %q", syncRepo)
		}
		src.Owner, src.Repo = owner, repo
	}
	if syncPath != "" {
		src.Path = syncPath
	}
	if syncRef != "" {
		src.Ref = syncRef
	}
	if src.Owner == "" || src.Repo == "" {
		return fmt.Errorf("no template source: pass --repo or set templates.source in the config file")
	}

	client, err := ghclient.NewClient(src.Token, "")
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}
	fetcher := ghclient.NewFetcher(client, src.Owner, src.Repo, src.Path, src.Ref, logger)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Syncing %s/%s/%s@%s into %s...\n", src.Owner, src.Repo, src.Path, src.Ref, cfg.Templates.Dir)
	report, err := fetcher.Sync(ctx, cfg.Templates.Dir)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if sha, err := fetcher.LatestCommitSHA(ctx); err == nil {
		fmt.Fprintf(out, "  Commit: %s\n", sha)
	}
	fmt.Fprintf(out, "  Written: %d\n", len(report.Written))
	fmt.Fprintf(out, "  Unchanged: %d\n", len(report.Unchanged))
	for _, p := range report.Failed {
		fmt.Fprintf(out, "  - failed: %s\n", p)
	}

	if syncIngest {
		return runTemplatesIngest(cmd, nil)
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d files failed to sync", len(report.Failed))
	}
	return nil
}
