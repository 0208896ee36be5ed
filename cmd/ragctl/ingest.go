package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/bull/futurenest-rag/internal/indexer"
	"github.com/bull/futurenest-rag/internal/templates"
)

var (
	ingestID   string
	ingestJSON bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <pattern>...",
	Short: "Index text, markdown or PDF files",
	Long: `Chunks, embeds and indexes the files matched by the given patterns.

Patterns support ** for recursive matching, e.g. 'docs/**/*.md'. Each file
is indexed under its base name without extension unless --id is given for a
single file. Re-ingesting a document id replaces its previous chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "document id (only with a single file)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the report as JSON")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	paths, err := expandPatterns(args)
	if err != nil {
		return err
	}
	if ingestID != "" && len(paths) != 1 {
		return fmt.Errorf("--id needs exactly one file, patterns matched %d", len(paths))
	}

	docs := make([]indexer.Document, 0, len(paths))
	for _, p := range paths {
		text, err := templates.ReadText(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		id := ingestID
		if id == "" {
			id = documentID(p)
		}
		docs = append(docs, indexer.Document{ID: id, Text: text})
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	bar := newProgress(len(docs), "ingesting")
	report := a.Service.IngestBatch(ctx, docs, reporter(bar))
	finish(bar)

	out := cmd.OutOrStdout()
	if ingestJSON {
		return printJSON(out, report)
	}
	printReport(cmd, report)
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", report.Failed, len(report.Results))
	}
	return nil
}

func printReport(cmd *cobra.Command, report *indexer.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Ingest complete!")
	fmt.Fprintf(out, "  Documents: %d/%d\n", report.Succeeded, len(report.Results))
	fmt.Fprintf(out, "  Chunks: %d\n", report.TotalChunks)
	fmt.Fprintf(out, "  Duration: %s\n", report.Duration.Round(time.Millisecond))

	if report.Failed > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed documents:")
		for _, r := range report.Results {
			if !r.OK {
				fmt.Fprintf(out, "  - %s: %s\n", r.DocumentID, r.Error)
			}
		}
	}
}

// expandPatterns resolves glob patterns to regular files, keeping first-seen
// order. A pattern that matches nothing is an error.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	return paths, nil
}

// documentID derives a document id from a file name. Characters document ids
// may not contain are replaced with underscores.
func documentID(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.Map(func(r rune) rune {
		if r == ':' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, stem)
}
