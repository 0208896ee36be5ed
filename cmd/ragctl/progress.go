package main

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/bull/futurenest-rag/internal/indexer"
)

// newProgress returns a progress bar on stderr, or nil when stderr is not a
// terminal or there is nothing to count.
func newProgress(total int, desc string) *progressbar.ProgressBar {
	if total <= 0 || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// reporter adapts an optional bar to indexer.ProgressReporter.
func reporter(bar *progressbar.ProgressBar) indexer.ProgressReporter {
	if bar == nil {
		return nil
	}
	return bar
}

func finish(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}
