package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/idguard/internal/extract"
)

// BatchProgress draws a progress bar for one batched extraction.
// Its Observe method is meant to be passed as extract.Options.Observer.
type BatchProgress struct {
	writer  io.Writer
	bar     *progressbar.ProgressBar
	label   string
	skipped int
}

// NewBatchProgress creates a progress reporter. The bar is sized on the first outcome.
func NewBatchProgress(writer io.Writer, label string) *BatchProgress {
	if writer == nil {
		writer = os.Stderr
	}
	return &BatchProgress{writer: writer, label: label}
}

// Observe records one batch outcome.
func (p *BatchProgress) Observe(o extract.BatchOutcome) {
	if p.bar == nil {
		p.init(o.Total)
	}
	if o.Err != nil {
		p.skipped++
		p.bar.Describe(fmt.Sprintf("[cyan][bold]Extracting %s[reset] [yellow](%d skipped)[reset]", p.label, p.skipped))
	}
	if err := p.bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Skipped returns how many batches failed so far.
func (p *BatchProgress) Skipped() int {
	return p.skipped
}

func (p *BatchProgress) init(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan][bold]Extracting %s[reset]", p.label)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
