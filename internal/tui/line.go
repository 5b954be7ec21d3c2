package tui

import (
	"fmt"
	"io"

	"jpegfit/internal/batch"
)

// LineRenderer redraws a single progress line in place with a carriage
// return. It is the plain fallback when stdout is not a terminal.
type LineRenderer struct {
	w     io.Writer
	width int
}

func NewLineRenderer(w io.Writer) *LineRenderer {
	return &LineRenderer{w: w, width: defaultBarWidth}
}

// Run consumes updates until the channel is closed. It must be the only
// writer to w while running.
func (r *LineRenderer) Run(updates <-chan batch.ProgressUpdate) {
	total, completed := 0, 0
	drawn := false
	for u := range updates {
		total += u.TotalDelta
		completed += u.CompletedDelta
		if u.CompletedDelta == 0 && drawn {
			continue
		}
		fmt.Fprintf(r.w, "\r%s %d/%d", RenderBar(r.width, completed, total), completed, total)
		drawn = true
	}
	if drawn {
		fmt.Fprintln(r.w)
	}
}
