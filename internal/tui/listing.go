package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"jpegfit/internal/batch"
)

// RenderListing prints the folder header and one "- name" line per file.
func RenderListing(entries int, files []string) string {
	lines := []string{headerStyle.Render(fmt.Sprintf("Contents of folder (%d files):", entries))}
	for _, f := range files {
		lines = append(lines, bulletStyle.Render("- ")+fileStyle.Render(filepath.Base(f)))
	}
	return strings.Join(lines, "\n")
}

// RenderFailures lists failed files with their reason.
func RenderFailures(failed []batch.Result) string {
	lines := []string{errorStyle.Render(fmt.Sprintf("%d file(s) failed:", len(failed)))}
	for _, res := range failed {
		lines = append(lines, fmt.Sprintf("  %s %s: %s",
			bulletStyle.Render("-"),
			fileStyle.Render(res.Name),
			dimStyle.Render(res.Err.Error()),
		))
	}
	return strings.Join(lines, "\n")
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	noticeStyle = lipgloss.NewStyle().Foreground(ColorWarn)
	fileStyle   = lipgloss.NewStyle().Foreground(ColorInk)
	bulletStyle = lipgloss.NewStyle().Foreground(ColorDim)
)

// RenderNotice styles a one-line warning.
func RenderNotice(msg string) string {
	return noticeStyle.Render(msg)
}
