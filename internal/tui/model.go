package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"jpegfit/internal/batch"
)

const defaultBarWidth = 50

type Model struct {
	updates   <-chan batch.ProgressUpdate
	started   time.Time
	width     int
	total     int
	completed int
	failed    int
	last      string
	quitting  bool
}

type doneMsg struct{}

type updateMsg batch.ProgressUpdate

func NewModel(updates <-chan batch.ProgressUpdate) Model {
	return Model{updates: updates, started: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.total += msg.TotalDelta
		m.completed += msg.CompletedDelta
		m.failed += msg.FailedDelta
		if msg.Name != "" {
			m.last = msg.Name
		}
		return m, listenForUpdates(m.updates)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := defaultBarWidth
	if m.width > 0 {
		barWidth = int(math.Min(defaultBarWidth, float64(m.width-20)))
		if barWidth < 10 {
			barWidth = 10
		}
	}

	bar := RenderBar(barWidth, m.completed, m.total)
	elapsed := time.Since(m.started).Round(time.Millisecond)

	lines := []string{
		titleStyle.Render("Converting..."),
		barStyle.Render(bar) + labelStyle.Render(fmt.Sprintf(" %d/%d", m.completed, m.total)),
	}
	status := dimStyle.Render(fmt.Sprintf("elapsed %s", elapsed))
	if m.failed > 0 {
		status += "  " + errorStyle.Render(fmt.Sprintf("failed:%d", m.failed))
	}
	lines = append(lines, status)
	if m.last != "" {
		lines = append(lines, dimStyle.Render("last: "+m.last))
	}

	return strings.Join(lines, "\n")
}

func listenForUpdates(updates <-chan batch.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

// RenderBar draws an ASCII bar like "[=====     ]" for completed of total.
func RenderBar(width, completed, total int) string {
	ratio := 0.0
	if total > 0 {
		ratio = float64(completed) / float64(total)
	}
	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle   = lipgloss.NewStyle().Foreground(ColorSuccess)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
	errorStyle = lipgloss.NewStyle().Foreground(ColorError)
)
