package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/hubenschmidt/support-crew/gateway/internal/pipeline"
	"github.com/hubenschmidt/support-crew/gateway/internal/present"
)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF")).
			MarginBottom(1)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0A020")).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#F0A020")).
			PaddingLeft(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#FF6B6B")).
			PaddingLeft(1)

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// formatView renders a view for the terminal. The success body is printed
// as is so the response text stays unmodified.
func formatView(v present.View) string {
	switch v.Kind {
	case present.KindSuccess:
		return headingStyle.Render(v.Title) + "\n" + v.Body
	case present.KindWarning:
		return warningStyle.Render(v.Body)
	default:
		return errorStyle.Render(v.Body)
	}
}

func statusLine(ev pipeline.Event) string {
	switch ev.Type {
	case "stage_started":
		return dimStyle.Render(fmt.Sprintf("… %s", ev.Stage))
	case "stage_done":
		return dimStyle.Render(fmt.Sprintf("✓ %s (%.0f ms)", ev.Stage, ev.LatencyMs))
	case "stage_failed":
		return errorStyle.Render(fmt.Sprintf("✗ %s", ev.Stage))
	default:
		return dimStyle.Render(ev.Type)
	}
}
