package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"toolsmith/internal/autopoiesis"
	"toolsmith/internal/store"
)

var (
	success = lipgloss.Color("#8BC34A")
	warning = lipgloss.Color("#FFC107")
	muted   = lipgloss.Color("#6B7280")
	primary = lipgloss.Color("#2196F3")

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Foreground(muted).Width(12)
	valueStyle = lipgloss.NewStyle().Bold(true)
	traceStyle = lipgloss.NewStyle().Foreground(primary)
	logStyle   = lipgloss.NewStyle().Foreground(muted).PaddingLeft(2)
)

func outcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case "converged":
		return valueStyle.Foreground(success)
	case "exhausted":
		return valueStyle.Foreground(warning)
	default:
		return valueStyle
	}
}

func row(label, value string, style lipgloss.Style) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), style.Render(value))
}

// renderSummary describes a finished Iterate run.
func renderSummary(result *autopoiesis.IterationResult, path, runID string) string {
	outcome := result.Outcome.String()
	rows := []string{
		row("tool", fmt.Sprintf("%s (%s)", result.Tool.Name, result.Tool.Slug), valueStyle),
		row("outcome", outcome, outcomeStyle(outcome)),
		row("iterations", fmt.Sprintf("%d", result.Iterations), valueStyle),
		row("duration", result.Duration.Round(1e6).String(), valueStyle),
	}
	if path != "" {
		rows = append(rows, row("output", path, valueStyle))
	}
	if runID != "" {
		rows = append(rows, row("run", runID, valueStyle))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderRuns lists journal runs, one per line.
func renderRuns(runs []store.Run) string {
	if len(runs) == 0 {
		return "No runs recorded."
	}
	var sb strings.Builder
	for _, r := range runs {
		outcome := r.Outcome
		if outcome == "" {
			outcome = "running"
		}
		fmt.Fprintf(&sb, "%s  %s  %s  %d iteration(s)  %s\n",
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			outcomeStyle(outcome).Render(fmt.Sprintf("%-9s", outcome)),
			r.Iterations,
			r.Slug)
	}
	return strings.TrimRight(sb.String(), "\n")
}
