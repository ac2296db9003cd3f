package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"codebrew/internal/review"
	"codebrew/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	codeStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func renderSuggestion(s review.Suggestion) string {
	var lines []string
	lines = append(lines, titleStyle.Render(s.Issue))

	location := s.FilePath
	if s.RepoName != "" {
		location = s.RepoName + ":" + location
	}
	if s.HasLineRange() {
		location += fmt.Sprintf(" (lines %d-%d)", s.StartLine, s.EndLine)
	}
	if location != "" {
		lines = append(lines, mutedStyle.Render(location))
	}

	lines = append(lines,
		"",
		labelStyle.Render("Before"),
		codeStyle.Render(s.OldCode),
		labelStyle.Render("After"),
		codeStyle.Render(s.NewCode),
		labelStyle.Render("Benefit: ")+s.Benefit.String(),
		labelStyle.Render("Commit:  ")+s.CommitMessage,
	)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderFailure prints the diagnostic an operator needs, including the raw
// model output when the pipeline got that far.
func renderFailure(label string, err error) string {
	out := errStyle.Render(fmt.Sprintf("✗ %s: %v", label, err))
	if raw := review.RawResponse(err); raw != "" {
		out += "\n" + labelStyle.Render("Raw model output:") + "\n" + mutedStyle.Render(raw)
	}
	return out
}

func renderOK(msg string) string {
	return okStyle.Render("✓ " + msg)
}

func renderTotals(t store.Totals, recent []store.Entry) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Optimization analytics") + "\n")
	fmt.Fprintf(&sb, "%s %d\n", labelStyle.Render("Total lines optimized:"), t.LinesOptimized)
	fmt.Fprintf(&sb, "%s %d\n", labelStyle.Render("Unused lines removed: "), t.UnusedLinesRemoved)
	fmt.Fprintf(&sb, "%s %d\n", labelStyle.Render("Total optimizations:  "), t.Entries)
	fmt.Fprintf(&sb, "%s %d\n", labelStyle.Render("Repositories:         "), t.Repos)

	if len(recent) > 0 {
		sb.WriteString("\n" + labelStyle.Render("Recent") + "\n")
		for _, e := range recent {
			fmt.Fprintf(&sb, "  %s  %s  %s\n",
				mutedStyle.Render(e.Date.Format("2006-01-02")),
				e.Repo+"/"+e.FilePath,
				e.CommitMessage)
		}
	}
	return sb.String()
}
