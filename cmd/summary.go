package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/choiway/photomerge/catalog"
	"github.com/choiway/photomerge/processor"
)

type theme struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Warn     lipgloss.Style
	Card     lipgloss.Style
}

func defaultTheme() theme {
	return theme{
		Title:    lipgloss.NewStyle().Bold(true),
		Subtitle: lipgloss.NewStyle().Faint(true),
		Warn:     lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		Card: lipgloss.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")),
	}
}

// maxListed caps the per-file lines in a report.
const maxListed = 50

func renderReport(r *processor.Report) string {
	th := defaultTheme()

	title := "Merge summary"
	if r.DryRun {
		title += " (dry run)"
	}

	var b strings.Builder
	b.WriteString(th.Title.Render(title))
	b.WriteString("\n")
	if r.Target != "" {
		b.WriteString(th.Subtitle.Render(r.Target))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Copied:     %d\n", len(r.Collected))
	fmt.Fprintf(&b, "Duplicates: %d\n", len(r.Duplicates))
	fmt.Fprintf(&b, "Renamed:    %d\n", len(r.Renamed))
	fmt.Fprintf(&b, "Failures:   %d\n", len(r.Failures))
	if r.Elapsed > 0 {
		fmt.Fprintf(&b, "Elapsed:    %s\n", r.Elapsed.Round(time.Millisecond))
	}

	if len(r.Renamed) > 0 {
		b.WriteString("\n")
		for i, p := range r.Renamed {
			if i == maxListed {
				b.WriteString(th.Subtitle.Render(fmt.Sprintf("... and %d more", len(r.Renamed)-maxListed)))
				b.WriteString("\n")
				break
			}
			from := filepath.Base(p.Path)
			if from == "" || from == "." {
				from = filepath.Base(p.SourcePath)
			}
			fmt.Fprintf(&b, "%s -> %s %s\n", from, filepath.Base(p.FinalPath), th.Subtitle.Render("("+string(p.DateSource)+")"))
		}
	}

	if len(r.Failures) > 0 {
		b.WriteString("\n")
		for _, f := range r.Failures {
			b.WriteString(th.Warn.Render(fmt.Sprintf("%s: %v", f.Path, f.Err)))
			b.WriteString("\n")
		}
	}

	return th.Card.Render(strings.TrimRight(b.String(), "\n"))
}

func renderRuns(runs []catalog.Run) string {
	th := defaultTheme()

	if len(runs) == 0 {
		return th.Subtitle.Render("No runs recorded yet.")
	}

	var b strings.Builder
	b.WriteString(th.Title.Render("Recent runs"))
	b.WriteString("\n\n")
	for _, r := range runs {
		status := r.Status
		if status != catalog.RunCompleted {
			status = th.Warn.Render(status)
		}
		fmt.Fprintf(&b, "%s  %-9s  %4d photos  %s\n",
			r.InsertedAt.Local().Format("2006-01-02 15:04:05"), status, r.Photos, r.Target)
	}

	return th.Card.Render(strings.TrimRight(b.String(), "\n"))
}
