package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fyerfyer/doc-annotator/internal/annotate"
	"github.com/fyerfyer/doc-annotator/internal/review"
)

var (
	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00AA00"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0000"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Width(12)
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult 输出一次标注的结果
func (a *app) printResult(r *annotate.Result) error {
	if a.flags.jsonOutput {
		return writeJSON(a.out, r)
	}

	fmt.Fprintln(a.out, okStyle.Render(fmt.Sprintf("Added %d annotations to %s document", r.Placed, r.Kind)))
	fmt.Fprintln(a.out, labelStyle.Render("Output")+r.Output)
	fmt.Fprintln(a.out, labelStyle.Render("Sections")+fmt.Sprintf("%d (%d considered, %d with line references)", r.Sections, r.Considered, r.Comments))
	if r.Shapes != r.Placed {
		fmt.Fprintln(a.out, labelStyle.Render("Shapes")+fmt.Sprintf("%d", r.Shapes))
	}
	for _, s := range r.Skipped {
		fmt.Fprintln(a.out, warnStyle.Render(fmt.Sprintf("  skipped comment %d (lines %s): %s", s.Comment, joinInts(s.Lines), s.Reason)))
	}
	return nil
}

// printBatch 输出解析出的评论
func (a *app) printBatch(b review.Batch) error {
	if a.flags.jsonOutput {
		return writeJSON(a.out, b)
	}

	fmt.Fprintln(a.out, labelStyle.Render("Sections")+fmt.Sprintf("%d (%d considered)", b.Total, b.Considered))
	fmt.Fprintln(a.out, labelStyle.Render("Comments")+fmt.Sprintf("%d", len(b.Comments)))
	for i, c := range b.Comments {
		fmt.Fprintln(a.out, okStyle.Render(fmt.Sprintf("[%d] lines %s", i, joinInts(c.Lines))))
		for _, line := range strings.Split(c.Text, "\n") {
			fmt.Fprintln(a.out, dimStyle.Render("    "+line))
		}
	}
	return nil
}

// printBatchReport 输出批量标注的汇总
func (a *app) printBatchReport(items []batchItem) error {
	if a.flags.jsonOutput {
		return writeJSON(a.out, items)
	}

	var placed, failed, skipped int
	for _, it := range items {
		switch {
		case it.Error != "":
			failed++
			fmt.Fprintln(a.out, errorStyle.Render("✗ "+it.Source)+dimStyle.Render(" "+it.Error))
		case it.Result == nil:
			skipped++
			fmt.Fprintln(a.out, warnStyle.Render("- "+it.Source)+dimStyle.Render(" "+it.Note))
		default:
			placed += it.Result.Placed
			fmt.Fprintln(a.out, okStyle.Render("✓ "+it.Source)+
				dimStyle.Render(fmt.Sprintf(" %d placed, %d skipped -> %s", it.Result.Placed, len(it.Result.Skipped), it.Result.Output)))
		}
	}
	fmt.Fprintln(a.out, labelStyle.Render("Documents")+
		fmt.Sprintf("%d (%d failed, %d without comments)", len(items), failed, skipped))
	fmt.Fprintln(a.out, labelStyle.Render("Placed")+fmt.Sprintf("%d", placed))
	return nil
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ",")
}
