package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/DachengChen/nlsql/api"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// maxCellWidth caps a column so one long value cannot push the rest
// off screen.
const maxCellWidth = 40

// formatResult renders a result set as an aligned grid.
func formatResult(rs *api.ResultSet) []string {
	if rs == nil || len(rs.Columns) == 0 {
		return []string{StyleDimmed.Render("(no rows)")}
	}

	widths := make([]int, len(rs.Columns))
	cells := make([][]string, len(rs.Rows))
	for i, col := range rs.Columns {
		widths[i] = lipgloss.Width(col)
	}
	for r := range rs.Rows {
		cells[r] = make([]string, len(rs.Columns))
		for i, col := range rs.Columns {
			c := strings.ReplaceAll(rs.Cell(r, col), "\n", " ")
			cells[r][i] = c
			if w := lipgloss.Width(c); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		if widths[i] > maxCellWidth {
			widths[i] = maxCellWidth
		}
	}

	row := func(values []string) string {
		parts := make([]string, len(values))
		for i, val := range values {
			val = ansi.Truncate(val, widths[i], "…")
			parts[i] = " " + val + strings.Repeat(" ", widths[i]-lipgloss.Width(val))
		}
		return strings.Join(parts, " │")
	}
	seps := make([]string, len(widths))
	for i, w := range widths {
		seps[i] = strings.Repeat("─", w+1)
	}

	lines := []string{
		StyleSuccess.Render(row(rs.Columns)),
		StyleDimmed.Render(strings.Join(seps, "─┼")),
	}
	for r := range cells {
		lines = append(lines, row(cells[r]))
	}
	lines = append(lines, "", StyleDimmed.Render(rowCount(len(rs.Rows), rs.TotalRows)))
	return lines
}

func rowCount(shown, total int) string {
	if total > shown {
		return fmt.Sprintf("(%d of %d rows)", shown, total)
	}
	return fmt.Sprintf("(%d row%s)", shown, plural(shown))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// formatSize renders a byte count the way file managers do.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}

// wrapText hard-wraps s to width for panes that do not scroll sideways.
func wrapText(s string, width int) []string {
	if width <= 0 {
		return strings.Split(s, "\n")
	}
	return strings.Split(ansi.Wordwrap(s, width, ""), "\n")
}

func truncate(s string, width int) string {
	return ansi.Truncate(s, width, "…")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func itoa(n int) string { return strconv.Itoa(n) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
