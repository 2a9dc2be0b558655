package console

import (
	"fmt"
	"strings"

	"github.com/DachengChen/nlsql/api"
)

// SummaryRowLimit caps how many result rows are sent for summarization.
const SummaryRowLimit = 20

// SummarizeResult renders a result set as the pipe-delimited text table
// the chat endpoint expects: a count line, header, "---" separator row,
// at most SummaryRowLimit rows and a trailer naming the omitted rows.
func SummarizeResult(rs *api.ResultSet) string {
	if rs == nil || len(rs.Rows) == 0 {
		return "The query returned no rows."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query result (%d rows in total):\n\n", len(rs.Rows))
	b.WriteString(strings.Join(rs.Columns, " | "))
	b.WriteByte('\n')

	sep := make([]string, len(rs.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString(strings.Join(sep, " | "))
	b.WriteByte('\n')

	shown := rs.Rows
	if len(shown) > SummaryRowLimit {
		shown = shown[:SummaryRowLimit]
	}
	cells := make([]string, len(rs.Columns))
	for _, row := range shown {
		for i, col := range rs.Columns {
			cells[i] = api.FormatValue(row[col])
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteByte('\n')
	}

	if omitted := len(rs.Rows) - len(shown); omitted > 0 {
		fmt.Fprintf(&b, "\n... %d more rows not shown", omitted)
	}
	return b.String()
}
