package clean

import (
	"fmt"
	"strings"

	"github.com/tidytable/tidytable/table"
)

// Dedupe removes duplicate rows, keeping the first occurrence. An empty
// column list compares entire rows; otherwise only the named subset.
// Returns the deduplicated table and the number of rows removed.
func Dedupe(t *table.Table, columns []string) (*table.Table, int, error) {
	cols, err := targetColumns(t, columns, anyColumn)
	if err != nil {
		return nil, 0, err
	}

	seen := make(map[string]bool, t.NumRows())
	drop := make([]bool, t.NumRows())
	removed := 0
	for r, row := range t.Rows {
		key := rowKey(row, cols)
		if seen[key] {
			drop[r] = true
			removed++
			continue
		}
		seen[key] = true
	}
	return t.DropRows(drop), removed, nil
}

// rowKey fingerprints the selected cells. The type tag keeps int64(1) and
// "1" from colliding.
func rowKey(row []any, cols []int) string {
	var b strings.Builder
	for _, c := range cols {
		fmt.Fprintf(&b, "%T\x00%v\x00", row[c], row[c])
	}
	return b.String()
}
