// Package clean implements the dataset cleaning operations: missing-value
// handling, duplicate removal, outlier treatment, string normalization,
// find/replace, and email validation.
//
// Every operation receives a table it may own outright (callers pass a
// copy), mutates or rebuilds it, and returns the result together with an
// affected-count for user feedback. Operations never log history
// themselves; the service layer installs the result and records the change.
package clean

import (
	"errors"
	"fmt"

	"github.com/tidytable/tidytable/table"
)

// ErrBadMethod is returned for an unrecognized method or action name.
var ErrBadMethod = errors.New("clean: invalid method")

// ErrUnknownColumn is returned when a requested column does not exist.
var ErrUnknownColumn = errors.New("clean: unknown column")

// columnFilter selects which columns qualify when the caller names none.
type columnFilter func(table.Column) bool

func anyColumn(table.Column) bool { return true }

func numericColumn(c table.Column) bool { return table.IsNumericType(c.Type) }

func stringColumn(c table.Column) bool { return c.Type == table.TypeString }

// targetColumns resolves requested column names to indices. An empty
// request selects every column passing the filter. Explicit names must
// exist; named columns that fail the filter are skipped silently, matching
// the tolerant behavior users expect from bulk cleaning.
func targetColumns(t *table.Table, requested []string, filter columnFilter) ([]int, error) {
	if len(requested) == 0 {
		var idx []int
		for i, c := range t.Columns {
			if filter(c) {
				idx = append(idx, i)
			}
		}
		return idx, nil
	}
	var idx []int
	for _, name := range requested {
		i := t.ColumnIndex(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		if filter(t.Columns[i]) {
			idx = append(idx, i)
		}
	}
	return idx, nil
}
