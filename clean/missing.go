package clean

import (
	"fmt"
	"sort"

	"github.com/tidytable/tidytable/table"
)

// Missing-value methods.
const (
	MissingRemove       = "remove"
	MissingFillMean     = "fill_mean"
	MissingFillMedian   = "fill_median"
	MissingFillValue    = "fill_value"
	MissingForwardFill  = "forward_fill"
	MissingBackwardFill = "backward_fill"
)

// MissingOptions configures Missing.
type MissingOptions struct {
	Method    string
	Columns   []string // empty = all applicable columns
	FillValue any      // only for MissingFillValue
}

// Missing handles missing cells per the chosen method and returns the
// resulting table and the number of rows or cells affected.
func Missing(t *table.Table, opts MissingOptions) (*table.Table, int, error) {
	switch opts.Method {
	case MissingRemove:
		cols, err := targetColumns(t, opts.Columns, anyColumn)
		if err != nil {
			return nil, 0, err
		}
		drop := make([]bool, t.NumRows())
		affected := 0
		for r, row := range t.Rows {
			for _, c := range cols {
				if table.IsMissing(row[c]) {
					drop[r] = true
					affected++
					break
				}
			}
		}
		return t.DropRows(drop), affected, nil

	case MissingFillMean, MissingFillMedian:
		cols, err := targetColumns(t, opts.Columns, numericColumn)
		if err != nil {
			return nil, 0, err
		}
		affected := 0
		for _, c := range cols {
			fill, ok := centralValue(t, c, opts.Method == MissingFillMedian)
			if !ok {
				continue
			}
			for r := range t.Rows {
				if table.IsMissing(t.Rows[r][c]) {
					t.Rows[r][c] = fill
					affected++
				}
			}
		}
		t.Retype()
		return t, affected, nil

	case MissingFillValue:
		if opts.FillValue == nil {
			return t, 0, nil
		}
		cols, err := targetColumns(t, opts.Columns, anyColumn)
		if err != nil {
			return nil, 0, err
		}
		affected := 0
		for _, c := range cols {
			for r := range t.Rows {
				if table.IsMissing(t.Rows[r][c]) {
					t.Rows[r][c] = opts.FillValue
					affected++
				}
			}
		}
		t.Retype()
		return t, affected, nil

	case MissingForwardFill, MissingBackwardFill:
		cols, err := targetColumns(t, opts.Columns, anyColumn)
		if err != nil {
			return nil, 0, err
		}
		affected := 0
		for _, c := range cols {
			affected += directionalFill(t, c, opts.Method == MissingBackwardFill)
		}
		t.Retype()
		return t, affected, nil

	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrBadMethod, opts.Method)
	}
}

// centralValue computes the mean or median of a column's non-missing
// numeric cells. ok is false when the column has no usable values.
func centralValue(t *table.Table, col int, median bool) (float64, bool) {
	var vals []float64
	for _, row := range t.Rows {
		if f, ok := table.AsFloat(row[col]); ok {
			vals = append(vals, f)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	if !median {
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals)), true
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid], true
	}
	return (vals[mid-1] + vals[mid]) / 2, true
}

// directionalFill propagates the last (or next) observed value into
// missing cells and returns the number of cells filled.
func directionalFill(t *table.Table, col int, backward bool) int {
	n := t.NumRows()
	filled := 0
	var carry any
	for i := 0; i < n; i++ {
		r := i
		if backward {
			r = n - 1 - i
		}
		if table.IsMissing(t.Rows[r][col]) {
			if carry != nil {
				t.Rows[r][col] = carry
				filled++
			}
		} else {
			carry = t.Rows[r][col]
		}
	}
	return filled
}
