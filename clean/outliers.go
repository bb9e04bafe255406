package clean

import (
	"fmt"
	"sort"

	"github.com/tidytable/tidytable/table"
)

// Outlier actions.
const (
	OutlierRemove  = "remove"
	OutlierNullify = "nullify"
	OutlierCap     = "cap"
)

// OutlierOptions configures Outliers.
type OutlierOptions struct {
	Method  string
	Columns []string // empty = all numeric columns
}

// Outliers treats values outside Tukey's fences (1.5×IQR beyond the
// quartiles) in each numeric target column. Returns the resulting table
// and the number of outlier cells found.
func Outliers(t *table.Table, opts OutlierOptions) (*table.Table, int, error) {
	switch opts.Method {
	case OutlierRemove, OutlierNullify, OutlierCap:
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrBadMethod, opts.Method)
	}

	cols, err := targetColumns(t, opts.Columns, numericColumn)
	if err != nil {
		return nil, 0, err
	}

	affected := 0
	drop := make([]bool, t.NumRows())
	for _, c := range cols {
		lower, upper, ok := tukeyFences(t, c)
		if !ok {
			continue
		}
		for r := range t.Rows {
			f, isNum := table.AsFloat(t.Rows[r][c])
			if !isNum || (f >= lower && f <= upper) {
				continue
			}
			affected++
			switch opts.Method {
			case OutlierRemove:
				drop[r] = true
			case OutlierNullify:
				t.Rows[r][c] = nil
			case OutlierCap:
				if f < lower {
					t.Rows[r][c] = lower
				} else {
					t.Rows[r][c] = upper
				}
			}
		}
	}

	if opts.Method == OutlierRemove {
		return t.DropRows(drop), affected, nil
	}
	t.Retype()
	return t, affected, nil
}

// tukeyFences computes [Q1 − 1.5·IQR, Q3 + 1.5·IQR] for a column.
func tukeyFences(t *table.Table, col int) (lower, upper float64, ok bool) {
	var vals []float64
	for _, row := range t.Rows {
		if f, isNum := table.AsFloat(row[col]); isNum {
			vals = append(vals, f)
		}
	}
	if len(vals) < 2 {
		return 0, 0, false
	}
	sort.Float64s(vals)
	q1 := quantile(vals, 0.25)
	q3 := quantile(vals, 0.75)
	iqr := q3 - q1
	return q1 - 1.5*iqr, q3 + 1.5*iqr, true
}

// quantile interpolates linearly between closest ranks (the same scheme
// pandas uses by default). vals must be sorted.
func quantile(vals []float64, q float64) float64 {
	if len(vals) == 1 {
		return vals[0]
	}
	pos := q * float64(len(vals)-1)
	lo := int(pos)
	if lo >= len(vals)-1 {
		return vals[len(vals)-1]
	}
	frac := pos - float64(lo)
	return vals[lo]*(1-frac) + vals[lo+1]*frac
}
