// Package transform implements the reshaping operations: multi-column
// sort, group-by aggregation, pivot tables, and calculated columns.
//
// Like the cleaning operations, transforms own the table they receive and
// return a new or mutated value; installing the result and logging the
// change is the service layer's job.
package transform

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tidytable/tidytable/table"
)

// ErrBadRequest is returned for invalid transform parameters.
var ErrBadRequest = errors.New("transform: invalid request")

// ErrUnknownColumn is returned when a referenced column does not exist.
var ErrUnknownColumn = errors.New("transform: unknown column")

// SortBy stable-sorts rows by the named columns, all ascending or all
// descending. Missing cells sort first.
func SortBy(t *table.Table, columns []string, ascending bool) (*table.Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no sort columns", ErrBadRequest)
	}
	idx := make([]int, len(columns))
	for i, name := range columns {
		c := t.ColumnIndex(name)
		if c < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		idx[i] = c
	}

	sort.SliceStable(t.Rows, func(a, b int) bool {
		for _, c := range idx {
			cmp := compareCells(t.Rows[a][c], t.Rows[b][c])
			if cmp == 0 {
				continue
			}
			if ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
	return t, nil
}

// compareCells orders two cell values: missing < numbers < timestamps <
// bools < strings; within a kind, natural order.
func compareCells(a, b any) int {
	am, bm := table.IsMissing(a), table.IsMissing(b)
	switch {
	case am && bm:
		return 0
	case am:
		return -1
	case bm:
		return 1
	}

	if af, aok := table.AsFloat(a); aok {
		if bf, bok := table.AsFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
		return -1
	}
	if _, bok := table.AsFloat(b); bok {
		return 1
	}

	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
		return -1
	}
	if _, bok := b.(time.Time); bok {
		return 1
	}

	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case !ab && bb:
				return -1
			case ab && !bb:
				return 1
			default:
				return 0
			}
		}
		return -1
	}
	if _, bok := b.(bool); bok {
		return 1
	}

	as, bs := table.AsString(a), table.AsString(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
