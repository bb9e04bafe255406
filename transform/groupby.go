package transform

import (
	"fmt"
	"math"

	"github.com/tidytable/tidytable/table"
)

// Aggregation functions.
const (
	AggSum   = "sum"
	AggMean  = "mean"
	AggCount = "count"
	AggMin   = "min"
	AggMax   = "max"
)

// GroupByOptions configures GroupBy.
type GroupByOptions struct {
	GroupColumns []string
	AggColumn    string // empty = every numeric non-group column
	AggFunc      string
}

// GroupBy collapses rows sharing the same group-column values, aggregating
// the chosen column(s). Groups keep first-seen order.
func GroupBy(t *table.Table, opts GroupByOptions) (*table.Table, error) {
	if len(opts.GroupColumns) == 0 {
		return nil, fmt.Errorf("%w: no group columns", ErrBadRequest)
	}
	if err := validAgg(opts.AggFunc); err != nil {
		return nil, err
	}

	groupIdx := make([]int, len(opts.GroupColumns))
	for i, name := range opts.GroupColumns {
		c := t.ColumnIndex(name)
		if c < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		groupIdx[i] = c
	}

	var aggIdx []int
	if opts.AggColumn != "" {
		c := t.ColumnIndex(opts.AggColumn)
		if c < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, opts.AggColumn)
		}
		aggIdx = append(aggIdx, c)
	} else {
		grouped := make(map[int]bool, len(groupIdx))
		for _, c := range groupIdx {
			grouped[c] = true
		}
		for c, col := range t.Columns {
			if !grouped[c] && table.IsNumericType(col.Type) {
				aggIdx = append(aggIdx, c)
			}
		}
	}

	type group struct {
		key  []any
		accs []*accumulator
	}
	byKey := map[string]*group{}
	var order []*group

	for _, row := range t.Rows {
		key := ""
		for _, c := range groupIdx {
			key += fmt.Sprintf("%T\x00%v\x00", row[c], row[c])
		}
		g, ok := byKey[key]
		if !ok {
			g = &group{accs: make([]*accumulator, len(aggIdx))}
			for i := range g.accs {
				g.accs[i] = &accumulator{}
			}
			for _, c := range groupIdx {
				g.key = append(g.key, row[c])
			}
			byKey[key] = g
			order = append(order, g)
		}
		for i, c := range aggIdx {
			g.accs[i].add(row[c])
		}
	}

	cols := make([]table.Column, 0, len(groupIdx)+len(aggIdx))
	for _, c := range groupIdx {
		cols = append(cols, t.Columns[c])
	}
	for _, c := range aggIdx {
		cols = append(cols, table.Column{Name: t.Columns[c].Name, Type: table.TypeFloat})
	}

	out := table.New(cols...)
	for _, g := range order {
		row := make([]any, 0, len(cols))
		row = append(row, g.key...)
		for _, acc := range g.accs {
			row = append(row, acc.result(opts.AggFunc))
		}
		out.AppendRow(row)
	}
	out.Retype()
	return out, nil
}

func validAgg(fn string) error {
	switch fn {
	case AggSum, AggMean, AggCount, AggMin, AggMax:
		return nil
	default:
		return fmt.Errorf("%w: aggregation %q", ErrBadRequest, fn)
	}
}

// accumulator folds numeric cells for one group×column pair. Count counts
// every non-missing cell, numeric or not.
type accumulator struct {
	sum   float64
	n     int
	count int
	min   float64
	max   float64
}

func (a *accumulator) add(v any) {
	if !table.IsMissing(v) {
		a.count++
	}
	f, ok := table.AsFloat(v)
	if !ok {
		return
	}
	if a.n == 0 {
		a.min, a.max = f, f
	} else {
		a.min = math.Min(a.min, f)
		a.max = math.Max(a.max, f)
	}
	a.sum += f
	a.n++
}

func (a *accumulator) result(fn string) any {
	switch fn {
	case AggCount:
		return int64(a.count)
	case AggSum:
		return a.sum
	case AggMean:
		if a.n == 0 {
			return nil
		}
		return a.sum / float64(a.n)
	case AggMin:
		if a.n == 0 {
			return nil
		}
		return a.min
	case AggMax:
		if a.n == 0 {
			return nil
		}
		return a.max
	}
	return nil
}
