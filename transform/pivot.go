package transform

import (
	"fmt"
	"sort"

	"github.com/tidytable/tidytable/table"
)

// PivotOptions configures Pivot.
type PivotOptions struct {
	IndexColumn   string
	ColumnsColumn string
	ValuesColumn  string
	AggFunc       string
}

// Pivot reshapes the table: one output row per distinct index value, one
// output column per distinct value of the columns column, cells holding
// the aggregated values column. Empty cells fill with zero.
func Pivot(t *table.Table, opts PivotOptions) (*table.Table, error) {
	if opts.IndexColumn == "" || opts.ColumnsColumn == "" || opts.ValuesColumn == "" {
		return nil, fmt.Errorf("%w: index, columns, and values are all required", ErrBadRequest)
	}
	if err := validAgg(opts.AggFunc); err != nil {
		return nil, err
	}

	idxCol := t.ColumnIndex(opts.IndexColumn)
	colCol := t.ColumnIndex(opts.ColumnsColumn)
	valCol := t.ColumnIndex(opts.ValuesColumn)
	for name, c := range map[string]int{
		opts.IndexColumn:   idxCol,
		opts.ColumnsColumn: colCol,
		opts.ValuesColumn:  valCol,
	} {
		if c < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
	}

	type rowAgg map[string]*accumulator // column label → accumulator
	cells := map[string]rowAgg{}        // index label → row
	indexVals := map[string]any{}
	var indexOrder []string
	colSet := map[string]bool{}

	for _, row := range t.Rows {
		ik := table.AsString(row[idxCol])
		ck := table.AsString(row[colCol])
		if _, ok := cells[ik]; !ok {
			cells[ik] = rowAgg{}
			indexVals[ik] = row[idxCol]
			indexOrder = append(indexOrder, ik)
		}
		colSet[ck] = true
		acc, ok := cells[ik][ck]
		if !ok {
			acc = &accumulator{}
			cells[ik][ck] = acc
		}
		acc.add(row[valCol])
	}

	colLabels := make([]string, 0, len(colSet))
	for ck := range colSet {
		colLabels = append(colLabels, ck)
	}
	sort.Strings(colLabels)

	cols := make([]table.Column, 0, 1+len(colLabels))
	cols = append(cols, t.Columns[idxCol])
	for _, label := range colLabels {
		cols = append(cols, table.Column{Name: label, Type: table.TypeFloat})
	}

	out := table.New(cols...)
	for _, ik := range indexOrder {
		row := make([]any, 0, len(cols))
		row = append(row, indexVals[ik])
		for _, label := range colLabels {
			acc, ok := cells[ik][label]
			if !ok {
				row = append(row, 0.0)
				continue
			}
			v := acc.result(opts.AggFunc)
			if v == nil {
				v = 0.0
			}
			row = append(row, v)
		}
		out.AppendRow(row)
	}
	out.Retype()
	return out, nil
}
