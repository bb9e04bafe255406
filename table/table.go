// Package table holds the in-memory tabular data model: ordered named
// columns with inferred scalar types over a row grid.
//
// Tables are value-like. Clone returns a fully independent copy, and every
// store in the system (dataset, history) copies on the way in and on the
// way out so that no caller can alias stored state.
package table

import (
	"fmt"
	"math"
	"time"
)

// Cell values are one of: nil, int64, float64, string, bool, time.Time.

// Column describes one named, typed column.
type Column struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Table is an ordered collection of columns over a row grid.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// New creates an empty table with the given columns.
func New(cols ...Column) *Table {
	t := &Table{Columns: make([]Column, len(cols))}
	copy(t.Columns, cols)
	return t
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.Columns) }

// ColumnIndex returns the index of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Cell returns the value at (row, col). Out-of-range access returns nil.
func (t *Table) Cell(row, col int) any {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Columns) {
		return nil
	}
	return t.Rows[row][col]
}

// SetCell replaces the value at (row, col).
func (t *Table) SetCell(row, col int, v any) error {
	if row < 0 || row >= len(t.Rows) {
		return fmt.Errorf("table: row %d out of range", row)
	}
	if col < 0 || col >= len(t.Columns) {
		return fmt.Errorf("table: column %d out of range", col)
	}
	t.Rows[row][col] = v
	return nil
}

// AppendRow adds a row. The row length must match the column count.
func (t *Table) AppendRow(row []any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("table: row has %d cells, want %d", len(row), len(t.Columns))
	}
	r := make([]any, len(row))
	copy(r, row)
	t.Rows = append(t.Rows, r)
	return nil
}

// Clone returns a fully independent deep copy.
func (t *Table) Clone() *Table {
	c := &Table{
		Columns: make([]Column, len(t.Columns)),
		Rows:    make([][]any, len(t.Rows)),
	}
	copy(c.Columns, t.Columns)
	for i, row := range t.Rows {
		r := make([]any, len(row))
		copy(r, row)
		c.Rows[i] = r
	}
	return c
}

// Equal reports whether two tables have identical columns and cell content.
// NaN cells compare equal to NaN so that snapshots round-trip.
func (t *Table) Equal(o *Table) bool {
	if o == nil || len(t.Columns) != len(o.Columns) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != o.Columns[i] {
			return false
		}
	}
	for i := range t.Rows {
		for j := range t.Rows[i] {
			if !CellEqual(t.Rows[i][j], o.Rows[i][j]) {
				return false
			}
		}
	}
	return true
}

// CellEqual compares two cell values, treating NaN as equal to NaN.
func CellEqual(a, b any) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok && math.IsNaN(af) && math.IsNaN(bf) {
		return true
	}
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok && bok {
		return at.Equal(bt)
	}
	return a == b
}

// Retype recomputes every column's declared type from its data.
// Call after an operation that may change cell types (fill, nullify, cast).
func (t *Table) Retype() {
	for c := range t.Columns {
		t.Columns[c].Type = t.inferColumnType(c)
	}
}

func (t *Table) inferColumnType(col int) Type {
	result := TypeNull
	for _, row := range t.Rows {
		v := row[col]
		if v == nil {
			continue
		}
		vt := TypeOf(v)
		switch {
		case result == TypeNull:
			result = vt
		case result == vt:
		case result == TypeInteger && vt == TypeFloat, result == TypeFloat && vt == TypeInteger:
			result = TypeFloat
		default:
			return TypeString
		}
	}
	return result
}

// DropRows returns a copy of the table without the rows whose indices are
// marked true in drop. len(drop) must equal NumRows.
func (t *Table) DropRows(drop []bool) *Table {
	out := &Table{Columns: make([]Column, len(t.Columns))}
	copy(out.Columns, t.Columns)
	for i, row := range t.Rows {
		if i < len(drop) && drop[i] {
			continue
		}
		r := make([]any, len(row))
		copy(r, row)
		out.Rows = append(out.Rows, r)
	}
	return out
}

// AddColumn appends a column with the given values (one per row).
func (t *Table) AddColumn(name string, typ Type, values []any) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("table: column %q has %d values, want %d", name, len(values), len(t.Rows))
	}
	if t.ColumnIndex(name) >= 0 {
		// Overwrite in place, pandas-style assignment semantics.
		col := t.ColumnIndex(name)
		t.Columns[col].Type = typ
		for i := range t.Rows {
			t.Rows[i][col] = values[i]
		}
		return nil
	}
	t.Columns = append(t.Columns, Column{Name: name, Type: typ})
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
	return nil
}
