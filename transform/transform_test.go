package transform

import (
	"errors"
	"testing"

	"github.com/tidytable/tidytable/table"
)

func salesTable() *table.Table {
	t := table.New(
		table.Column{Name: "region", Type: table.TypeString},
		table.Column{Name: "product", Type: table.TypeString},
		table.Column{Name: "units", Type: table.TypeInteger},
		table.Column{Name: "price", Type: table.TypeFloat},
	)
	t.AppendRow([]any{"west", "widget", int64(10), 2.5})
	t.AppendRow([]any{"east", "widget", int64(4), 2.5})
	t.AppendRow([]any{"west", "gadget", int64(2), 10.0})
	t.AppendRow([]any{"east", "gadget", int64(8), 10.0})
	t.AppendRow([]any{"west", "widget", int64(6), 2.5})
	return t
}

func TestSortBy_SingleColumn(t *testing.T) {
	// WHAT: Ascending sort orders numerically, and the sort is stable.
	out, err := SortBy(salesTable(), []string{"units"}, true)
	if err != nil {
		t.Fatal(err)
	}
	var got []int64
	for _, row := range out.Rows {
		got = append(got, row[2].(int64))
	}
	want := []int64{2, 4, 6, 8, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order: got %v", got)
		}
	}
}

func TestSortBy_MultiColumnDescending(t *testing.T) {
	out, err := SortBy(salesTable(), []string{"region", "units"}, false)
	if err != nil {
		t.Fatal(err)
	}
	// Descending by region first: all "west" before "east".
	if out.Cell(0, 0) != "west" || out.Cell(3, 0) != "east" {
		t.Fatalf("region order: %v", out.Rows)
	}
	// Within west, units descending: 10, 6, 2.
	if out.Cell(0, 2) != int64(10) || out.Cell(1, 2) != int64(6) {
		t.Fatalf("units order: %v", out.Rows)
	}
}

func TestSortBy_MissingFirst(t *testing.T) {
	// WHAT: nil cells sort before values.
	tbl := table.New(table.Column{Name: "v", Type: table.TypeFloat})
	tbl.AppendRow([]any{3.0})
	tbl.AppendRow([]any{nil})
	tbl.AppendRow([]any{1.0})
	out, err := SortBy(tbl, []string{"v"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if out.Cell(0, 0) != nil || out.Cell(1, 0) != 1.0 {
		t.Fatalf("order: %v", out.Rows)
	}
}

func TestSortBy_Errors(t *testing.T) {
	if _, err := SortBy(salesTable(), nil, true); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("empty columns: %v", err)
	}
	if _, err := SortBy(salesTable(), []string{"nope"}, true); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("unknown column: %v", err)
	}
}

func TestGroupBy_SumSingleColumn(t *testing.T) {
	// WHAT: Grouping sums the agg column per group, first-seen order.
	out, err := GroupBy(salesTable(), GroupByOptions{
		GroupColumns: []string{"region"},
		AggColumn:    "units",
		AggFunc:      AggSum,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.NumRows() != 2 || out.NumCols() != 2 {
		t.Fatalf("shape: %d×%d", out.NumRows(), out.NumCols())
	}
	if out.Cell(0, 0) != "west" {
		t.Fatalf("group order: %v", out.Rows)
	}
	west, _ := table.AsFloat(out.Cell(0, 1))
	east, _ := table.AsFloat(out.Cell(1, 1))
	if west != 18 || east != 12 {
		t.Fatalf("sums: west=%v east=%v", west, east)
	}
}

func TestGroupBy_AllNumericWhenNoAggColumn(t *testing.T) {
	// WHAT: Empty agg column aggregates every numeric non-group column.
	out, err := GroupBy(salesTable(), GroupByOptions{
		GroupColumns: []string{"product"},
		AggFunc:      AggMean,
	})
	if err != nil {
		t.Fatal(err)
	}
	// product + units + price
	if out.NumCols() != 3 {
		t.Fatalf("cols: %d", out.NumCols())
	}
	mean, _ := table.AsFloat(out.Cell(0, 1)) // widget units: (10+4+6)/3
	if mean != 20.0/3.0 {
		t.Fatalf("widget mean: %v", mean)
	}
}

func TestGroupBy_CountAndMinMax(t *testing.T) {
	count, err := GroupBy(salesTable(), GroupByOptions{
		GroupColumns: []string{"region"}, AggColumn: "units", AggFunc: AggCount,
	})
	if err != nil {
		t.Fatal(err)
	}
	if count.Cell(0, 1) != int64(3) {
		t.Fatalf("count: %v", count.Cell(0, 1))
	}

	mn, err := GroupBy(salesTable(), GroupByOptions{
		GroupColumns: []string{"region"}, AggColumn: "units", AggFunc: AggMin,
	})
	if err != nil {
		t.Fatal(err)
	}
	v, _ := table.AsFloat(mn.Cell(0, 1))
	if v != 2 {
		t.Fatalf("min: %v", v)
	}
}

func TestGroupBy_Errors(t *testing.T) {
	if _, err := GroupBy(salesTable(), GroupByOptions{AggFunc: AggSum}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("no groups: %v", err)
	}
	if _, err := GroupBy(salesTable(), GroupByOptions{
		GroupColumns: []string{"region"}, AggFunc: "mode",
	}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("bad agg: %v", err)
	}
}

func TestPivot_Basic(t *testing.T) {
	// WHAT: Pivot produces one row per index value and one column per
	// distinct columns-column value, aggregated, zero-filled.
	out, err := Pivot(salesTable(), PivotOptions{
		IndexColumn:   "region",
		ColumnsColumn: "product",
		ValuesColumn:  "units",
		AggFunc:       AggSum,
	})
	if err != nil {
		t.Fatal(err)
	}
	// region + gadget + widget (labels sorted)
	if out.NumCols() != 3 || out.NumRows() != 2 {
		t.Fatalf("shape: %d×%d", out.NumRows(), out.NumCols())
	}
	if out.Columns[1].Name != "gadget" || out.Columns[2].Name != "widget" {
		t.Fatalf("columns: %v", out.ColumnNames())
	}
	westWidget, _ := table.AsFloat(out.Cell(0, 2))
	if westWidget != 16 {
		t.Fatalf("west widget: %v", westWidget)
	}
}

func TestPivot_ZeroFill(t *testing.T) {
	tbl := table.New(
		table.Column{Name: "k", Type: table.TypeString},
		table.Column{Name: "c", Type: table.TypeString},
		table.Column{Name: "v", Type: table.TypeInteger},
	)
	tbl.AppendRow([]any{"a", "x", int64(1)})
	tbl.AppendRow([]any{"b", "y", int64(2)})
	out, err := Pivot(tbl, PivotOptions{IndexColumn: "k", ColumnsColumn: "c", ValuesColumn: "v", AggFunc: AggSum})
	if err != nil {
		t.Fatal(err)
	}
	// a×y never occurs, so it must be zero.
	ay, _ := table.AsFloat(out.Cell(0, 2))
	if ay != 0 {
		t.Fatalf("fill: %v", out.Rows)
	}
}

func TestPivot_MissingParams(t *testing.T) {
	if _, err := Pivot(salesTable(), PivotOptions{IndexColumn: "region", AggFunc: AggSum}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("got %v", err)
	}
}

func TestCalculated_Arithmetic(t *testing.T) {
	// WHAT: A calculated column evaluates per row with precedence and
	// parentheses.
	out, err := Calculated(salesTable(), "revenue", "units * price")
	if err != nil {
		t.Fatal(err)
	}
	rev, _ := table.AsFloat(out.Cell(0, out.ColumnIndex("revenue")))
	if rev != 25.0 {
		t.Fatalf("revenue: %v", rev)
	}

	out, err = Calculated(out, "adjusted", "(revenue - 5) / 2")
	if err != nil {
		t.Fatal(err)
	}
	adj, _ := table.AsFloat(out.Cell(0, out.ColumnIndex("adjusted")))
	if adj != 10.0 {
		t.Fatalf("adjusted: %v", adj)
	}
}

func TestCalculated_UnaryMinusAndLiterals(t *testing.T) {
	out, err := Calculated(salesTable(), "neg", "-units + 1.5")
	if err != nil {
		t.Fatal(err)
	}
	v, _ := table.AsFloat(out.Cell(0, out.ColumnIndex("neg")))
	if v != -8.5 {
		t.Fatalf("neg: %v", v)
	}
}

func TestCalculated_MissingAndDivZero(t *testing.T) {
	tbl := table.New(
		table.Column{Name: "a", Type: table.TypeFloat},
		table.Column{Name: "b", Type: table.TypeFloat},
	)
	tbl.AppendRow([]any{1.0, 0.0})
	tbl.AppendRow([]any{nil, 2.0})
	out, err := Calculated(tbl, "q", "a / b")
	if err != nil {
		t.Fatal(err)
	}
	c := out.ColumnIndex("q")
	if out.Cell(0, c) != nil || out.Cell(1, c) != nil {
		t.Fatalf("expected nils: %v", out.Rows)
	}
}

func TestCalculated_Errors(t *testing.T) {
	if _, err := Calculated(salesTable(), "x", "units +"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("trailing op: %v", err)
	}
	if _, err := Calculated(salesTable(), "x", "ghost * 2"); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("unknown ref: %v", err)
	}
	if _, err := Calculated(salesTable(), "", "units"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("empty name: %v", err)
	}
	if _, err := Calculated(salesTable(), "x", "units ^ 2"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("bad operator: %v", err)
	}
}
