package clean

import (
	"errors"
	"testing"

	"github.com/tidytable/tidytable/table"
)

func numTable(vals ...any) *table.Table {
	t := table.New(table.Column{Name: "v", Type: table.TypeFloat})
	for _, v := range vals {
		t.AppendRow([]any{v})
	}
	return t
}

func peopleTable() *table.Table {
	t := table.New(
		table.Column{Name: "name", Type: table.TypeString},
		table.Column{Name: "email", Type: table.TypeString},
		table.Column{Name: "age", Type: table.TypeInteger},
	)
	t.AppendRow([]any{"  Alice ", "alice@example.com", int64(30)})
	t.AppendRow([]any{"BOB", "not-an-email", int64(25)})
	t.AppendRow([]any{"carol", nil, nil})
	t.AppendRow([]any{"BOB", "not-an-email", int64(25)})
	return t
}

func TestMissing_Remove(t *testing.T) {
	// WHAT: remove drops every row with a missing cell in the target set.
	in := peopleTable()
	out, affected, err := Missing(in, MissingOptions{Method: MissingRemove})
	if err != nil {
		t.Fatal(err)
	}
	if out.NumRows() != 3 || affected != 1 {
		t.Fatalf("rows=%d affected=%d", out.NumRows(), affected)
	}
}

func TestMissing_FillMean(t *testing.T) {
	// WHAT: fill_mean replaces missing numeric cells with the column mean.
	in := numTable(1.0, nil, 3.0)
	out, affected, err := Missing(in, MissingOptions{Method: MissingFillMean})
	if err != nil {
		t.Fatal(err)
	}
	if affected != 1 || out.Cell(1, 0) != 2.0 {
		t.Fatalf("affected=%d cell=%v", affected, out.Cell(1, 0))
	}
}

func TestMissing_FillMedian_EvenCount(t *testing.T) {
	in := numTable(1.0, 2.0, 10.0, 20.0, nil)
	out, _, err := Missing(in, MissingOptions{Method: MissingFillMedian})
	if err != nil {
		t.Fatal(err)
	}
	if out.Cell(4, 0) != 6.0 {
		t.Fatalf("median fill: got %v, want 6", out.Cell(4, 0))
	}
}

func TestMissing_FillValue(t *testing.T) {
	in := peopleTable()
	out, affected, err := Missing(in, MissingOptions{
		Method:    MissingFillValue,
		Columns:   []string{"email"},
		FillValue: "unknown@example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	if affected != 1 || out.Cell(2, 1) != "unknown@example.com" {
		t.Fatalf("affected=%d cell=%v", affected, out.Cell(2, 1))
	}
}

func TestMissing_ForwardBackwardFill(t *testing.T) {
	in := numTable(nil, 5.0, nil, 7.0)
	out, affected, err := Missing(in, MissingOptions{Method: MissingForwardFill})
	if err != nil {
		t.Fatal(err)
	}
	// Leading nil has nothing to carry; the middle gap fills with 5.
	if affected != 1 || out.Cell(0, 0) != nil || out.Cell(2, 0) != 5.0 {
		t.Fatalf("ffill: affected=%d rows=%v", affected, out.Rows)
	}

	in2 := numTable(nil, 5.0, nil, 7.0)
	out2, affected2, err := Missing(in2, MissingOptions{Method: MissingBackwardFill})
	if err != nil {
		t.Fatal(err)
	}
	if affected2 != 2 || out2.Cell(0, 0) != 5.0 || out2.Cell(2, 0) != 7.0 {
		t.Fatalf("bfill: affected=%d rows=%v", affected2, out2.Rows)
	}
}

func TestMissing_BadMethod(t *testing.T) {
	_, _, err := Missing(numTable(1.0), MissingOptions{Method: "zap"})
	if !errors.Is(err, ErrBadMethod) {
		t.Fatalf("got %v", err)
	}
}

func TestMissing_UnknownColumn(t *testing.T) {
	_, _, err := Missing(numTable(1.0), MissingOptions{Method: MissingRemove, Columns: []string{"nope"}})
	if !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("got %v", err)
	}
}

func TestDedupe_AllColumns(t *testing.T) {
	// WHAT: Full-row dedupe keeps the first occurrence.
	out, removed, err := Dedupe(peopleTable(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 || out.NumRows() != 3 {
		t.Fatalf("removed=%d rows=%d", removed, out.NumRows())
	}
}

func TestDedupe_Subset(t *testing.T) {
	// WHAT: Subset dedupe collapses rows equal on the named columns only.
	out, removed, err := Dedupe(peopleTable(), []string{"name"})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 || out.NumRows() != 3 {
		t.Fatalf("removed=%d rows=%d", removed, out.NumRows())
	}
}

func TestDedupe_TypeAwareKeys(t *testing.T) {
	// WHAT: int64(1) and "1" are different rows.
	tbl := table.New(table.Column{Name: "v", Type: table.TypeString})
	tbl.AppendRow([]any{int64(1)})
	tbl.AppendRow([]any{"1"})
	out, removed, err := Dedupe(tbl, nil)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 || out.NumRows() != 2 {
		t.Fatalf("type collision: removed=%d", removed)
	}
}

func TestOutliers_RemoveAndCap(t *testing.T) {
	// WHAT: A value far outside the Tukey fences is detected; remove drops
	// its row, cap clamps it to the fence.
	vals := []any{1.0, 2.0, 3.0, 4.0, 5.0, 100.0}

	out, affected, err := Outliers(numTable(vals...), OutlierOptions{Method: OutlierRemove})
	if err != nil {
		t.Fatal(err)
	}
	if affected != 1 || out.NumRows() != 5 {
		t.Fatalf("remove: affected=%d rows=%d", affected, out.NumRows())
	}

	capped, _, err := Outliers(numTable(vals...), OutlierOptions{Method: OutlierCap})
	if err != nil {
		t.Fatal(err)
	}
	got, ok := table.AsFloat(capped.Cell(5, 0))
	if !ok || got >= 100.0 {
		t.Fatalf("cap: got %v", capped.Cell(5, 0))
	}
}

func TestOutliers_Nullify(t *testing.T) {
	out, affected, err := Outliers(numTable(1.0, 2.0, 3.0, 4.0, 5.0, 100.0), OutlierOptions{Method: OutlierNullify})
	if err != nil {
		t.Fatal(err)
	}
	if affected != 1 || out.Cell(5, 0) != nil {
		t.Fatalf("nullify: affected=%d cell=%v", affected, out.Cell(5, 0))
	}
}

func TestStrings_Ops(t *testing.T) {
	in := peopleTable()
	out, _, err := Strings(in, StringTrim, []string{"name"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Cell(0, 0) != "Alice" {
		t.Fatalf("trim: %q", out.Cell(0, 0))
	}

	out, _, err = Strings(out, StringTitle, []string{"name"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Cell(1, 0) != "Bob" || out.Cell(2, 0) != "Carol" {
		t.Fatalf("title: %q %q", out.Cell(1, 0), out.Cell(2, 0))
	}
}

func TestStrings_SkipsNonStringColumns(t *testing.T) {
	// WHAT: A numeric column named explicitly is skipped, not an error.
	in := peopleTable()
	_, changed, err := Strings(in, StringUpper, []string{"age"})
	if err != nil {
		t.Fatal(err)
	}
	if changed != 0 {
		t.Fatalf("changed=%d", changed)
	}
}

func TestFindReplace_PlainAndRegex(t *testing.T) {
	in := peopleTable()
	out, changed, err := FindReplace(in, FindReplaceOptions{Find: "bob", Replace: "robert"})
	if err != nil {
		t.Fatal(err)
	}
	// Case-insensitive by default.
	if changed != 2 || out.Cell(1, 0) != "robert" {
		t.Fatalf("plain: changed=%d cell=%v", changed, out.Cell(1, 0))
	}

	out, changed, err = FindReplace(out, FindReplaceOptions{
		Find: `@example\.com$`, Replace: "@corp.io", UseRegex: true, MatchCase: true,
		Columns: []string{"email"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if changed != 1 || out.Cell(0, 1) != "alice@corp.io" {
		t.Fatalf("regex: changed=%d cell=%v", changed, out.Cell(0, 1))
	}
}

func TestFindReplace_EmptyFind(t *testing.T) {
	_, _, err := FindReplace(peopleTable(), FindReplaceOptions{Find: ""})
	if !errors.Is(err, ErrBadMethod) {
		t.Fatalf("got %v", err)
	}
}

func TestValidateEmails_Clear(t *testing.T) {
	// WHAT: clear nullifies invalid emails, leaves missing cells alone.
	out, affected, err := ValidateEmails(peopleTable(), EmailClear, []string{"email"})
	if err != nil {
		t.Fatal(err)
	}
	if affected != 2 || out.Cell(1, 1) != nil || out.Cell(3, 1) != nil {
		t.Fatalf("clear: affected=%d rows=%v", affected, out.Rows)
	}
	if out.Cell(0, 1) != "alice@example.com" {
		t.Fatal("valid email was touched")
	}
}

func TestValidateEmails_RemoveRow(t *testing.T) {
	out, affected, err := ValidateEmails(peopleTable(), EmailRemoveRow, []string{"email"})
	if err != nil {
		t.Fatal(err)
	}
	if affected != 2 || out.NumRows() != 2 {
		t.Fatalf("remove_row: affected=%d rows=%d", affected, out.NumRows())
	}
}
