package format

import (
	"testing"

	"github.com/tidytable/tidytable/table"
)

func TestPhoneString(t *testing.T) {
	// WHAT: 10-digit and 11-digit-with-leading-1 inputs normalize to
	// 1(nnn)nnn-nnnn; anything else passes through unchanged.
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"5551234567", "1(555)123-4567", true},
		{"(555) 123-4567", "1(555)123-4567", true},
		{"555.123.4567", "1(555)123-4567", true},
		{"15551234567", "1(555)123-4567", true},
		{"+1 555 123 4567", "1(555)123-4567", true},
		{"25551234567", "25551234567", false}, // 11 digits, no leading 1
		{"12345", "12345", false},
		{"not a phone", "not a phone", false},
	}
	for _, tc := range cases {
		got, ok := PhoneString(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("PhoneString(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPhone_ExplicitColumns(t *testing.T) {
	tbl := table.New(
		table.Column{Name: "contact", Type: table.TypeString},
		table.Column{Name: "note", Type: table.TypeString},
	)
	tbl.AppendRow([]any{"555-123-4567", "call 5551234567"})
	tbl.AppendRow([]any{"1(555)123-4567", "x"})
	tbl.AppendRow([]any{nil, "y"})

	out, changed, err := Phone(tbl, []string{"contact"})
	if err != nil {
		t.Fatal(err)
	}
	// Row 0 reformats; row 1 is already canonical so it does not count.
	if changed != 1 {
		t.Fatalf("changed: %d", changed)
	}
	if out.Cell(0, 0) != "1(555)123-4567" {
		t.Fatalf("cell: %v", out.Cell(0, 0))
	}
	// Untargeted column untouched.
	if out.Cell(0, 1) != "call 5551234567" {
		t.Fatalf("note changed: %v", out.Cell(0, 1))
	}
}

func TestPhone_DefaultsToPhoneNamedColumns(t *testing.T) {
	// WHAT: With no explicit columns, any column whose name contains
	// "phone" is formatted, even when its cells inferred as integers.
	tbl := table.New(
		table.Column{Name: "home_phone", Type: table.TypeInteger},
		table.Column{Name: "age", Type: table.TypeInteger},
	)
	tbl.AppendRow([]any{int64(5551234567), int64(30)})

	out, changed, err := Phone(tbl, nil)
	if err != nil {
		t.Fatal(err)
	}
	if changed != 1 {
		t.Fatalf("changed: %d", changed)
	}
	if out.Cell(0, 0) != "1(555)123-4567" {
		t.Fatalf("cell: %v", out.Cell(0, 0))
	}
	if out.Cell(0, 1) != int64(30) {
		t.Fatalf("age touched: %v", out.Cell(0, 1))
	}
	// The formatted column is now a string column.
	if out.Columns[0].Type != table.TypeString {
		t.Fatalf("type: %v", out.Columns[0].Type)
	}
}

func TestPhone_UnknownColumn(t *testing.T) {
	tbl := table.New(table.Column{Name: "a", Type: table.TypeString})
	if _, _, err := Phone(tbl, []string{"ghost"}); err == nil {
		t.Fatal("expected error")
	}
}
