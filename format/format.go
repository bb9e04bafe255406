// Package format normalizes cell presentation: phone numbers rendered in
// a canonical shape regardless of how they were typed or inferred.
package format

import (
	"fmt"
	"strings"

	"github.com/tidytable/tidytable/table"
)

// Phone rewrites recognizable North American phone numbers in the given
// columns to the canonical "1(nnn)nnn-nnnn" form. Values without exactly
// 10 digits, or 11 digits with a leading 1, are left untouched. An empty
// columns slice targets every column whose name contains "phone"
// (case-insensitive). Formatted cells become strings; column types are
// re-inferred afterwards. Returns the number of cells changed.
func Phone(t *table.Table, columns []string) (*table.Table, int, error) {
	var idx []int
	if len(columns) == 0 {
		for c, col := range t.Columns {
			if strings.Contains(strings.ToLower(col.Name), "phone") {
				idx = append(idx, c)
			}
		}
	} else {
		for _, name := range columns {
			c := t.ColumnIndex(name)
			if c < 0 {
				return nil, 0, fmt.Errorf("format: unknown column %q", name)
			}
			idx = append(idx, c)
		}
	}

	changed := 0
	for _, c := range idx {
		for _, row := range t.Rows {
			if table.IsMissing(row[c]) {
				continue
			}
			raw := table.AsString(row[c])
			formatted, ok := PhoneString(raw)
			if !ok || formatted == raw {
				continue
			}
			row[c] = formatted
			changed++
		}
	}
	if changed > 0 {
		t.Retype()
	}
	return t, changed, nil
}

// PhoneString normalizes a single phone number. The second return value
// reports whether the input was recognized as a phone number at all.
func PhoneString(s string) (string, bool) {
	digits := digitsOf(s)
	switch {
	case len(digits) == 10:
		return render(digits), true
	case len(digits) == 11 && digits[0] == '1':
		return render(digits[1:]), true
	default:
		return s, false
	}
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func render(d string) string {
	return "1(" + d[:3] + ")" + d[3:6] + "-" + d[6:]
}
