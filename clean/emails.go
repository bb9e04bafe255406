package clean

import (
	"fmt"
	"regexp"

	"github.com/tidytable/tidytable/table"
)

// Email validation actions.
const (
	EmailClear     = "clear"     // nullify invalid cells
	EmailRemoveRow = "remove_row" // drop rows containing an invalid email
)

// emailRe accepts the usual local-part@domain structure.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// ValidateEmails checks email format in the target string columns. A cell
// is invalid when it is non-missing and does not match. Returns the table
// and the number of cells cleared or rows removed.
func ValidateEmails(t *table.Table, action string, columns []string) (*table.Table, int, error) {
	switch action {
	case EmailClear, EmailRemoveRow:
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrBadMethod, action)
	}

	cols, err := targetColumns(t, columns, stringColumn)
	if err != nil {
		return nil, 0, err
	}

	drop := make([]bool, t.NumRows())
	affected := 0
	for _, c := range cols {
		for r := range t.Rows {
			s, ok := t.Rows[r][c].(string)
			if !ok || emailRe.MatchString(s) {
				continue
			}
			switch action {
			case EmailClear:
				t.Rows[r][c] = nil
				affected++
			case EmailRemoveRow:
				if !drop[r] {
					drop[r] = true
					affected++
				}
			}
		}
	}

	if action == EmailRemoveRow {
		return t.DropRows(drop), affected, nil
	}
	t.Retype()
	return t, affected, nil
}
