package clean

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidytable/tidytable/table"
)

// String operations.
const (
	StringTrim  = "trim"
	StringLower = "lower"
	StringUpper = "upper"
	StringTitle = "title"
)

// Strings applies a string operation to the target string columns and
// returns the table plus the number of cells changed.
func Strings(t *table.Table, op string, columns []string) (*table.Table, int, error) {
	var apply func(string) string
	switch op {
	case StringTrim:
		apply = strings.TrimSpace
	case StringLower:
		apply = strings.ToLower
	case StringUpper:
		apply = strings.ToUpper
	case StringTitle:
		apply = titleCase
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrBadMethod, op)
	}

	cols, err := targetColumns(t, columns, stringColumn)
	if err != nil {
		return nil, 0, err
	}

	changed := 0
	for _, c := range cols {
		for r := range t.Rows {
			s, ok := t.Rows[r][c].(string)
			if !ok {
				continue
			}
			if out := apply(s); out != s {
				t.Rows[r][c] = out
				changed++
			}
		}
	}
	return t, changed, nil
}

// titleCase upper-cases the first letter of each space-separated word and
// lower-cases the rest.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		if len(runes) > 0 {
			runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// FindReplaceOptions configures FindReplace.
type FindReplaceOptions struct {
	Find      string
	Replace   string
	Columns   []string // empty = all string columns
	MatchCase bool
	UseRegex  bool
}

// FindReplace substitutes Find with Replace in the target string columns.
// Returns the table and the number of cells changed.
func FindReplace(t *table.Table, opts FindReplaceOptions) (*table.Table, int, error) {
	if opts.Find == "" {
		return nil, 0, fmt.Errorf("%w: find value cannot be empty", ErrBadMethod)
	}
	cols, err := targetColumns(t, opts.Columns, stringColumn)
	if err != nil {
		return nil, 0, err
	}

	var sub func(string) string
	if opts.UseRegex {
		pattern := opts.Find
		if !opts.MatchCase {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, 0, fmt.Errorf("clean: bad pattern: %w", err)
		}
		sub = func(s string) string { return re.ReplaceAllString(s, opts.Replace) }
	} else if opts.MatchCase {
		sub = func(s string) string { return strings.ReplaceAll(s, opts.Find, opts.Replace) }
	} else {
		re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(opts.Find))
		sub = func(s string) string { return re.ReplaceAllString(s, opts.Replace) }
	}

	changed := 0
	for _, c := range cols {
		for r := range t.Rows {
			s, ok := t.Rows[r][c].(string)
			if !ok {
				continue
			}
			if out := sub(s); out != s {
				t.Rows[r][c] = out
				changed++
			}
		}
	}
	return t, changed, nil
}
