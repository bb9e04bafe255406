// Package assist produces deterministic natural-language summaries of a
// dataset for the chat surface. No model is involved: summaries are
// templated from table statistics and rendered in one of a few reply
// styles.
package assist

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidytable/tidytable/table"
)

// Style selects how a summary is rendered.
type Style string

const (
	StyleParagraph Style = "paragraph"
	StyleNumbered  Style = "numbered"
	StylePlain     Style = "plain"
)

// Summarize describes a table: shape, column overview, and data quality
// notes (missing cells, duplicate rows). The name labels the dataset in
// the opening sentence; an unrecognized style falls back to paragraph.
func Summarize(t *table.Table, name string, style Style) string {
	facts := gather(t, name)
	switch style {
	case StyleNumbered:
		var b strings.Builder
		for i, f := range facts {
			fmt.Fprintf(&b, "%d. %s\n", i+1, f)
		}
		return strings.TrimRight(b.String(), "\n")
	case StylePlain:
		return Sanitize(strings.Join(facts, " "))
	default:
		return strings.Join(facts, " ")
	}
}

func gather(t *table.Table, name string) []string {
	if name == "" {
		name = "The dataset"
	} else {
		name = fmt.Sprintf("Dataset %q", name)
	}
	facts := []string{
		fmt.Sprintf("%s has %d rows and %d columns.", name, t.NumRows(), t.NumCols()),
	}

	var numeric, text, other []string
	for _, col := range t.Columns {
		switch {
		case table.IsNumericType(col.Type):
			numeric = append(numeric, col.Name)
		case col.Type == table.TypeString:
			text = append(text, col.Name)
		default:
			other = append(other, col.Name)
		}
	}
	if len(numeric) > 0 {
		facts = append(facts, fmt.Sprintf("Numeric columns: %s.", strings.Join(numeric, ", ")))
	}
	if len(text) > 0 {
		facts = append(facts, fmt.Sprintf("Text columns: %s.", strings.Join(text, ", ")))
	}
	if len(other) > 0 {
		facts = append(facts, fmt.Sprintf("Other columns: %s.", strings.Join(other, ", ")))
	}

	missing := 0
	for _, row := range t.Rows {
		for _, v := range row {
			if table.IsMissing(v) {
				missing++
			}
		}
	}
	if missing > 0 {
		facts = append(facts, fmt.Sprintf("There are %d missing cells; consider the missing-value tools.", missing))
	} else {
		facts = append(facts, "No missing values were found.")
	}

	if dups := duplicateRows(t); dups > 0 {
		facts = append(facts, fmt.Sprintf("%d duplicate rows were detected.", dups))
	}
	return facts
}

func duplicateRows(t *table.Table) int {
	seen := map[string]bool{}
	dups := 0
	for _, row := range t.Rows {
		var b strings.Builder
		for _, v := range row {
			b.WriteString(table.AsString(v))
			b.WriteByte(0)
		}
		key := b.String()
		if seen[key] {
			dups++
		}
		seen[key] = true
	}
	return dups
}

var (
	mdEmphasis = regexp.MustCompile(`[*_]{1,3}([^*_]+)[*_]{1,3}`)
	mdHeading  = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	mdCode     = regexp.MustCompile("`([^`]*)`")
	mdBullet   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
)

// Sanitize strips markdown decoration so a reply reads as plain text.
func Sanitize(s string) string {
	s = mdHeading.ReplaceAllString(s, "")
	s = mdEmphasis.ReplaceAllString(s, "$1")
	s = mdCode.ReplaceAllString(s, "$1")
	s = mdBullet.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
