package table

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Type is the declared scalar type of a column.
type Type string

const (
	TypeInteger   Type = "integer"
	TypeFloat     Type = "float"
	TypeString    Type = "string"
	TypeBool      Type = "bool"
	TypeTimestamp Type = "timestamp"
	TypeNull      Type = "null"
)

// timestampLayouts are tried in order when parsing raw cell text.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// TypeOf returns the Type of a cell value.
func TypeOf(v any) Type {
	switch v.(type) {
	case nil:
		return TypeNull
	case int64:
		return TypeInteger
	case float64:
		return TypeFloat
	case bool:
		return TypeBool
	case time.Time:
		return TypeTimestamp
	default:
		return TypeString
	}
}

// ParseValue converts raw cell text into a typed value: empty → nil, then
// integer, float, bool, timestamp, falling back to the string itself.
func ParseValue(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts
		}
	}
	return s
}

// AsFloat converts a numeric cell to float64. Non-numeric or nil cells
// report ok=false; NaN cells report ok=false as well (they count as missing).
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	default:
		return 0, false
	}
}

// AsString renders a cell for display, filtering, and string operations.
func AsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return ""
	}
}

// IsMissing reports whether a cell counts as missing (nil or NaN).
func IsMissing(v any) bool {
	if v == nil {
		return true
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return true
	}
	return false
}

// IsNumericType reports whether a column type participates in numeric
// operations (mean/median fills, outlier detection, aggregation).
func IsNumericType(t Type) bool {
	return t == TypeInteger || t == TypeFloat
}
