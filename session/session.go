// Package session serializes the working dataset to a versioned JSON
// document and restores it, so a browser session can be parked and
// resumed later.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tidytable/tidytable/table"
)

// Version is the current document format version.
const Version = 1

var (
	// ErrBadDocument signals a document that fails structural validation.
	ErrBadDocument = errors.New("session: bad document")
	// ErrVersion signals a document from an unknown format version.
	ErrVersion = errors.New("session: unsupported version")
)

// Document is the on-the-wire session format. Shape is [rows, cols] and
// must agree with the data payload; Dtypes is keyed by column name.
type Document struct {
	Filename string            `json:"filename"`
	SavedAt  time.Time         `json:"savedAt"`
	Shape    [2]int            `json:"shape"`
	Dtypes   map[string]string `json:"dtypes"`
	Columns  []string          `json:"columns"`
	Data     [][]any           `json:"data"`
	Version  int               `json:"version"`
}

// Save encodes a table and its dataset name into a document. Non-finite
// floats are not representable in JSON and are written as null.
func Save(t *table.Table, filename string) ([]byte, error) {
	doc := Document{
		Filename: filename,
		SavedAt:  time.Now().UTC(),
		Shape:    [2]int{t.NumRows(), t.NumCols()},
		Dtypes:   map[string]string{},
		Columns:  t.ColumnNames(),
		Version:  Version,
	}
	for _, col := range t.Columns {
		doc.Dtypes[col.Name] = string(col.Type)
	}
	doc.Data = make([][]any, t.NumRows())
	for r, row := range t.Rows {
		out := make([]any, len(row))
		for c, v := range row {
			out[c] = encodeCell(v)
		}
		doc.Data[r] = out
	}
	return json.Marshal(doc)
}

// Load decodes and validates a session document, returning the rebuilt
// table and the saved dataset name.
func Load(data []byte) (*table.Table, string, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	if doc.Version != Version {
		return nil, "", fmt.Errorf("%w: %d", ErrVersion, doc.Version)
	}
	if len(doc.Columns) == 0 {
		return nil, "", fmt.Errorf("%w: no columns", ErrBadDocument)
	}
	if doc.Shape[0] != len(doc.Data) || doc.Shape[1] != len(doc.Columns) {
		return nil, "", fmt.Errorf("%w: shape %v does not match payload %d×%d",
			ErrBadDocument, doc.Shape, len(doc.Data), len(doc.Columns))
	}

	cols := make([]table.Column, len(doc.Columns))
	for i, name := range doc.Columns {
		cols[i] = table.Column{Name: name, Type: table.Type(doc.Dtypes[name])}
	}
	t := table.New(cols...)
	for r, row := range doc.Data {
		if len(row) != len(cols) {
			return nil, "", fmt.Errorf("%w: row %d has %d cells", ErrBadDocument, r, len(row))
		}
		cells := make([]any, len(cols))
		for c, v := range row {
			cells[c] = decodeCell(v)
		}
		if err := t.AppendRow(cells); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrBadDocument, err)
		}
	}
	t.Retype()
	return t, doc.Filename, nil
}

func encodeCell(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return v
	}
}

// decodeCell maps JSON values back onto the cell domain; Retype settles
// the column types afterwards.
func decodeCell(v any) any {
	switch x := v.(type) {
	case float64:
		if x == float64(int64(x)) {
			return int64(x)
		}
		return x
	case string:
		return table.ParseValue(x)
	default:
		return v
	}
}
