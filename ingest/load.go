package ingest

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidytable/tidytable/table"
)

// ErrUnsupported signals a file extension without a loader.
var ErrUnsupported = errors.New("ingest: unsupported file type")

// LoadFile parses a file into a table, choosing the format by extension
// (.csv, .tsv, .json / .jsonl / .ndjson).
func LoadFile(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open: %w", err)
	}
	defer f.Close()
	return Load(f, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// Load parses tabular data from a reader in the format named by ext.
func Load(r io.Reader, ext string) (*table.Table, error) {
	switch ext {
	case "csv":
		return loadDelimited(r, ',')
	case "tsv":
		return loadDelimited(r, '\t')
	case "json", "jsonl", "ndjson":
		return loadJSONLines(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// loadDelimited reads a header row and data rows, inferring cell types
// with table.ParseValue and settling column types with Retype.
func loadDelimited(r io.Reader, comma rune) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("ingest: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: read header: %w", err)
	}

	cols := make([]table.Column, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		cols[i] = table.Column{Name: name, Type: table.TypeString}
	}
	t := table.New(cols...)

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: read row: %w", err)
		}
		row := make([]any, len(cols))
		for i := range cols {
			if i < len(rec) {
				row[i] = table.ParseValue(rec[i])
			}
		}
		if err := t.AppendRow(row); err != nil {
			return nil, err
		}
	}
	t.Retype()
	return t, nil
}

// loadJSONLines accepts either one JSON object per line or a single JSON
// array of objects. Columns are the union of keys, first-seen then sorted
// for the remainder, so ragged objects load cleanly.
func loadJSONLines(r io.Reader) (*table.Table, error) {
	br := bufio.NewReader(r)

	// Peek past whitespace to distinguish array documents from line format.
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, errors.New("ingest: empty file")
	}

	var objects []map[string]any
	if first == '[' {
		if err := json.NewDecoder(br).Decode(&objects); err != nil {
			return nil, fmt.Errorf("ingest: parse json array: %w", err)
		}
	} else {
		sc := bufio.NewScanner(br)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			var obj map[string]any
			if err := json.Unmarshal([]byte(line), &obj); err != nil {
				return nil, fmt.Errorf("ingest: parse json line: %w", err)
			}
			objects = append(objects, obj)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("ingest: scan: %w", err)
		}
	}
	if len(objects) == 0 {
		return nil, errors.New("ingest: no records")
	}

	names := unionKeys(objects)
	cols := make([]table.Column, len(names))
	for i, n := range names {
		cols[i] = table.Column{Name: n, Type: table.TypeString}
	}
	t := table.New(cols...)

	for _, obj := range objects {
		row := make([]any, len(names))
		for i, n := range names {
			row[i] = normalizeJSON(obj[n])
		}
		if err := t.AppendRow(row); err != nil {
			return nil, err
		}
	}
	t.Retype()
	return t, nil
}

// unionKeys returns the first object's keys in sorted order followed by
// any keys only later objects introduce, also sorted.
func unionKeys(objects []map[string]any) []string {
	seen := map[string]bool{}
	var head, tail []string
	for k := range objects[0] {
		head = append(head, k)
		seen[k] = true
	}
	sort.Strings(head)
	for _, obj := range objects[1:] {
		for k := range obj {
			if !seen[k] {
				tail = append(tail, k)
				seen[k] = true
			}
		}
	}
	sort.Strings(tail)
	return append(head, tail...)
}

// normalizeJSON maps decoded JSON values onto the cell value domain.
// Strings go through ParseValue so "2024-01-05" style cells still infer;
// nested structures are flattened to their JSON text.
func normalizeJSON(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		return x
	case float64:
		if x == float64(int64(x)) {
			return int64(x)
		}
		return x
	case string:
		return table.ParseValue(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}
