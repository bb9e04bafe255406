package wrangle

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidytable/tidytable/table"
)

// ErrBadFormat signals an export format without a writer.
var ErrBadFormat = errors.New("wrangle: unsupported export format")

// ExportResult carries a rendered dataset ready to send as a download.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Export renders the current dataset as csv, tsv, or json.
func (s *Service) Export(ctx context.Context, formatName string) (*ExportResult, error) {
	t, err := s.store.Current()
	if err != nil {
		s.audit(ctx, "export", map[string]string{"format": formatName}, err)
		return nil, err
	}

	var data []byte
	var contentType string
	switch formatName {
	case "csv":
		data, err = writeDelimited(t, ',')
		contentType = "text/csv"
	case "tsv":
		data, err = writeDelimited(t, '\t')
		contentType = "text/tab-separated-values"
	case "json":
		data, err = writeJSONRecords(t)
		contentType = "application/json"
	default:
		err = fmt.Errorf("%w: %q", ErrBadFormat, formatName)
	}
	if err != nil {
		s.audit(ctx, "export", map[string]string{"format": formatName}, err)
		return nil, err
	}

	s.audit(ctx, "export", map[string]string{"format": formatName}, nil)
	return &ExportResult{
		Filename:    exportFilename(s.store.Name(), formatName),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func writeDelimited(t *table.Table, comma rune) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = comma

	if err := w.Write(t.ColumnNames()); err != nil {
		return nil, fmt.Errorf("wrangle: write header: %w", err)
	}
	record := make([]string, t.NumCols())
	for _, row := range t.Rows {
		for c, v := range row {
			record[c] = table.AsString(v)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("wrangle: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("wrangle: flush: %w", err)
	}
	return buf.Bytes(), nil
}

// writeJSONRecords renders the table as an array of objects keyed by
// column name, matching the JSON-lines ingest shape.
func writeJSONRecords(t *table.Table) ([]byte, error) {
	names := t.ColumnNames()
	records := make([]map[string]any, t.NumRows())
	for r, row := range t.Rows {
		obj := make(map[string]any, len(names))
		for c, name := range names {
			obj[name] = jsonCell(row[c])
		}
		records[r] = obj
	}
	return json.MarshalIndent(records, "", "  ")
}

func exportFilename(name, formatName string) string {
	if name == "" {
		name = "dataset"
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return stem + "." + formatName
}
