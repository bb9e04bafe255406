package wrangle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/tidytable/tidytable/assist"
	"github.com/tidytable/tidytable/audit"
	"github.com/tidytable/tidytable/clean"
	"github.com/tidytable/tidytable/dataset"
	"github.com/tidytable/tidytable/format"
	"github.com/tidytable/tidytable/history"
	"github.com/tidytable/tidytable/ingest"
	"github.com/tidytable/tidytable/kit"
	"github.com/tidytable/tidytable/profile"
	"github.com/tidytable/tidytable/session"
	"github.com/tidytable/tidytable/table"
	"github.com/tidytable/tidytable/transform"
)

// Service owns the dataset, its history, and every operation exposed over
// HTTP and MCP. All mutating operations follow the same shape: read the
// current table, compute, install the result, log the change with a
// snapshot, and emit an audit event.
type Service struct {
	cfg     *Config
	store   *dataset.Store
	tracker *history.Tracker
	chunks  *ingest.ChunkStore
	auditor *audit.SQLiteLogger
	logger  *slog.Logger
}

// New assembles a Service. The audit logger may be nil (tests); audit
// events are then skipped.
func New(cfg *Config, auditor *audit.SQLiteLogger, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	chunks, err := ingest.NewChunkStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:     cfg,
		store:   dataset.NewStore(),
		tracker: history.NewTracker(),
		chunks:  chunks,
		auditor: auditor,
		logger:  logger,
	}, nil
}

// Store exposes the dataset holder, mainly for tests.
func (s *Service) Store() *dataset.Store { return s.store }

// Tracker exposes the history ledger, mainly for tests.
func (s *Service) Tracker() *history.Tracker { return s.tracker }

// audit emits one audit event; failures never surface to the caller.
// Operations reached through the shared endpoints are audited by
// audit.Middleware instead.
func (s *Service) audit(ctx context.Context, action string, params any, opErr error) {
	if s.auditor == nil {
		return
	}
	e := &audit.Entry{
		Action:    action,
		UserID:    kit.GetUserID(ctx),
		Transport: kit.GetTransport(ctx),
		RequestID: kit.GetRequestID(ctx),
		SessionID: kit.GetSessionID(ctx),
	}
	if opErr != nil {
		e.Error = opErr.Error()
	}
	if params != nil {
		if data, err := json.Marshal(params); err == nil {
			e.Parameters = string(data)
		}
	}
	s.auditor.LogAsync(e)
}

// OpResult reports the outcome of a mutating operation.
type OpResult struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	Affected    int    `json:"affected"`
	Rows        int    `json:"rows"`
	Columns     int    `json:"columns"`
	EntryID     string `json:"entryId"`
}

// commit installs the new table, logs the change with a snapshot, and
// builds the operation result.
func (s *Service) commit(action, description string, affected int, t *table.Table) *OpResult {
	s.store.Install(t)
	entryID := s.tracker.LogChange(action, description, t)
	s.logger.Info("operation applied",
		"action", action, "description", description,
		"rows", t.NumRows(), "columns", t.NumCols())
	return &OpResult{
		Action:      action,
		Description: description,
		Affected:    affected,
		Rows:        t.NumRows(),
		Columns:     t.NumCols(),
		EntryID:     entryID,
	}
}

// --- upload ---

// UploadChunk is one part of a chunked file upload.
type UploadChunk struct {
	UploadID    string `json:"uploadId"`
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
	Filename    string `json:"filename"`
	Data        []byte `json:"-"`
}

// UploadResult reports chunk progress; Complete is true once the final
// chunk arrived and the dataset was loaded.
type UploadResult struct {
	Complete bool     `json:"complete"`
	Received int      `json:"received"`
	Filename string   `json:"filename,omitempty"`
	Rows     int      `json:"rows,omitempty"`
	Columns  []string `json:"columns,omitempty"`
}

// Upload stores one chunk and, when the upload is complete, reassembles
// the file, loads it as the current dataset, and starts a fresh history.
func (s *Service) Upload(ctx context.Context, chunk UploadChunk) (*UploadResult, error) {
	if err := s.chunks.SaveChunk(chunk.UploadID, chunk.ChunkIndex, chunk.TotalChunks, chunk.Data); err != nil {
		s.audit(ctx, "upload", chunk, err)
		return nil, err
	}
	if !s.chunks.Complete(chunk.UploadID, chunk.TotalChunks) {
		return &UploadResult{Complete: false, Received: chunk.ChunkIndex + 1}, nil
	}

	path, err := s.chunks.Reassemble(chunk.UploadID, chunk.TotalChunks, chunk.Filename)
	if err != nil {
		s.audit(ctx, "upload", chunk, err)
		return nil, err
	}
	t, err := ingest.LoadFile(path)
	if err != nil {
		s.audit(ctx, "upload", chunk, err)
		return nil, err
	}

	s.store.Install(t)
	s.store.SetName(chunk.Filename)
	s.tracker.Clear()
	s.tracker.LogChange("Upload", fmt.Sprintf("Loaded %s (%d rows)", chunk.Filename, t.NumRows()), t)
	s.audit(ctx, "upload", map[string]any{"filename": chunk.Filename, "rows": t.NumRows()}, nil)

	return &UploadResult{
		Complete: true,
		Received: chunk.TotalChunks,
		Filename: chunk.Filename,
		Rows:     t.NumRows(),
		Columns:  t.ColumnNames(),
	}, nil
}

// --- preview ---

// PreviewOptions controls the paginated data view.
type PreviewOptions struct {
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"` // "asc" (default) or "desc"
	Filter    string `json:"filter"`    // case-insensitive substring over all cells
}

// ColumnInfo describes one column in a preview.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// PreviewResult is one page of the current dataset.
type PreviewResult struct {
	Filename  string       `json:"filename"`
	Columns   []ColumnInfo `json:"columns"`
	Rows      [][]any      `json:"rows"`
	Page      int          `json:"page"`
	Limit     int          `json:"limit"`
	TotalRows int          `json:"totalRows"`
}

// Preview returns a filtered, sorted, paginated view of the dataset.
// Columns whose name contains "phone" are rendered in canonical phone
// format; the stored data is untouched.
func (s *Service) Preview(ctx context.Context, opts PreviewOptions) (*PreviewResult, error) {
	t, err := s.store.Current()
	if err != nil {
		return nil, err
	}

	if opts.Filter != "" {
		t = filterRows(t, opts.Filter)
	}
	if opts.SortBy != "" {
		t, err = transform.SortBy(t, []string{opts.SortBy}, opts.SortOrder != "desc")
		if err != nil {
			return nil, err
		}
	}

	if opts.Limit <= 0 {
		opts.Limit = s.cfg.Preview.DefaultLimit
	}
	if opts.Limit > s.cfg.Preview.MaxLimit {
		opts.Limit = s.cfg.Preview.MaxLimit
	}
	if opts.Page < 1 {
		opts.Page = 1
	}

	total := t.NumRows()
	start := (opts.Page - 1) * opts.Limit
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	cols := make([]ColumnInfo, t.NumCols())
	for i, c := range t.Columns {
		cols[i] = ColumnInfo{Name: c.Name, Type: string(c.Type)}
	}

	page := table.New(t.Columns...)
	for _, row := range t.Rows[start:end] {
		page.AppendRow(append([]any(nil), row...))
	}
	format.Phone(page, nil)

	rows := make([][]any, page.NumRows())
	for r, row := range page.Rows {
		out := make([]any, len(row))
		for c, v := range row {
			out[c] = jsonCell(v)
		}
		rows[r] = out
	}

	return &PreviewResult{
		Filename:  s.store.Name(),
		Columns:   cols,
		Rows:      rows,
		Page:      opts.Page,
		Limit:     opts.Limit,
		TotalRows: total,
	}, nil
}

// filterRows keeps rows where any cell contains the needle,
// case-insensitively. t must already be a private copy.
func filterRows(t *table.Table, needle string) *table.Table {
	needle = strings.ToLower(needle)
	drop := make([]bool, t.NumRows())
	for r, row := range t.Rows {
		match := false
		for _, v := range row {
			if v == nil {
				continue
			}
			if strings.Contains(strings.ToLower(table.AsString(v)), needle) {
				match = true
				break
			}
		}
		drop[r] = !match
	}
	return t.DropRows(drop)
}

// --- edit cell ---

// EditCellRequest edits one cell; Value is parsed with type inference and
// an empty string clears the cell.
type EditCellRequest struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

// EditCell updates a single cell and logs the change.
func (s *Service) EditCell(ctx context.Context, req EditCellRequest) (*OpResult, error) {
	t, err := s.store.Current()
	if err != nil {
		s.audit(ctx, "edit_cell", req, err)
		return nil, err
	}
	col := t.ColumnIndex(req.Column)
	if col < 0 {
		err := fmt.Errorf("%w: %q", clean.ErrUnknownColumn, req.Column)
		s.audit(ctx, "edit_cell", req, err)
		return nil, err
	}
	if err := t.SetCell(req.Row, col, table.ParseValue(req.Value)); err != nil {
		s.audit(ctx, "edit_cell", req, err)
		return nil, err
	}
	t.Retype()

	desc := fmt.Sprintf("Set %s[%d] to %q", req.Column, req.Row, req.Value)
	res := s.commit("Edit Cell", desc, 1, t)
	s.audit(ctx, "edit_cell", req, nil)
	return res, nil
}

// --- cleaning ---

// CleanMissing applies a missing-value strategy.
func (s *Service) CleanMissing(ctx context.Context, opts clean.MissingOptions) (*OpResult, error) {
	t, err := s.store.Current()
	if err != nil {
		s.audit(ctx, "clean_missing", opts, err)
		return nil, err
	}
	out, n, err := clean.Missing(t, opts)
	if err != nil {
		s.audit(ctx, "clean_missing", opts, err)
		return nil, err
	}
	res := s.commit("Handle Missing", fmt.Sprintf("Method %s, %d affected", opts.Method, n), n, out)
	s.audit(ctx, "clean_missing", opts, nil)
	return res, nil
}

// Dedupe removes duplicate rows, optionally keyed on a column subset.
func (s *Service) Dedupe(ctx context.Context, columns []string) (*OpResult, error) {
	t, err := s.store.Current()
	if err != nil {
		s.audit(ctx, "clean_dedupe", columns, err)
		return nil, err
	}
	out, n, err := clean.Dedupe(t, columns)
	if err != nil {
		s.audit(ctx, "clean_dedupe", columns, err)
		return nil, err
	}
	res := s.commit("Remove Duplicates", fmt.Sprintf("%d duplicate rows removed", n), n, out)
	s.audit(ctx, "clean_dedupe", columns, nil)
	return res, nil
}

// Outliers treats IQR outliers in numeric columns.
func (s *Service) Outliers(ctx context.Context, opts clean.OutlierOptions) (*OpResult, error) {
	t, err := s.store.Current()
	if err != nil {
		s.audit(ctx, "clean_outliers", opts, err)
		return nil, err
	}
	out, n, err := clean.Outliers(t, opts)
	if err != nil {
		s.audit(ctx, "clean_outliers", opts, err)
		return nil, err
	}
	res := s.commit("Handle Outliers", fmt.Sprintf("Method %s, %d outliers", opts.Method, n), n, out)
	s.audit(ctx, "clean_outliers", opts, nil)
	return res, nil
}

// StringOps normalizes string columns (trim/lower/upper/title).
func (s *Service) StringOps(ctx context.Context, op string, columns []string) (*OpResult, error) {
	params := map[string]any{"op": op, "columns": columns}
	t, err := s.store.Current()
	if err != nil {
		s.audit(ctx, "clean_strings", params, err)
		return nil, err
	}
	out, n, err := clean.Strings(t, op, columns)
	if err != nil {
		s.audit(ctx, "clean_strings", params, err)
		return nil, err
	}
	res := s.commit("String Operations", fmt.Sprintf("Applied %s to %d cells", op, n), n, out)
	s.audit(ctx, "clean_strings", params, nil)
	return res, nil
}

// FindReplace substitutes text in string columns.
func (s *Service) FindReplace(ctx context.Context, opts clean.FindReplaceOptions) (*OpResult, error) {
	t, err := s.store.Current()
	if err != nil {
		s.audit(ctx, "clean_find_replace", opts, err)
		return nil, err
	}
	out, n, err := clean.FindReplace(t, opts)
	if err != nil {
		s.audit(ctx, "clean_find_replace", opts, err)
		return nil, err
	}
	desc := fmt.Sprintf("Replaced %q with %q in %d cells", opts.Find, opts.Replace, n)
	res := s.commit("Find & Replace", desc, n, out)
	s.audit(ctx, "clean_find_replace", opts, nil)
	return res, nil
}

// ValidateEmails clears or removes rows with invalid email addresses.
func (s *Service) ValidateEmails(ctx context.Context, action string, columns []string) (*OpResult, error) {
	params := map[string]any{"action": action, "columns": columns}
	t, err := s.store.Current()
	if err != nil {
		s.audit(ctx, "clean_emails", params, err)
		return nil, err
	}
	out, n, err := clean.ValidateEmails(t, action, columns)
	if err != nil {
		s.audit(ctx, "clean_emails", params, err)
		return nil, err
	}
	res := s.commit("Validate Emails", fmt.Sprintf("Action %s, %d invalid", action, n), n, out)
	s.audit(ctx, "clean_emails", params, nil)
	return res, nil
}

// FormatPhones normalizes phone numbers in the given string columns.
func (s *Service) FormatPhones(ctx context.Context, columns []string) (*OpResult, error) {
	t, err := s.store.Current()
	if err != nil {
		s.audit(ctx, "format_phones", columns, err)
		return nil, err
	}
	out, n, err := format.Phone(t, columns)
	if err != nil {
		s.audit(ctx, "format_phones", columns, err)
		return nil, err
	}
	res := s.commit("Format Phones", fmt.Sprintf("%d numbers normalized", n), n, out)
	s.audit(ctx, "format_phones", columns, nil)
	return res, nil
}

// --- transforms ---

// Sort orders rows by the given columns.
func (s *Service) Sort(ctx context.Context, columns []string, ascending bool) (*OpResult, error) {
	params := map[string]any{"columns": columns, "ascending": ascending}
	t, err := s.store.Current()
	if err != nil {
		s.audit(ctx, "transform_sort", params, err)
		return nil, err
	}
	out, err := transform.SortBy(t, columns, ascending)
	if err != nil {
		s.audit(ctx, "transform_sort", params, err)
		return nil, err
	}
	desc := fmt.Sprintf("Sorted by %s", strings.Join(columns, ", "))
	res := s.commit("Sort", desc, out.NumRows(), out)
	s.audit(ctx, "transform_sort", params, nil)
	return res, nil
}

// GroupBy collapses rows into aggregated groups.
func (s *Service) GroupBy(ctx context.Context, opts transform.GroupByOptions) (*OpResult, error) {
	t, err := s.store.Current()
	if err != nil {
		s.audit(ctx, "transform_group_by", opts, err)
		return nil, err
	}
	out, err := transform.GroupBy(t, opts)
	if err != nil {
		s.audit(ctx, "transform_group_by", opts, err)
		return nil, err
	}
	desc := fmt.Sprintf("Grouped by %s (%s)", strings.Join(opts.GroupColumns, ", "), opts.AggFunc)
	res := s.commit("Group By", desc, out.NumRows(), out)
	s.audit(ctx, "transform_group_by", opts, nil)
	return res, nil
}

// Pivot reshapes the table into a pivot view.
func (s *Service) Pivot(ctx context.Context, opts transform.PivotOptions) (*OpResult, error) {
	t, err := s.store.Current()
	if err != nil {
		s.audit(ctx, "transform_pivot", opts, err)
		return nil, err
	}
	out, err := transform.Pivot(t, opts)
	if err != nil {
		s.audit(ctx, "transform_pivot", opts, err)
		return nil, err
	}
	desc := fmt.Sprintf("Pivot %s × %s (%s of %s)",
		opts.IndexColumn, opts.ColumnsColumn, opts.AggFunc, opts.ValuesColumn)
	res := s.commit("Pivot", desc, out.NumRows(), out)
	s.audit(ctx, "transform_pivot", opts, nil)
	return res, nil
}

// CalculatedColumn adds a column computed from an expression.
func (s *Service) CalculatedColumn(ctx context.Context, name, expression string) (*OpResult, error) {
	params := map[string]any{"name": name, "expression": expression}
	t, err := s.store.Current()
	if err != nil {
		s.audit(ctx, "transform_calculated", params, err)
		return nil, err
	}
	out, err := transform.Calculated(t, name, expression)
	if err != nil {
		s.audit(ctx, "transform_calculated", params, err)
		return nil, err
	}
	desc := fmt.Sprintf("Added column %s = %s", name, expression)
	res := s.commit("Calculated Column", desc, out.NumRows(), out)
	s.audit(ctx, "transform_calculated", params, nil)
	return res, nil
}

// --- profile ---

// Profile analyzes the current dataset.
func (s *Service) Profile(ctx context.Context) (*profile.Report, error) {
	t, err := s.store.Current()
	if err != nil {
		return nil, err
	}
	return profile.Profile(t), nil
}

// --- history ---

// HistoryEntry is the presentation form of a ledger entry.
type HistoryEntry struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Action      string `json:"action"`
	Description string `json:"description"`
	CanRevert   bool   `json:"canRevert"`
}

// History returns the ledger newest-first for display.
func (s *Service) History(ctx context.Context) []HistoryEntry {
	entries := s.tracker.History()
	out := make([]HistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		out = append(out, HistoryEntry{
			ID:          e.ID,
			Timestamp:   e.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			Action:      e.Action,
			Description: e.Description,
			CanRevert:   e.HasSnapshot(),
		})
	}
	return out
}

// Revert restores the snapshot behind a history entry, installs it as the
// current table, and logs the revert itself as a new change.
func (s *Service) Revert(ctx context.Context, entryID string) (*OpResult, error) {
	if !s.store.Loaded() {
		return nil, dataset.ErrNoTable
	}
	restored, err := s.tracker.RevertTo(entryID)
	if err != nil {
		return nil, err
	}
	return s.commit("Revert", fmt.Sprintf("Reverted to version %s", entryID), restored.NumRows(), restored), nil
}

// ClearHistory empties the ledger and its snapshots. The current table
// stays installed.
func (s *Service) ClearHistory(ctx context.Context) {
	s.tracker.Clear()
	s.audit(ctx, "history_clear", nil, nil)
	s.logger.Info("history cleared")
}

// --- session ---

// SessionSave serializes the current dataset to a session document.
func (s *Service) SessionSave(ctx context.Context) ([]byte, error) {
	t, err := s.store.Current()
	if err != nil {
		s.audit(ctx, "session_save", nil, err)
		return nil, err
	}
	data, err := session.Save(t, s.store.Name())
	s.audit(ctx, "session_save", nil, err)
	return data, err
}

// SessionLoad restores a saved session: the dataset is installed, the
// history reset, and the load recorded as the first entry.
func (s *Service) SessionLoad(ctx context.Context, data []byte) (*OpResult, error) {
	t, name, err := session.Load(data)
	if err != nil {
		s.audit(ctx, "session_load", nil, err)
		return nil, err
	}
	s.store.SetName(name)
	s.tracker.Clear()
	res := s.commit("Session Load", fmt.Sprintf("Restored session %s", name), t.NumRows(), t)
	s.audit(ctx, "session_load", map[string]string{"filename": name}, nil)
	return res, nil
}

// --- assistant ---

// Summarize produces a deterministic description of the dataset.
func (s *Service) Summarize(ctx context.Context, style assist.Style) (string, error) {
	t, err := s.store.Current()
	if err != nil {
		return "", err
	}
	return assist.Summarize(t, s.store.Name(), style), nil
}

// jsonCell maps a cell onto a JSON-safe value; non-finite floats are not
// representable and become null.
func jsonCell(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}
