// Package ingest loads tabular data into tables: chunked multipart upload
// reassembly and CSV/TSV/JSON-lines parsing with scalar type inference.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrBadChunk signals a malformed or out-of-range chunk submission.
	ErrBadChunk = errors.New("ingest: bad chunk")
	// ErrIncomplete signals a reassembly attempt with chunks still missing.
	ErrIncomplete = errors.New("ingest: upload incomplete")
)

// ChunkStore accumulates upload chunks on disk until all parts of an
// upload have arrived, then reassembles them into a single file.
type ChunkStore struct {
	mu  sync.Mutex
	dir string
	// received[uploadID] maps chunk index to true once written.
	received map[string]map[int]bool
}

// NewChunkStore uses dir for chunk spool files, creating it if needed.
func NewChunkStore(dir string) (*ChunkStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ingest: create chunk dir: %w", err)
	}
	return &ChunkStore{dir: dir, received: map[string]map[int]bool{}}, nil
}

// SaveChunk writes one chunk. uploadID must be a caller-minted opaque id;
// it is sanitized before touching the filesystem.
func (s *ChunkStore) SaveChunk(uploadID string, index, total int, data []byte) error {
	id := sanitize(uploadID)
	if id == "" || index < 0 || total < 1 || index >= total {
		return fmt.Errorf("%w: id=%q index=%d total=%d", ErrBadChunk, uploadID, index, total)
	}
	if err := os.WriteFile(s.chunkPath(id, index), data, 0o644); err != nil {
		return fmt.Errorf("ingest: write chunk: %w", err)
	}
	s.mu.Lock()
	if s.received[id] == nil {
		s.received[id] = map[int]bool{}
	}
	s.received[id][index] = true
	s.mu.Unlock()
	return nil
}

// Complete reports whether all total chunks of an upload have arrived.
func (s *ChunkStore) Complete(uploadID string, total int) bool {
	id := sanitize(uploadID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received[id]) == total
}

// Reassemble concatenates the chunks of an upload in index order into a
// file named after filename (extension preserved, name sanitized) under
// the store directory, removes the chunks, and returns the file path.
func (s *ChunkStore) Reassemble(uploadID string, total int, filename string) (string, error) {
	id := sanitize(uploadID)

	s.mu.Lock()
	got := s.received[id]
	if len(got) != total {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: have %d of %d chunks", ErrIncomplete, len(got), total)
	}
	indexes := make([]int, 0, len(got))
	for i := range got {
		indexes = append(indexes, i)
	}
	delete(s.received, id)
	s.mu.Unlock()
	sort.Ints(indexes)

	outPath := filepath.Join(s.dir, id+"_"+sanitizeName(filename))
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("ingest: create assembled file: %w", err)
	}
	defer out.Close()

	for _, i := range indexes {
		part, err := os.ReadFile(s.chunkPath(id, i))
		if err != nil {
			return "", fmt.Errorf("ingest: read chunk %d: %w", i, err)
		}
		if _, err := out.Write(part); err != nil {
			return "", fmt.Errorf("ingest: assemble chunk %d: %w", i, err)
		}
		os.Remove(s.chunkPath(id, i))
	}
	return outPath, nil
}

// Cleanup discards all spooled chunks of an abandoned upload.
func (s *ChunkStore) Cleanup(uploadID string) {
	id := sanitize(uploadID)
	s.mu.Lock()
	got := s.received[id]
	delete(s.received, id)
	s.mu.Unlock()
	for i := range got {
		os.Remove(s.chunkPath(id, i))
	}
}

func (s *ChunkStore) chunkPath(id string, index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.part%06d", id, index))
}

// sanitize keeps only characters safe for a filename component.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sanitizeName(name string) string {
	name = filepath.Base(name)
	ext := filepath.Ext(name)
	stem := sanitize(strings.TrimSuffix(name, ext))
	if stem == "" {
		stem = "upload"
	}
	if ext != "" {
		ext = "." + strings.ToLower(sanitize(ext[1:]))
	}
	return stem + ext
}
