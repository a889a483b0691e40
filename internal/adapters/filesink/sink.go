// Package filesink writes the most recent analysis record to a JSON file.
package filesink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/samirrijal/civiclens/internal/core/domain"
)

// Sink overwrites one JSON file with each record it receives.
type Sink struct {
	path string
	mu   sync.Mutex
}

// New creates a Sink writing to path. Parent directories are created on
// first write.
func New(path string) *Sink {
	return &Sink{path: path}
}

// Path returns the file the sink writes to.
func (s *Sink) Path() string { return s.path }

// Write replaces the file with rec. Readers never see a partial file.
func (s *Sink) Write(_ context.Context, rec domain.AnalysisRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".record-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename to %s: %w", s.path, err)
	}
	return nil
}

// Read returns the last record written. It returns domain.ErrNotFound when
// nothing has been written yet.
func (s *Sink) Read(_ context.Context) (*domain.AnalysisRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var rec domain.AnalysisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return &rec, nil
}
