package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/filerank/pkg/errors"
)

// JSONLSink writes one JSON object per line. File output goes to a temp
// file in the target directory and is renamed into place by Close.
type JSONLSink struct {
	w       *bufio.Writer
	file    *os.File
	tmpPath string
	path    string
	records int
}

// OpenJSONL creates a sink for path. "-" writes to standard output.
func OpenJSONL(path string) (*JSONLSink, error) {
	if path == "-" || path == "" {
		return NewJSONLWriter(os.Stdout), nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp output in %s: %w", dir, err)
	}
	return &JSONLSink{
		w:       bufio.NewWriterSize(f, 64*1024),
		file:    f,
		tmpPath: f.Name(),
		path:    path,
	}, nil
}

// NewJSONLWriter writes straight to w. Close only flushes.
func NewJSONLWriter(w io.Writer) *JSONLSink {
	return &JSONLSink{w: bufio.NewWriter(w)}
}

func (s *JSONLSink) Write(_ context.Context, rec ingestion.Record) error {
	if rec.Hits == nil {
		rec.Hits = []ingestion.Hit{}
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return apperrors.Newf(apperrors.ErrSinkFailed, rec.InstanceID, "encoding record: %v", err)
	}
	line = append(line, '\n')
	if _, err := s.w.Write(line); err != nil {
		return apperrors.Newf(apperrors.ErrSinkFailed, rec.InstanceID, "writing record: %v", err)
	}
	s.records++
	return nil
}

// Records returns how many records were written.
func (s *JSONLSink) Records() int { return s.records }

func (s *JSONLSink) Close() error {
	if err := s.w.Flush(); err != nil {
		s.discard()
		return fmt.Errorf("%w: flushing output: %v", apperrors.ErrSinkFailed, err)
	}
	if s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		s.discard()
		return fmt.Errorf("%w: syncing %s: %v", apperrors.ErrSinkFailed, s.tmpPath, err)
	}
	if err := s.file.Close(); err != nil {
		os.Remove(s.tmpPath)
		return fmt.Errorf("%w: closing %s: %v", apperrors.ErrSinkFailed, s.tmpPath, err)
	}
	if err := os.Rename(s.tmpPath, s.path); err != nil {
		os.Remove(s.tmpPath)
		return fmt.Errorf("%w: renaming output to %s: %v", apperrors.ErrSinkFailed, s.path, err)
	}
	return nil
}

// Abort drops the temp file and leaves any previous output untouched.
func (s *JSONLSink) Abort() error {
	if s.file == nil {
		return s.w.Flush()
	}
	s.discard()
	return nil
}

func (s *JSONLSink) discard() {
	if s.file == nil {
		return
	}
	s.file.Close()
	os.Remove(s.tmpPath)
}
