package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/filerank/pkg/errors"
)

// JSONLSource reads one ContextRecord per line. Blank lines are ignored.
// Relative snapshot paths are resolved against the input file's directory.
type JSONLSource struct {
	name    string
	baseDir string
	reader  *bufio.Reader
	closer  io.Closer
	line    int
	logger  *slog.Logger
}

// OpenJSONL opens path for reading. "-" reads standard input.
func OpenJSONL(path string) (*JSONLSource, error) {
	if path == "-" {
		return NewJSONL(os.Stdin, "stdin", "."), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input %s: %w", path, err)
	}
	src := NewJSONL(f, path, filepath.Dir(path))
	src.closer = f
	return src, nil
}

// NewJSONL reads records from r. name labels records in errors and logs.
func NewJSONL(r io.Reader, name, baseDir string) *JSONLSource {
	return &JSONLSource{
		name:    name,
		baseDir: baseDir,
		reader:  bufio.NewReaderSize(r, 1<<20),
		logger:  slog.Default().With("component", "jsonl-source", "input", name),
	}
}

// Next returns the next query context. Per-record failures are returned
// with the line number attached; the following call moves on.
func (s *JSONLSource) Next(ctx context.Context) (*ingestion.QueryContext, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := s.reader.ReadBytes('\n')
		if len(raw) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("reading %s: %w", s.name, err)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading %s: %w", s.name, err)
		}
		s.line++
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		return s.decode(raw)
	}
}

func (s *JSONLSource) decode(raw []byte) (*ingestion.QueryContext, error) {
	loc := fmt.Sprintf("%s:%d", s.name, s.line)

	var rec ingestion.ContextRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, apperrors.Newf(apperrors.ErrMalformedRecord, "", "%s: %v", loc, err)
	}
	if err := validator.ValidateContextRecord(&rec); err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}

	qc := &ingestion.QueryContext{
		InstanceID: rec.InstanceID,
		Query:      BuildQuery(rec.Query, rec.Title, rec.Body),
		Source:     loc,
	}
	if rec.Corpus != nil {
		qc.Corpus = CorpusFromMap(rec.Corpus)
		return qc, nil
	}

	snapshot := rec.Snapshot
	if !filepath.IsAbs(snapshot) {
		snapshot = filepath.Join(s.baseDir, snapshot)
	}
	docs, err := LoadSnapshot(snapshot, rec.InstanceID)
	if err != nil {
		return nil, err
	}
	qc.Corpus = docs
	s.logger.Debug("snapshot loaded", "instance_id", rec.InstanceID, "snapshot", snapshot, "documents", len(docs))
	return qc, nil
}

// Close releases the underlying file, if any.
func (s *JSONLSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
