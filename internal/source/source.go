// Package source reads query contexts for the batch runner. Sources are
// pull based: the runner calls Next until io.EOF. Errors wrapping
// ErrMalformedRecord or ErrCorpusUnavailable concern one record only and
// the caller may keep reading.
package source

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/filerank/pkg/errors"
)

// Source yields query contexts one at a time.
type Source interface {
	Next(ctx context.Context) (*ingestion.QueryContext, error)
	Close() error
}

// CorpusFromMap turns a path to content map into documents ordered by path,
// which keeps corpus order, and with it tie-breaking, reproducible.
func CorpusFromMap(files map[string]string) []index.Document {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	docs := make([]index.Document, 0, len(paths))
	for _, p := range paths {
		docs = append(docs, index.Document{ID: p, Content: files[p]})
	}
	return docs
}

// LoadSnapshot reads a snapshot file holding one JSON object of path to
// content. A snapshot that is missing, unreadable or undecodable is
// reported as ErrCorpusUnavailable for instanceID only.
func LoadSnapshot(path, instanceID string) ([]index.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.ErrCorpusUnavailable, instanceID, "snapshot %s not found", path)
		}
		return nil, apperrors.Newf(apperrors.ErrCorpusUnavailable, instanceID, "reading snapshot %s: %v", path, err)
	}
	var files map[string]string
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorpusUnavailable, instanceID, "decoding snapshot %s: %v", path, err)
	}
	return CorpusFromMap(files), nil
}

// BuildQuery prefers an explicit query and otherwise joins title and body.
func BuildQuery(query, title, body string) string {
	if strings.TrimSpace(query) != "" {
		return query
	}
	return strings.TrimSpace(title + " " + body)
}
