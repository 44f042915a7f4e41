package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion/validator"
)

// DefaultInstancePrefix is prepended to pull-request numbers.
const DefaultInstancePrefix = "MONAI_"

// ManifestSource walks a pull-request manifest and loads the code snapshot
// of each entry from SnapshotDir/pr_<number>_code.json.
type ManifestSource struct {
	name        string
	snapshotDir string
	prefix      string
	prs         []ingestion.PullRequest
	pos         int
}

// OpenManifest reads the whole manifest at path.
func OpenManifest(path, snapshotDir, prefix string) (*ManifestSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var prs []ingestion.PullRequest
	if err := json.Unmarshal(data, &prs); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return NewManifest(path, prs, snapshotDir, prefix), nil
}

func NewManifest(name string, prs []ingestion.PullRequest, snapshotDir, prefix string) *ManifestSource {
	if prefix == "" {
		prefix = DefaultInstancePrefix
	}
	return &ManifestSource{
		name:        name,
		snapshotDir: snapshotDir,
		prefix:      prefix,
		prs:         prs,
	}
}

// SnapshotPath returns where the snapshot for pull request number lives.
func (m *ManifestSource) SnapshotPath(number int) string {
	return filepath.Join(m.snapshotDir, fmt.Sprintf("pr_%d_code.json", number))
}

func (m *ManifestSource) Next(ctx context.Context) (*ingestion.QueryContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.pos >= len(m.prs) {
		return nil, io.EOF
	}
	pr := m.prs[m.pos]
	m.pos++
	loc := fmt.Sprintf("%s#%d", m.name, m.pos)

	if err := validator.ValidatePullRequest(&pr); err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}
	id := fmt.Sprintf("%s%d", m.prefix, pr.Number)
	docs, err := LoadSnapshot(m.SnapshotPath(pr.Number), id)
	if err != nil {
		return nil, err
	}
	return &ingestion.QueryContext{
		InstanceID: id,
		Query:      BuildQuery("", pr.Title, pr.Body),
		Corpus:     docs,
		Source:     loc,
	}, nil
}

func (m *ManifestSource) Close() error { return nil }
