// Package ingestion defines the records exchanged by the ranking pipeline:
// raw input records as read from disk, the validated QueryContext handed to
// the executor, and the ranked Record written to sinks.
package ingestion

import (
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/indexer/index"
)

// ContextRecord is one line of a JSONL input file. Either Corpus or
// Snapshot must be set; Query wins over Title and Body.
type ContextRecord struct {
	InstanceID string            `json:"instance_id"`
	Query      string            `json:"query,omitempty"`
	Title      string            `json:"title,omitempty"`
	Body       string            `json:"body,omitempty"`
	Corpus     map[string]string `json:"corpus,omitempty"`
	Snapshot   string            `json:"snapshot,omitempty"`
}

// PullRequest is one entry of a pull-request manifest. The code snapshot
// for it lives in pr_<Number>_code.json.
type PullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// QueryContext is a validated unit of work: one query and the corpus it
// is ranked against.
type QueryContext struct {
	InstanceID string
	Query      string
	Corpus     []index.Document
	// Source locates the record in its input (file:line or file#n).
	Source string
}

// Hit is one ranked document of a Record.
type Hit struct {
	DocID string  `json:"docid"`
	Score float64 `json:"score"`
}

// Record is the result of one query context.
type Record struct {
	InstanceID string `json:"instance_id"`
	Hits       []Hit  `json:"hits"`
}
