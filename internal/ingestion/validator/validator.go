// Package validator checks raw input records before they become query
// contexts. It reports every failing field at once.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/filerank/pkg/errors"
)

const maxInstanceIDLength = 255

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrMalformedRecord.
func (e *ValidationError) Unwrap() error {
	return apperrors.ErrMalformedRecord
}

// ValidateContextRecord checks the structural fields of a JSONL record.
// An empty query is not a structural defect; it is reported later as
// ErrEmptyQuery so that it can be counted separately.
func ValidateContextRecord(rec *ingestion.ContextRecord) error {
	errs := make(map[string]string)

	id := strings.TrimSpace(rec.InstanceID)
	if id == "" {
		errs["instance_id"] = "instance_id is required"
	} else if len(id) > maxInstanceIDLength {
		errs["instance_id"] = fmt.Sprintf("instance_id must be at most %d characters", maxInstanceIDLength)
	}
	if rec.Corpus == nil && strings.TrimSpace(rec.Snapshot) == "" {
		errs["corpus"] = "one of corpus or snapshot is required"
	}
	if rec.Corpus != nil && rec.Snapshot != "" {
		errs["snapshot"] = "corpus and snapshot are mutually exclusive"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidatePullRequest checks a manifest entry.
func ValidatePullRequest(pr *ingestion.PullRequest) error {
	if pr.Number <= 0 {
		return &ValidationError{Fields: map[string]string{"number": "number must be positive"}}
	}
	return nil
}
