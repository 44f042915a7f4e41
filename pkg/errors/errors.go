package errors

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyQuery         = errors.New("empty query")
	ErrEmptyCorpus        = errors.New("empty corpus")
	ErrCorpusUnavailable  = errors.New("corpus unavailable")
	ErrMalformedRecord    = errors.New("malformed input record")
	ErrSinkFailed         = errors.New("output sink failed")
	ErrTimeout            = errors.New("operation timed out")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrCacheUnavailable   = errors.New("result cache unavailable")
	ErrUnsupportedBackend = errors.New("unsupported backend")
)

// AppError attaches the query context it happened in to a sentinel.
type AppError struct {
	Err        error
	Message    string
	InstanceID string
}

func (e *AppError) Error() string {
	if e.InstanceID == "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Err.Error(), e.InstanceID, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, instanceID string, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		InstanceID: instanceID,
	}
}

func Newf(sentinel error, instanceID string, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		InstanceID: instanceID,
	}
}

// IsSkippable reports whether err only affects a single query context and
// the batch may carry on without it.
func IsSkippable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrSinkFailed), errors.Is(err, ErrInvalidConfig):
		return false
	case errors.Is(err, ErrEmptyQuery),
		errors.Is(err, ErrEmptyCorpus),
		errors.Is(err, ErrCorpusUnavailable),
		errors.Is(err, ErrMalformedRecord),
		errors.Is(err, ErrTimeout):
		return true
	default:
		return false
	}
}

// Reason maps an error to a short label used in logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, ErrEmptyCorpus):
		return "empty_corpus"
	case errors.Is(err, ErrCorpusUnavailable):
		return "corpus_unavailable"
	case errors.Is(err, ErrMalformedRecord):
		return "malformed_record"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrSinkFailed):
		return "sink_failed"
	default:
		return "error"
	}
}
