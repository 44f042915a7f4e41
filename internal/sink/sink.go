// Package sink writes ranked records. Every sink is fed by a single
// goroutine, the batch aggregator, so implementations need no locking.
package sink

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
)

// Sink receives one record per Write call.
type Sink interface {
	Write(ctx context.Context, rec ingestion.Record) error
	Close() error
}

// Aborter is implemented by sinks that can discard what they buffered.
// The runner calls Abort instead of Close when the batch fails.
type Aborter interface {
	Abort() error
}
