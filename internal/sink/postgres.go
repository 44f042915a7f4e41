package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/filerank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/resilience"
	"github.com/lib/pq"
)

// PostgresSink stores one row per record in <table>_contexts and one row
// per hit in <table>. Both are written in a single transaction, so a record
// is either fully stored or absent, and a record without hits still leaves
// its context row with hits = 0.
type PostgresSink struct {
	client   *postgres.Client
	table    string
	contexts string
	runID    string
	retry    resilience.RetryConfig
	logger   *slog.Logger
}

// NewPostgres creates both tables if they do not exist yet. The sink takes
// ownership of client. Failed transactions are retried per retry, except
// for key conflicts.
func NewPostgres(ctx context.Context, client *postgres.Client, table, runID string, retry resilience.RetryConfig) (*PostgresSink, error) {
	if retry.Retryable == nil {
		retry.Retryable = func(err error) bool { return !postgres.IsUniqueViolation(err) }
	}
	s := &PostgresSink{
		client:   client,
		table:    table,
		contexts: contextsTable(table),
		runID:    runID,
		retry:    retry,
		logger:   slog.Default().With("component", "postgres-sink", "table", table),
	}
	if err := client.EnsureSchema(ctx, createContextsSQL(s.contexts), createHitsSQL(table)); err != nil {
		return nil, fmt.Errorf("creating tables %s, %s: %w", s.contexts, table, err)
	}
	return s, nil
}

func contextsTable(table string) string {
	return table + "_contexts"
}

func createContextsSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id      TEXT        NOT NULL,
	instance_id TEXT        NOT NULL,
	hits        INTEGER     NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, instance_id)
)`, pq.QuoteIdentifier(table))
}

func createHitsSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id      TEXT             NOT NULL,
	instance_id TEXT             NOT NULL,
	rank        INTEGER          NOT NULL,
	docid       TEXT             NOT NULL,
	score       DOUBLE PRECISION NOT NULL,
	created_at  TIMESTAMPTZ      NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, instance_id, rank)
)`, pq.QuoteIdentifier(table))
}

func insertContextSQL(table string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (run_id, instance_id, hits) VALUES ($1, $2, $3)",
		pq.QuoteIdentifier(table),
	)
}

func insertHitSQL(table string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (run_id, instance_id, rank, docid, score) VALUES ($1, $2, $3, $4, $5)",
		pq.QuoteIdentifier(table),
	)
}

func (s *PostgresSink) Write(ctx context.Context, rec ingestion.Record) error {
	err := resilience.Retry(ctx, "postgres-sink", s.retry, func(ctx context.Context, _ int) error {
		return s.client.InTx(ctx, func(tx *sql.Tx) error {
			return s.insert(ctx, tx, rec)
		})
	})
	if err != nil {
		return apperrors.Newf(apperrors.ErrSinkFailed, rec.InstanceID, "%v", err)
	}
	if len(rec.Hits) == 0 {
		s.logger.Debug("stored record without hits", "instance_id", rec.InstanceID)
	}
	return nil
}

func (s *PostgresSink) insert(ctx context.Context, tx *sql.Tx, rec ingestion.Record) error {
	if _, err := tx.ExecContext(ctx, insertContextSQL(s.contexts), s.runID, rec.InstanceID, len(rec.Hits)); err != nil {
		return fmt.Errorf("inserting context: %w", err)
	}
	if len(rec.Hits) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, insertHitSQL(s.table))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	for i, hit := range rec.Hits {
		if _, err := stmt.ExecContext(ctx, s.runID, rec.InstanceID, i+1, hit.DocID, hit.Score); err != nil {
			return fmt.Errorf("inserting hit %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.client.Close()
}
