package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/filerank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/kafka"
)

// Fetcher is the part of kafka.Consumer the source needs.
type Fetcher interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaSource consumes ContextRecords from a topic. The stream has no end,
// so Next reports io.EOF once no message arrived within the idle timeout.
// Offsets are committed as soon as a message is decoded.
type KafkaSource struct {
	fetcher     Fetcher
	topic       string
	snapshotDir string
	idle        time.Duration
	logger      *slog.Logger
}

func NewKafka(fetcher Fetcher, topic, snapshotDir string, idle time.Duration) *KafkaSource {
	if idle <= 0 {
		idle = 30 * time.Second
	}
	return &KafkaSource{
		fetcher:     fetcher,
		topic:       topic,
		snapshotDir: snapshotDir,
		idle:        idle,
		logger:      slog.Default().With("component", "kafka-source", "topic", topic),
	}
}

func (s *KafkaSource) Next(ctx context.Context) (*ingestion.QueryContext, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.idle)
	defer cancel()
	msg, err := s.fetcher.Fetch(fetchCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Info("topic idle, ending input", "idle", s.idle)
			return nil, io.EOF
		}
		return nil, fmt.Errorf("fetching from %s: %w", s.topic, err)
	}
	if err := s.fetcher.Commit(ctx, msg); err != nil {
		return nil, err
	}
	loc := fmt.Sprintf("%s/%d@%d", s.topic, msg.Partition, msg.Offset)

	rec, err := kafka.DecodeJSON[ingestion.ContextRecord](msg.Value)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrMalformedRecord, string(msg.Key), "%s: %v", loc, err)
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
		snapshot = filepath.Join(s.snapshotDir, snapshot)
	}
	if qc.Corpus, err = LoadSnapshot(snapshot, rec.InstanceID); err != nil {
		return nil, err
	}
	return qc, nil
}

func (s *KafkaSource) Close() error {
	return s.fetcher.Close()
}
