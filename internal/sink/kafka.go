package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/filerank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/resilience"
)

// Publisher is the part of kafka.Producer the sink uses.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
	Close() error
}

// KafkaSink publishes each record as one message keyed by instance id.
type KafkaSink struct {
	producer Publisher
	retry    resilience.RetryConfig
}

// NewKafka retries failed publishes per retry. Values that cannot be
// encoded fail at once.
func NewKafka(producer Publisher, retry resilience.RetryConfig) *KafkaSink {
	if retry.Retryable == nil {
		retry.Retryable = func(err error) bool { return !errors.Is(err, kafka.ErrEncode) }
	}
	return &KafkaSink{producer: producer, retry: retry}
}

func (s *KafkaSink) Write(ctx context.Context, rec ingestion.Record) error {
	if rec.Hits == nil {
		rec.Hits = []ingestion.Hit{}
	}
	event := kafka.Event{Key: rec.InstanceID, Value: rec}
	err := resilience.Retry(ctx, "kafka-sink", s.retry, func(ctx context.Context, _ int) error {
		return s.producer.Publish(ctx, event)
	})
	if err != nil {
		return apperrors.Newf(apperrors.ErrSinkFailed, rec.InstanceID, "%v", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	if err := s.producer.Close(); err != nil {
		return fmt.Errorf("%w: closing kafka producer: %v", apperrors.ErrSinkFailed, err)
	}
	return nil
}
