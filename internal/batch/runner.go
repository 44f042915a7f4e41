// Package batch runs query contexts through the ranking pipeline with a
// bounded worker pool. Each worker builds its own index; finished records
// travel over a channel to one aggregator goroutine, the only writer of
// the sink. Per-context failures are logged and counted. A sink failure
// aborts the batch.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/source"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/filerank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/tracing"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Ranker ranks one query context.
type Ranker interface {
	Execute(ctx context.Context, qc ingestion.QueryContext) (*ingestion.Record, error)
}

// Cache memoises ranked records.
type Cache interface {
	GetOrCompute(
		ctx context.Context,
		qc ingestion.QueryContext,
		compute func() (*ingestion.Record, error),
	) (*ingestion.Record, bool, error)
}

type Runner struct {
	ranker  Ranker
	cfg     config.BatchConfig
	cache   Cache
	metrics *metrics.Metrics
}

type Option func(*Runner)

func WithCache(c Cache) Option {
	return func(r *Runner) { r.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func New(ranker Ranker, cfg config.BatchConfig, opts ...Option) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	r := &Runner{ranker: ranker, cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// outcome is what a worker hands to the aggregator.
type outcome struct {
	instanceID string
	source     string
	documents  int
	rec        *ingestion.Record
	cached     bool
	err        error
	elapsed    time.Duration
}

// Run drains src, ranks every context and writes one record per ranked
// context to snk. Output order follows completion, not input order. The
// sink is closed on success and aborted, when it supports it, on failure.
// The returned error wraps ErrSinkFailed when the sink could not be
// written.
func (r *Runner) Run(ctx context.Context, src source.Source, snk sink.Sink) (Summary, error) {
	start := time.Now()
	runID := logger.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logger.WithRunID(ctx, runID)
	}
	log := logger.FromContext(ctx).With("component", "batch-runner")
	summary := newSummary(runID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome, r.cfg.Workers)
	aggDone := make(chan error, 1)
	go func() {
		aggDone <- r.aggregate(ctx, cancel, results, snk, &summary, log)
	}()

	log.Info("batch started", "workers", r.cfg.Workers, "context_timeout", r.cfg.ContextTimeout)

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	var readErr error
	for {
		qc, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if apperrors.IsSkippable(err) {
				results <- outcome{instanceID: instanceOf(err), err: err}
				continue
			}
			readErr = fmt.Errorf("reading input: %w", err)
			cancel()
			break
		}
		g.Go(func() error {
			results <- r.process(ctx, *qc, log)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	sinkErr := <-aggDone
	summary.Duration = time.Since(start)

	var runErr error
	switch {
	case sinkErr != nil:
		runErr = sinkErr
	case readErr != nil:
		runErr = readErr
	case ctx.Err() != nil:
		runErr = ctx.Err()
	}
	if runErr != nil {
		abort(snk, log)
		log.Error("batch aborted", "error", runErr, "processed", summary.Processed)
		return summary, runErr
	}
	if err := snk.Close(); err != nil {
		if !errors.Is(err, apperrors.ErrSinkFailed) {
			err = fmt.Errorf("%w: %v", apperrors.ErrSinkFailed, err)
		}
		return summary, err
	}

	log.Info("batch finished",
		"processed", summary.Processed,
		"cached", summary.Cached,
		"empty_corpus", summary.EmptyCorpus,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"mean_score", summary.Scores.Mean,
		"mean_hits", summary.Scores.MeanHits,
		"duration", summary.Duration,
	)
	return summary, nil
}

func (r *Runner) process(ctx context.Context, qc ingestion.QueryContext, log *slog.Logger) outcome {
	out := outcome{instanceID: qc.InstanceID, source: qc.Source, documents: len(qc.Corpus)}
	if r.metrics != nil {
		r.metrics.ContextsInFlight.Inc()
		defer r.metrics.ContextsInFlight.Dec()
	}
	ctx, span := tracing.StartSpan(ctx, "rank", qc.InstanceID)
	start := time.Now()

	var rec *ingestion.Record
	var cached bool
	err := resilience.WithTimeout(ctx, r.cfg.ContextTimeout, qc.InstanceID, func(ctx context.Context) error {
		var err error
		if r.cache != nil && len(qc.Corpus) > 0 && strings.TrimSpace(qc.Query) != "" {
			rec, cached, err = r.cache.GetOrCompute(ctx, qc, func() (*ingestion.Record, error) {
				return r.ranker.Execute(ctx, qc)
			})
			return err
		}
		rec, err = r.ranker.Execute(ctx, qc)
		return err
	})
	span.SetAttr("documents", len(qc.Corpus))
	span.End()
	span.Log(log)
	out.elapsed = time.Since(start)

	if err != nil {
		out.err = err
		return out
	}
	if len(qc.Corpus) == 0 && !r.cfg.EmitEmptyCorpus {
		out.err = apperrors.New(apperrors.ErrEmptyCorpus, qc.InstanceID, "corpus has no documents")
		return out
	}
	out.rec = rec
	out.cached = cached
	return out
}

// aggregate owns snk. After the first write failure it cancels the batch
// and only drains the channel.
func (r *Runner) aggregate(
	ctx context.Context,
	cancel context.CancelFunc,
	results <-chan outcome,
	snk sink.Sink,
	summary *Summary,
	log *slog.Logger,
) error {
	var fatal error
	for res := range results {
		if fatal != nil {
			continue
		}
		if res.err != nil {
			r.skip(ctx, res, summary, log)
			continue
		}
		if err := snk.Write(ctx, *res.rec); err != nil {
			r.observeSink("error")
			if !errors.Is(err, apperrors.ErrSinkFailed) {
				err = fmt.Errorf("%w: %v", apperrors.ErrSinkFailed, err)
			}
			fatal = fmt.Errorf("writing record %s: %w", res.instanceID, err)
			cancel()
			continue
		}
		r.observeSink("ok")
		summary.addRecord(res.rec)
		label := "ranked"
		switch {
		case res.documents == 0:
			summary.EmptyCorpus++
			label = "empty_corpus"
		case res.cached:
			summary.Cached++
			label = "cached"
		}
		if r.metrics != nil {
			r.metrics.ContextsTotal.WithLabelValues(label).Inc()
			r.metrics.ContextDuration.Observe(res.elapsed.Seconds())
			r.metrics.CorpusDocuments.Observe(float64(res.documents))
			r.metrics.HitsPerRecord.Observe(float64(len(res.rec.Hits)))
		}
	}
	return fatal
}

func (r *Runner) skip(ctx context.Context, res outcome, summary *Summary, log *slog.Logger) {
	// Contexts interrupted by the batch's own cancellation are not counted.
	if ctx.Err() != nil && errors.Is(res.err, context.Canceled) {
		return
	}
	reason := apperrors.Reason(res.err)
	failed := !apperrors.IsSkippable(res.err)
	summary.addSkip(reason, failed)
	if r.metrics != nil {
		r.metrics.ContextsTotal.WithLabelValues(reason).Inc()
	}
	attrs := []any{"instance_id", res.instanceID, "reason", reason, "error", res.err}
	if res.source != "" {
		attrs = append(attrs, "source", res.source)
	}
	if failed {
		log.Error("query context failed", attrs...)
		return
	}
	log.Warn("query context skipped", attrs...)
}

func (r *Runner) observeSink(status string) {
	if r.metrics != nil {
		r.metrics.SinkWritesTotal.WithLabelValues(status).Inc()
	}
}

func abort(snk sink.Sink, log *slog.Logger) {
	var err error
	if a, ok := snk.(sink.Aborter); ok {
		err = a.Abort()
	} else {
		err = snk.Close()
	}
	if err != nil {
		log.Warn("closing sink after failure", "error", err)
	}
}

func instanceOf(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.InstanceID
	}
	return ""
}
