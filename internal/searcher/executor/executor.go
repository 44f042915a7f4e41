package executor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/reweight"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/selector"
	apperrors "github.com/Adithya-Monish-Kumar-K/filerank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/tracing"
)

// Options configure a ranking pass.
type Options struct {
	Params     ranker.Params
	WideK      int
	NarrowK    int
	Reweighter reweight.Reweighter
}

// DefaultOptions returns k1=1.5, b=0.75, a wide cut of 20 and a narrow cut
// of 5 with the default path re-weighting.
func DefaultOptions() Options {
	return Options{
		Params:     ranker.DefaultParams(),
		WideK:      20,
		NarrowK:    5,
		Reweighter: reweight.Default(),
	}
}

// Executor ranks one query context at a time. It holds no per-context
// state and is safe for concurrent use.
type Executor struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options) *Executor {
	return &Executor{
		opts:   opts,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Options returns the ranking options the executor was built with.
func (e *Executor) Options() Options {
	return e.opts
}

// Execute builds a fresh index over qc.Corpus, scores it against qc.Query,
// keeps the WideK best documents, re-weights them by path and returns the
// NarrowK best. Path re-weighting never reaches documents outside the wide
// cut. An empty query yields ErrEmptyQuery; an empty corpus yields a record
// without hits.
func (e *Executor) Execute(ctx context.Context, qc ingestion.QueryContext) (*ingestion.Record, error) {
	query := strings.TrimSpace(qc.Query)
	if query == "" {
		return nil, apperrors.New(apperrors.ErrEmptyQuery, qc.InstanceID, "query is empty after trimming")
	}
	record := &ingestion.Record{InstanceID: qc.InstanceID, Hits: []ingestion.Hit{}}
	if len(qc.Corpus) == 0 {
		e.logger.Warn("empty corpus, emitting no hits", "instance_id", qc.InstanceID, "source", qc.Source)
		return record, nil
	}
	terms := tokenizer.Terms(query)

	_, span := tracing.StartChildSpan(ctx, "build")
	idx := index.Build(qc.Corpus)
	span.SetAttr("documents", idx.N())
	span.End()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, span = tracing.StartChildSpan(ctx, "score")
	scores := ranker.ScoreTerms(idx, terms, e.opts.Params)
	span.SetAttr("terms", len(terms))
	span.End()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, span = tracing.StartChildSpan(ctx, "select_wide")
	wide := selector.SelectTopK(scores, e.opts.WideK)
	span.End()

	_, span = tracing.StartChildSpan(ctx, "reweight")
	reweighted := e.opts.Reweighter.Apply(wide, terms)
	span.End()

	_, span = tracing.StartChildSpan(ctx, "select_narrow")
	final := selector.SelectTopK(reweighted, e.opts.NarrowK)
	span.End()

	for _, doc := range final {
		record.Hits = append(record.Hits, ingestion.Hit{DocID: doc.DocID, Score: doc.Score})
	}
	e.logger.Debug("query context ranked",
		"instance_id", qc.InstanceID,
		"documents", idx.N(),
		"avg_doc_length", idx.AvgDocLength(),
		"query_terms", len(terms),
		"wide", len(wide),
		"results", len(record.Hits),
	)
	return record, nil
}
