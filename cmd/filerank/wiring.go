package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/source"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/filerank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/filerank/pkg/redis"
)

func openSource(cfg *config.Config) (source.Source, error) {
	in := cfg.Input
	switch in.Format {
	case "jsonl":
		path := in.Path
		if path == "" {
			path = "-"
		}
		return source.OpenJSONL(path)
	case "manifest":
		if in.Path == "" {
			return nil, fmt.Errorf("%w: input.path must name the pull-request manifest", apperrors.ErrInvalidConfig)
		}
		return source.OpenManifest(in.Path, in.SnapshotDir, in.InstancePrefix)
	case "kafka":
		consumer := kafka.NewConsumer(cfg.Kafka, in.Topic)
		return source.NewKafka(consumer, in.Topic, in.SnapshotDir, cfg.Kafka.IdleTimeout), nil
	default:
		return nil, fmt.Errorf("%w: input format %q", apperrors.ErrUnsupportedBackend, in.Format)
	}
}

func openSink(ctx context.Context, cfg *config.Config, runID string, checker *health.Checker) (sink.Sink, error) {
	out := cfg.Output
	switch out.Kind {
	case "jsonl":
		return sink.OpenJSONL(out.Path)
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka, out.Topic)
		return sink.NewKafka(producer, out.Retry), nil
	case "postgres":
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		checker.Register("postgres", health.FromPing(client.Ping, false))
		s, err := sink.NewPostgres(ctx, client, out.Table, runID, out.Retry)
		if err != nil {
			client.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: output kind %q", apperrors.ErrUnsupportedBackend, out.Kind)
	}
}

// openCache connects to Redis when caching is enabled. An unreachable
// Redis disables caching for the run instead of failing it.
func openCache(cfg *config.Config, opts executor.Options, m *metrics.Metrics, checker *health.Checker) (*cache.ResultCache, func()) {
	if !cfg.Cache.Enabled {
		return nil, func() {}
	}
	client, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, result caching disabled", "error", err)
		checker.Register("redis", func(context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "unavailable at startup"}
		})
		return nil, func() {}
	}
	checker.Register("redis", health.FromPing(client.Ping, true))
	slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Cache.TTL)
	return cache.New(client, cfg.Cache.TTL, opts, m), func() { client.Close() }
}
