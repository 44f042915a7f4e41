// Package e2e contains end-to-end tests that exercise the full ranking stack
// against real services: query contexts published to Kafka, ranked by the
// batch runner with a Redis result cache, and stored in PostgreSQL.
//
// Prerequisites:
//   - Kafka running (E2E_KAFKA_BROKER, default localhost:9092)
//   - PostgreSQL running (E2E_POSTGRES_*)
//   - Redis running (E2E_REDIS_ADDR), optional
//
// Tests skip when a required service is unreachable.
//
// Run with:
//
//	go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/batch"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/source"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/config"
	pkgkafka "github.com/Adithya-Monish-Kumar-K/filerank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/filerank/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/resilience"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

type e2eConfig struct {
	Kafka    config.KafkaConfig
	Postgres config.PostgresConfig
	Redis    config.RedisConfig
}

func loadE2EConfig() e2eConfig {
	return e2eConfig{
		Kafka: config.KafkaConfig{
			Brokers:       []string{envOrDefault("E2E_KAFKA_BROKER", "localhost:9092")},
			ConsumerGroup: "filerank-e2e-" + uuid.NewString()[:8],
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   5 * time.Second,
		},
		Postgres: config.PostgresConfig{
			Host:            envOrDefault("E2E_POSTGRES_HOST", "localhost"),
			Port:            envOrDefaultInt("E2E_POSTGRES_PORT", 5432),
			Database:        envOrDefault("E2E_POSTGRES_DB", "filerank"),
			User:            envOrDefault("E2E_POSTGRES_USER", "filerank"),
			Password:        envOrDefault("E2E_POSTGRES_PASSWORD", "localdev"),
			SSLMode:         "disable",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Minute,
		},
		Redis: config.RedisConfig{Addr: envOrDefault("E2E_REDIS_ADDR", "localhost:6379")},
	}
}

// createTopic creates a single-partition topic through the cluster
// controller, skipping the test when Kafka cannot be reached.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	if c, err := net.DialTimeout("tcp", broker, 2*time.Second); err != nil {
		t.Skipf("kafka unavailable: %v", err)
	} else {
		c.Close()
	}
	conn, err := kafka.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()
	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()
	require.NoError(t, cc.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestKafkaToPostgres publishes query contexts, ranks them in one batch and
// checks the stored rows.
func TestKafkaToPostgres(t *testing.T) {
	cfg := loadE2EConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}

	topic := "filerank-e2e-" + uuid.NewString()
	createTopic(t, cfg.Kafka.Brokers[0], topic)

	producer := pkgkafka.NewProducer(cfg.Kafka, topic)
	corpus := map[string]string{
		"a.py": "fix bug in parser",
		"b.py": "add parser test",
		"c.py": "unrelated utility",
	}
	events := []pkgkafka.Event{
		{Key: "E2E_1", Value: ingestion.ContextRecord{InstanceID: "E2E_1", Query: "parser bug", Corpus: corpus}},
		{Key: "E2E_2", Value: ingestion.ContextRecord{InstanceID: "E2E_2", Title: "utility", Corpus: corpus}},
		{Key: "E2E_3", Value: ingestion.ContextRecord{InstanceID: "E2E_3", Corpus: corpus}},
	}
	require.NoError(t, producer.PublishBatch(ctx, events))
	require.NoError(t, producer.Close())

	opts := []batch.Option{}
	if redisClient, err := pkgredis.NewClient(cfg.Redis); err == nil {
		defer redisClient.Close()
		opts = append(opts, batch.WithCache(cache.New(redisClient, time.Minute, executor.DefaultOptions(), nil)))
	} else {
		t.Logf("redis unavailable, running without cache: %v", err)
	}

	runID := uuid.NewString()
	out, err := sink.NewPostgres(ctx, db, "ranked_hits_e2e", runID, resilience.DefaultRetryConfig())
	require.NoError(t, err)
	src := source.NewKafka(pkgkafka.NewConsumer(cfg.Kafka, topic), topic, "", cfg.Kafka.IdleTimeout)
	defer src.Close()

	runner := batch.New(executor.New(executor.DefaultOptions()), config.BatchConfig{
		Workers:         2,
		ContextTimeout:  10 * time.Second,
		EmitEmptyCorpus: true,
	}, opts...)
	summary, err := runner.Run(ctx, src, out)
	require.NoError(t, err)
	t.Logf("summary: %+v", summary)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Reasons["empty_query"])

	check, err := postgres.New(ctx, cfg.Postgres)
	require.NoError(t, err)
	defer check.Close()
	var top string
	err = check.DB.QueryRowContext(ctx,
		`SELECT docid FROM "ranked_hits_e2e" WHERE run_id = $1 AND instance_id = $2 AND rank = 1`,
		runID, "E2E_1").Scan(&top)
	require.NoError(t, err)
	assert.Equal(t, "a.py", top)

	var rows int
	err = check.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM "ranked_hits_e2e" WHERE run_id = $1`, runID).Scan(&rows)
	require.NoError(t, err)
	assert.Equal(t, 6, rows, "run %s", runID)

	var contexts int
	err = check.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM "ranked_hits_e2e_contexts" WHERE run_id = $1`, runID).Scan(&contexts)
	require.NoError(t, err)
	assert.Equal(t, summary.Processed, contexts)
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
