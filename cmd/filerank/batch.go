package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/batch"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	batchInput   string
	batchOutput  string
	batchWorkers int
	batchSummary bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Rank every query context of an input and write one record per context",
	Long: `Read query contexts from a JSONL file, a pull-request manifest or a Kafka
topic, rank each context's corpus and write the results to the configured sink.

Examples:
  filerank batch --config filerank.yaml
  filerank batch --input contexts.jsonl --output results.jsonl --workers 8
  FR_OUTPUT_KIND=postgres filerank batch -c filerank.yaml`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchInput, "input", "i", "", "Override input.path")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "Override output.path (jsonl output only)")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "Override batch.workers")
	batchCmd.Flags().BoolVar(&batchSummary, "summary", true, "Print a JSON run summary to stderr")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if batchInput != "" {
		cfg.Input.Path = batchInput
	}
	if batchOutput != "" {
		cfg.Output.Path = batchOutput
	}
	if batchWorkers > 0 {
		cfg.Batch.Workers = batchWorkers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	checker := health.NewChecker()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, reg, checker)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(sctx)
		}()
	}

	exec := executor.New(executorOptions(cfg))
	opts := []batch.Option{batch.WithMetrics(m)}
	resultCache, closeCache := openCache(cfg, exec.Options(), m, checker)
	defer closeCache()
	if resultCache != nil {
		opts = append(opts, batch.WithCache(resultCache))
	}

	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()
	snk, err := openSink(ctx, cfg, runID, checker)
	if err != nil {
		return err
	}

	log.Info("starting batch",
		"input_format", cfg.Input.Format,
		"input", cfg.Input.Path,
		"output_kind", cfg.Output.Kind,
		"k1", cfg.Ranking.BM25.K1,
		"b", cfg.Ranking.BM25.B,
		"wide_k", cfg.Ranking.WideK,
		"narrow_k", cfg.Ranking.NarrowK,
	)
	summary, runErr := batch.New(exec, cfg.Batch, opts...).Run(ctx, src, snk)
	if batchSummary {
		enc := json.NewEncoder(cmd.ErrOrStderr())
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			log.Error("writing run summary", "error", err)
			if runErr == nil {
				return fmt.Errorf("writing run summary: %w", err)
			}
		}
	}
	return runErr
}
