package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/filerank/pkg/errors"
)

type Config struct {
	Dir         string
	Concurrency int
	Duration    time.Duration
	Queries     []string
}

type Stats struct {
	totalContexts atomic.Int64
	rankedCount   atomic.Int64
	errorCount    atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	reasons       map[string]*atomic.Int64
	reasonsMu     sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		reasons:   make(map[string]*atomic.Int64),
	}
}

func (s *Stats) RecordContext(duration time.Duration, err error) {
	s.totalContexts.Add(1)

	reason := apperrors.Reason(err)
	if err != nil {
		s.errorCount.Add(1)
	} else {
		s.rankedCount.Add(1)
		s.latenciesMu.Lock()
		s.latencies = append(s.latencies, duration)
		s.latenciesMu.Unlock()
	}

	s.reasonsMu.Lock()
	if _, ok := s.reasons[reason]; !ok {
		s.reasons[reason] = &atomic.Int64{}
	}
	s.reasons[reason].Add(1)
	s.reasonsMu.Unlock()
}

func main() {
	dir := flag.String("dir", "", "source tree to rank (default: synthetic corpus)")
	concurrency := flag.Int("concurrency", 4, "number of concurrent workers")
	duration := flag.Duration("duration", 10*time.Second, "test duration")
	flag.Parse()

	queries := []string{
		"DataLoader crashes on empty batch",
		"CacheDataset ignores transform",
		"sliding window inference memory",
		"spatial crop out of bounds",
		"metric reduction nan",
		"distributed sampler shuffle seed",
		"parser rejects nested config",
		"network weights fail to load",
		"tensor dtype mismatch",
		"example notebook broken",
	}

	cfg := Config{
		Dir:         *dir,
		Concurrency: *concurrency,
		Duration:    *duration,
		Queries:     queries,
	}

	corpus, err := loadCorpus(cfg.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading corpus: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== filerank Load Test ===")
	fmt.Printf("Corpus:      %d documents\n", len(corpus))
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	stats := runLoadTest(cfg, corpus)
	printReport(stats, cfg.Duration)
}

func loadCorpus(dir string) ([]index.Document, error) {
	if dir != "" {
		return source.LoadDirectory(dir, source.DefaultDirectoryOptions())
	}
	return syntheticCorpus(500), nil
}

var vocabulary = []string{
	"loader", "dataset", "transform", "inference", "spatial", "crop",
	"metric", "network", "tensor", "sampler", "config", "batch",
}

func syntheticCorpus(n int) []index.Document {
	docs := make([]index.Document, n)
	for i := range docs {
		words := make([]byte, 0, 2048)
		for w := 0; w < 150; w++ {
			words = append(words, vocabulary[(i*5+w*7)%len(vocabulary)]...)
			words = append(words, ' ')
		}
		docs[i] = index.Document{
			ID:      fmt.Sprintf("monai/%s/module_%d.py", vocabulary[i%len(vocabulary)], i),
			Content: string(words),
		}
	}
	return docs
}

func runLoadTest(cfg Config, corpus []index.Document) *Stats {
	stats := NewStats()
	exec := executor.New(executor.DefaultOptions())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			queryIdx := workerID

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				qc := ingestion.QueryContext{
					InstanceID: fmt.Sprintf("LOAD_%d_%d", workerID, queryIdx),
					Query:      cfg.Queries[queryIdx%len(cfg.Queries)],
					Corpus:     corpus,
				}
				queryIdx++

				start := time.Now()
				_, err := exec.Execute(ctx, qc)
				if ctx.Err() != nil {
					return
				}
				stats.RecordContext(time.Since(start), err)
			}
		}(w)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalContexts.Load()
	ranked := stats.rankedCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Contexts:  %d\n", total)
	fmt.Printf("Ranked:          %d\n", ranked)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		fmt.Printf("Contexts/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})
		avg, stddev := meanStdDev(latencies)

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
		fmt.Printf("StdDev: %s\n", stddev)
	}

	fmt.Println()
	fmt.Println("=== Outcomes ===")
	stats.reasonsMu.Lock()
	reasons := make([]string, 0, len(stats.reasons))
	for reason := range stats.reasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Printf("  %s: %d\n", reason, stats.reasons[reason].Load())
	}
	stats.reasonsMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No contexts completed. Is the duration too short?")
		os.Exit(1)
	}
}

func meanStdDev(latencies []time.Duration) (time.Duration, time.Duration) {
	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg := sum / time.Duration(len(latencies))

	var sumSquared float64
	for _, l := range latencies {
		diff := float64(l) - float64(avg)
		sumSquared += diff * diff
	}
	return avg, time.Duration(math.Sqrt(sumSquared / float64(len(latencies))))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
