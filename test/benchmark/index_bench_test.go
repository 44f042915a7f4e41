// Package benchmark contains Go benchmarks for the tokenizer, the per-context
// corpus index, BM25 scoring, top-K selection and the batch runner,
// measuring throughput and allocation behaviour.
package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/indexer/index"
)

var vocabulary = []string{
	"distributed", "transform", "loader", "dataset", "network", "tensor",
	"parser", "metric", "engine", "cache", "inference", "spatial",
}

// syntheticCorpus builds n documents of roughly words tokens each.
func syntheticCorpus(n, words int) []index.Document {
	docs := make([]index.Document, n)
	for i := range docs {
		var sb strings.Builder
		for w := 0; w < words; w++ {
			sb.WriteString(vocabulary[(i*7+w*3)%len(vocabulary)])
			sb.WriteByte(' ')
		}
		docs[i] = index.Document{
			ID:      fmt.Sprintf("pkg/module_%d/file_%d.py", i%20, i),
			Content: sb.String(),
		}
	}
	return docs
}

// BenchmarkCorpusIndexBuild measures building a fresh index at various
// corpus sizes, the dominant per-context cost.
func BenchmarkCorpusIndexBuild(b *testing.B) {
	for _, n := range []int{100, 1000, 5000} {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			docs := syntheticCorpus(n, 200)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				idx := index.Build(docs)
				_ = idx
			}
		})
	}
}

// BenchmarkCorpusIndexReadParallel measures concurrent reads of one index.
func BenchmarkCorpusIndexReadParallel(b *testing.B) {
	idx := index.Build(syntheticCorpus(1000, 200))
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			term := vocabulary[i%len(vocabulary)]
			_ = idx.DocFrequency(term)
			_ = idx.TermFrequency(i%idx.N(), term)
			i++
		}
	})
}
