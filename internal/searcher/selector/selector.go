// Package selector picks the k highest-scoring documents from a scored
// corpus. Equal scores are ordered by corpus position, so the output is
// reproducible for a given input.
package selector

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/ranker"
)

// SelectTopK returns at most k hits in descending score order. Ties keep
// ascending corpus Index. Zero-score hits are eligible.
func SelectTopK(hits []ranker.ScoredDoc, k int) []ranker.ScoredDoc {
	if k <= 0 || len(hits) == 0 {
		return []ranker.ScoredDoc{}
	}
	h := &scoredDocHeap{}
	heap.Init(h)
	for _, doc := range hits {
		if h.Len() < k {
			heap.Push(h, doc)
			continue
		}
		if ranksAbove(doc, (*h)[0]) {
			(*h)[0] = doc
			heap.Fix(h, 0)
		}
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.ScoredDoc)
	}
	return result
}

// ranksAbove reports whether a belongs before b in the final ordering.
func ranksAbove(a, b ranker.ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

// scoredDocHeap is a min-heap on the final ordering: the root is the hit
// that would be dropped first.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return ranksAbove(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
