// Package reweight adjusts BM25 scores using the document path. Files whose
// path mentions a query term are boosted and files that look like tests,
// examples or demos are penalised.
package reweight

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/ranker"
)

// Reweighter holds the multiplicative factors and the penalty markers.
type Reweighter struct {
	Boost   float64  `yaml:"boost" validate:"gte=0"`
	Penalty float64  `yaml:"penalty" validate:"gte=0"`
	Markers []string `yaml:"markers"`
}

// Default returns boost 2.0, penalty 0.5 and markers test, example, demo.
func Default() Reweighter {
	return Reweighter{
		Boost:   2.0,
		Penalty: 0.5,
		Markers: []string{"test", "example", "demo"},
	}
}

// Apply returns a re-weighted copy of hits; the input slice is left as is.
// Boost and penalty are independent and both apply when both match.
func (r Reweighter) Apply(hits []ranker.ScoredDoc, queryTerms []string) []ranker.ScoredDoc {
	terms := lowerAll(queryTerms)
	markers := lowerAll(r.Markers)
	out := make([]ranker.ScoredDoc, len(hits))
	for i, hit := range hits {
		path := strings.ToLower(hit.DocID)
		factor := 1.0
		if containsAny(path, terms) {
			factor *= r.Boost
		}
		if containsAny(path, markers) {
			factor *= r.Penalty
		}
		hit.Score *= factor
		out[i] = hit
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
