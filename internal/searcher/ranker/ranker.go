package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/indexer/tokenizer"
)

// ScoredDoc is the score of one corpus document. Index is the document's
// position in the corpus and is used for deterministic tie-breaking.
type ScoredDoc struct {
	Index int     `json:"-"`
	DocID string  `json:"docid"`
	Score float64 `json:"score"`
}

// Params are the BM25 tuning constants.
type Params struct {
	K1 float64 `yaml:"k1" validate:"gte=0"`
	B  float64 `yaml:"b" validate:"gte=0,lte=1"`
}

// DefaultParams returns k1=1.5, b=0.75.
func DefaultParams() Params {
	return Params{K1: 1.5, B: 0.75}
}

// Score tokenizes query and scores every document of idx against it.
func Score(idx *index.CorpusIndex, query string, p Params) []ScoredDoc {
	return ScoreTerms(idx, tokenizer.Terms(query), p)
}

// ScoreTerms returns one ScoredDoc per corpus document, in corpus order.
// The result is unsorted; selection happens in a separate step so that
// re-weighting can run between the wide and narrow cuts.
func ScoreTerms(idx *index.CorpusIndex, terms []string, p Params) []ScoredDoc {
	n := idx.N()
	result := make([]ScoredDoc, n)
	for i := 0; i < n; i++ {
		result[i] = ScoredDoc{Index: i, DocID: idx.DocID(i)}
	}
	if n == 0 {
		return result
	}
	avgDocLength := idx.AvgDocLength()
	for _, term := range terms {
		idf := computeIDF(int64(n), int64(idx.DocFrequency(term)))
		if idf == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			tf := idx.TermFrequency(i, term)
			if tf == 0 {
				continue
			}
			tfNorm := computeTFNorm(
				float64(tf),
				float64(idx.DocLength(i)),
				avgDocLength,
				p,
			)
			result[i].Score += idf * tfNorm
		}
	}
	return result
}

// computeIDF is zero for terms absent from the corpus or present in every
// document. Terms in more than half the corpus would go negative and are
// clamped to zero as well, so a contribution is never below zero.
func computeIDF(totalDocs int64, docFreq int64) float64 {
	if docFreq <= 0 || docFreq >= totalDocs {
		return 0
	}
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Max(math.Log(numerator/denominator), 0)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64, p Params) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + p.K1*(1-p.B+p.B*lengthRatio)
	if denominator <= 0 {
		return 0
	}
	return (termFreq * (p.K1 + 1)) / denominator
}
