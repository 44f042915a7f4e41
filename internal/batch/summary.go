package batch

import (
	"math"
	"time"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
)

// Summary describes a finished batch.
type Summary struct {
	RunID string `json:"run_id"`
	// Processed counts records written to the sink, Cached those among
	// them served from the result cache and EmptyCorpus those emitted
	// without hits because the corpus was empty.
	Processed   int `json:"processed"`
	Cached      int `json:"cached"`
	EmptyCorpus int `json:"empty_corpus"`
	// Skipped counts contexts dropped for a per-context reason (see
	// Reasons); Failed counts unexpected per-context errors.
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
	Reasons  map[string]int `json:"reasons"`
	Duration time.Duration  `json:"duration_ns"`
	Scores   ScoreStats     `json:"scores"`
}

// ScoreStats summarises the scores of every emitted hit.
type ScoreStats struct {
	Hits     int     `json:"hits"`
	Mean     float64 `json:"mean"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	MeanHits float64 `json:"mean_hits_per_record"`
	sum      float64
}

func newSummary(runID string) Summary {
	return Summary{RunID: runID, Reasons: make(map[string]int)}
}

func (s *Summary) addRecord(rec *ingestion.Record) {
	s.Processed++
	st := &s.Scores
	for _, h := range rec.Hits {
		if st.Hits == 0 {
			st.Min, st.Max = h.Score, h.Score
		}
		st.Min = math.Min(st.Min, h.Score)
		st.Max = math.Max(st.Max, h.Score)
		st.sum += h.Score
		st.Hits++
	}
	st.Mean = 0
	if st.Hits > 0 {
		st.Mean = st.sum / float64(st.Hits)
	}
	st.MeanHits = float64(st.Hits) / float64(s.Processed)
}

func (s *Summary) addSkip(reason string, failed bool) {
	if failed {
		s.Failed++
	} else {
		s.Skipped++
	}
	s.Reasons[reason]++
}
