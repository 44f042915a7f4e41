// Package index builds the per-query corpus statistics consumed by the
// BM25 ranker. A CorpusIndex is built once from the documents of a single
// query context and is read-only afterwards, so it needs no locking and
// may be shared by concurrent readers.
package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/indexer/tokenizer"
)

// CorpusIndex holds document frequencies, per-document term frequencies
// and document lengths for one corpus. Documents are addressed by their
// position in the input slice.
type CorpusIndex struct {
	docIDs       []string
	docFreq      map[string]int
	termFreq     []map[string]int
	docLengths   []int
	avgDocLength float64
}

// Build tokenizes every document and returns the resulting index. An
// empty input produces a valid index with N() == 0.
func Build(docs []Document) *CorpusIndex {
	idx := &CorpusIndex{
		docIDs:     make([]string, len(docs)),
		docFreq:    make(map[string]int),
		termFreq:   make([]map[string]int, len(docs)),
		docLengths: make([]int, len(docs)),
	}
	var totalTokens int
	for i, doc := range docs {
		terms := tokenizer.Terms(doc.Content)
		tf := make(map[string]int)
		for _, term := range terms {
			tf[term]++
		}
		for term := range tf {
			idx.docFreq[term]++
		}
		idx.docIDs[i] = doc.ID
		idx.termFreq[i] = tf
		idx.docLengths[i] = len(terms)
		totalTokens += len(terms)
	}
	if len(docs) > 0 {
		idx.avgDocLength = float64(totalTokens) / float64(len(docs))
	}
	return idx
}

// N returns the number of documents in the corpus.
func (c *CorpusIndex) N() int {
	return len(c.docIDs)
}

// DocFrequency returns the number of documents containing term.
func (c *CorpusIndex) DocFrequency(term string) int {
	return c.docFreq[term]
}

// TermFrequency returns the number of occurrences of term in document i.
func (c *CorpusIndex) TermFrequency(i int, term string) int {
	return c.termFreq[i][term]
}

// DocLength returns the token count of document i.
func (c *CorpusIndex) DocLength(i int) int {
	return c.docLengths[i]
}

// DocID returns the identifier of document i.
func (c *CorpusIndex) DocID(i int) string {
	return c.docIDs[i]
}

// AvgDocLength returns the mean document length, or 0 for an empty corpus.
func (c *CorpusIndex) AvgDocLength() float64 {
	return c.avgDocLength
}

// Vocabulary returns every distinct term of the corpus in sorted order.
func (c *CorpusIndex) Vocabulary() []string {
	terms := make([]string, 0, len(c.docFreq))
	for term := range c.docFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}
