// Package corpus holds the per-document length statistics used by the ranker.
package corpus

import (
	"errors"
	"fmt"
	"sort"

	"harshagw/bm25eval/internal/analysis"
	"harshagw/bm25eval/internal/index"
)

var ErrEmptyCorpus = errors.New("corpus has no documents")

// Stats is immutable after construction and safe for concurrent reads.
type Stats struct {
	lengths      map[string]int
	total        int
	avgDocLength float64
}

// NewStats computes the average over exactly the listed documents.
func NewStats(lengths map[string]int) (*Stats, error) {
	if len(lengths) == 0 {
		return nil, ErrEmptyCorpus
	}

	s := &Stats{lengths: make(map[string]int, len(lengths))}
	for id, l := range lengths {
		if l < 0 {
			return nil, fmt.Errorf("negative length %d for doc %s", l, id)
		}
		s.lengths[id] = l
		s.total += l
	}
	s.avgDocLength = float64(s.total) / float64(len(s.lengths))
	return s, nil
}

// FromIndex derives document lengths from the index: the sum of term
// frequencies per document, skipping stop words.
func FromIndex(idx *index.Index, stop analysis.StopWords) (*Stats, error) {
	lengths := make(map[string]int, idx.NumDocs())
	for _, id := range idx.DocIDs() {
		lengths[id] = 0
	}
	for _, term := range idx.Terms() {
		if stop.Contains(term) {
			continue
		}
		for _, p := range idx.PostingList(term) {
			lengths[p.DocID] += p.Frequency
		}
	}
	return NewStats(lengths)
}

// N is the number of documents.
func (s *Stats) N() int { return len(s.lengths) }

func (s *Stats) AvgDocLength() float64 { return s.avgDocLength }

func (s *Stats) TotalLength() int { return s.total }

func (s *Stats) Length(docID string) (int, bool) {
	l, ok := s.lengths[docID]
	return l, ok
}

// Lengths returns a copy of the length table.
func (s *Stats) Lengths() map[string]int {
	out := make(map[string]int, len(s.lengths))
	for id, l := range s.lengths {
		out[id] = l
	}
	return out
}

// DocIDs returns the documents in ascending order.
func (s *Stats) DocIDs() []string {
	ids := make([]string, 0, len(s.lengths))
	for id := range s.lengths {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
