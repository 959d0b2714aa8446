// Package feedback holds relevance judgments and the per-query relevance
// feedback derived from them.
package feedback

import (
	"sort"
	"strconv"
	"strings"
)

// Judgments maps query IDs to their judged-relevant documents. It is built
// once and read-only afterwards.
type Judgments struct {
	ordered map[string][]string
	sets    map[string]map[string]struct{}
}

func NewJudgments() *Judgments {
	return &Judgments{
		ordered: make(map[string][]string),
		sets:    make(map[string]map[string]struct{}),
	}
}

// Add marks docID relevant for queryID. Repeated pairs are counted once.
func (j *Judgments) Add(queryID, docID string) {
	set := j.sets[queryID]
	if set == nil {
		set = make(map[string]struct{})
		j.sets[queryID] = set
	}
	if _, ok := set[docID]; ok {
		return
	}
	set[docID] = struct{}{}
	j.ordered[queryID] = append(j.ordered[queryID], docID)
}

// Relevant returns the relevant documents of a query in judgment-file order.
func (j *Judgments) Relevant(queryID string) []string {
	if j == nil {
		return nil
	}
	docs := j.ordered[queryID]
	out := make([]string, len(docs))
	copy(out, docs)
	return out
}

func (j *Judgments) IsRelevant(queryID, docID string) bool {
	if j == nil {
		return false
	}
	_, ok := j.sets[queryID][docID]
	return ok
}

// Count returns R, the number of judged-relevant documents for a query.
func (j *Judgments) Count(queryID string) int {
	if j == nil {
		return 0
	}
	return len(j.ordered[queryID])
}

func (j *Judgments) Has(queryID string) bool {
	return j.Count(queryID) > 0
}

// QueryIDs returns the judged queries, numeric IDs in numeric order.
func (j *Judgments) QueryIDs() []string {
	if j == nil {
		return nil
	}
	ids := make([]string, 0, len(j.ordered))
	for id := range j.ordered {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids
}

// Len returns the number of (query, document) pairs.
func (j *Judgments) Len() int {
	if j == nil {
		return 0
	}
	n := 0
	for _, docs := range j.ordered {
		n += len(docs)
	}
	return n
}

// SortIDs orders IDs numerically when both parse as integers, and
// lexicographically otherwise.
func SortIDs(ids []string) {
	sort.Slice(ids, func(a, b int) bool {
		return LessID(ids[a], ids[b])
	})
}

func LessID(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			return na < nb
		}
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

// Normalizer rewrites judgment document IDs to match corpus IDs.
type Normalizer func(docID string) string

// Identity leaves IDs unchanged.
func Identity(docID string) string { return docID }

// PadDocID zero-pads the part after the first '-' so the whole ID is
// width characters long: with width 9, CACM-1 becomes CACM-0001.
// IDs without a '-' and IDs already at least width long are unchanged.
func PadDocID(width int) Normalizer {
	if width <= 0 {
		return Identity
	}
	return func(docID string) string {
		cut := strings.Index(docID, "-") + 1
		if cut == 0 || len(docID) >= width {
			return docID
		}
		zeros := strings.Repeat("0", width-len(docID))
		return docID[:cut] + zeros + docID[cut:]
	}
}
