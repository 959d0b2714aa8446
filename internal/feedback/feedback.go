package feedback

import (
	"github.com/RoaringBitmap/roaring"

	"harshagw/bm25eval/internal/index"
)

// Query is the relevance feedback for one query: R judged-relevant
// documents and, per term, ri of them containing it. The zero value is the
// no-feedback case where R and every ri are 0.
type Query struct {
	r        int
	relevant *roaring.Bitmap
	idx      *index.Index
}

// None returns feedback that leaves BM25 in its plain IDF form.
func None() Query {
	return Query{}
}

// ForQuery derives feedback for queryID. Judged documents missing from the
// index count toward R but never toward any ri.
func ForQuery(idx *index.Index, j *Judgments, queryID string) Query {
	if j == nil || !j.Has(queryID) {
		return None()
	}
	return Query{
		r:        j.Count(queryID),
		relevant: idx.DocSet(j.Relevant(queryID)),
		idx:      idx,
	}
}

// R returns the number of judged-relevant documents.
func (q Query) R() int { return q.r }

// Ri returns how many judged-relevant documents contain term.
func (q Query) Ri(term string) int {
	if q.idx == nil || q.relevant == nil {
		return 0
	}
	return q.idx.CountIn(term, q.relevant)
}

// Enabled reports whether any judgments back this feedback.
func (q Query) Enabled() bool { return q.r > 0 }
