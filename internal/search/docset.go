package search

import (
	"github.com/RoaringBitmap/roaring"

	"harshagw/bm25eval/internal/index"
)

// accumulator is the candidate score table of a single query. It is created
// inside Rank and never outlives the call.
type accumulator struct {
	docs   *roaring.Bitmap
	scores map[uint32]float64
}

func newAccumulator(candidates *roaring.Bitmap) *accumulator {
	return &accumulator{
		docs:   candidates,
		scores: make(map[uint32]float64, candidates.GetCardinality()),
	}
}

func (a *accumulator) add(docNum uint32, w float64) {
	a.scores[docNum] += w
}

// Count returns the number of candidate documents.
func (a *accumulator) Count() uint64 {
	return a.docs.GetCardinality()
}

// materialize converts the table to results in docNum order.
func (a *accumulator) materialize(idx *index.Index) []Result {
	results := make([]Result, 0, a.docs.GetCardinality())
	iter := a.docs.Iterator()
	for iter.HasNext() {
		docNum := iter.Next()
		extID, ok := idx.DocID(docNum)
		if !ok {
			continue
		}
		results = append(results, Result{
			DocID: extID,
			Score: a.scores[docNum],
		})
	}
	return results
}
