package index

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring"
)

type Posting struct {
	DocNum    uint32
	DocID     string
	Frequency int
}

type termPostings struct {
	postings []Posting // sorted by DocNum
	docs     *roaring.Bitmap
}

// Index is an immutable term -> document posting index. Documents are
// numbered densely in ascending document-ID order, so building twice over
// the same corpus yields identical postings whatever the insertion order.
// It is safe for concurrent read access.
type Index struct {
	docIDs  []string
	docNums map[string]uint32
	terms   map[string]*termPostings
	dict    *dictionary
}

// FromPostings creates an Index from a parsed term -> docID -> freq mapping.
// extraDocs lists documents that may contain no indexed term at all.
func FromPostings(postings map[string]map[string]int, extraDocs ...string) (*Index, error) {
	seen := make(map[string]struct{})
	var docIDs []string
	addDoc := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			docIDs = append(docIDs, id)
		}
	}
	for _, docs := range postings {
		for id := range docs {
			addDoc(id)
		}
	}
	for _, id := range extraDocs {
		addDoc(id)
	}
	return newIndex(docIDs, postings)
}

func newIndex(docIDs []string, postings map[string]map[string]int) (*Index, error) {
	sorted := make([]string, len(docIDs))
	copy(sorted, docIDs)
	sort.Strings(sorted)

	idx := &Index{
		docIDs:  sorted,
		docNums: make(map[string]uint32, len(sorted)),
		terms:   make(map[string]*termPostings, len(postings)),
	}
	for i, id := range sorted {
		idx.docNums[id] = uint32(i)
	}

	termList := make([]string, 0, len(postings))
	for term := range postings {
		termList = append(termList, term)
	}
	sort.Strings(termList)

	for _, term := range termList {
		docs := postings[term]
		if len(docs) == 0 {
			continue
		}
		tp := &termPostings{
			postings: make([]Posting, 0, len(docs)),
			docs:     roaring.New(),
		}
		for docID, freq := range docs {
			if freq < 1 {
				return nil, fmt.Errorf("%w: term %q doc %s freq %d", ErrInvalidFrequency, term, docID, freq)
			}
			num, ok := idx.docNums[docID]
			if !ok {
				return nil, fmt.Errorf("term %q references unknown doc %s", term, docID)
			}
			tp.postings = append(tp.postings, Posting{DocNum: num, DocID: docID, Frequency: freq})
			tp.docs.Add(num)
		}
		sort.Slice(tp.postings, func(i, j int) bool {
			return tp.postings[i].DocNum < tp.postings[j].DocNum
		})
		tp.docs.RunOptimize()
		idx.terms[term] = tp
	}

	dict, err := buildDictionary(idx.Terms())
	if err != nil {
		return nil, fmt.Errorf("failed to build term dictionary: %w", err)
	}
	idx.dict = dict

	return idx, nil
}

// NumDocs returns N, the number of documents in the corpus.
func (idx *Index) NumDocs() int { return len(idx.docIDs) }

// NumTerms returns the vocabulary size.
func (idx *Index) NumTerms() int { return len(idx.terms) }

// Terms returns all indexed terms in ascending order.
func (idx *Index) Terms() []string {
	terms := make([]string, 0, len(idx.terms))
	for t := range idx.terms {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// DocIDs returns all document IDs in DocNum order.
func (idx *Index) DocIDs() []string {
	out := make([]string, len(idx.docIDs))
	copy(out, idx.docIDs)
	return out
}

// DocID returns the external ID for a given docNum.
func (idx *Index) DocID(num uint32) (string, bool) {
	if int(num) >= len(idx.docIDs) {
		return "", false
	}
	return idx.docIDs[num], true
}

// DocNum returns the docNum for an external ID.
func (idx *Index) DocNum(docID string) (uint32, bool) {
	num, ok := idx.docNums[docID]
	return num, ok
}

// Postings returns docID -> term frequency for a term. The map is a copy;
// it is empty when the term was never seen.
func (idx *Index) Postings(term string) map[string]int {
	tp := idx.terms[term]
	if tp == nil {
		return map[string]int{}
	}
	out := make(map[string]int, len(tp.postings))
	for _, p := range tp.postings {
		out[p.DocID] = p.Frequency
	}
	return out
}

// PostingList returns the postings of a term sorted by DocNum.
// The slice is shared and must not be modified.
func (idx *Index) PostingList(term string) []Posting {
	if tp := idx.terms[term]; tp != nil {
		return tp.postings
	}
	return nil
}

// DocFreq returns the number of documents containing term.
func (idx *Index) DocFreq(term string) int {
	if tp := idx.terms[term]; tp != nil {
		return len(tp.postings)
	}
	return 0
}

// Freq returns the frequency of term in docID, 0 if absent.
func (idx *Index) Freq(term, docID string) int {
	tp := idx.terms[term]
	num, ok := idx.docNums[docID]
	if tp == nil || !ok || !tp.docs.Contains(num) {
		return 0
	}
	i := sort.Search(len(tp.postings), func(i int) bool {
		return tp.postings[i].DocNum >= num
	})
	return tp.postings[i].Frequency
}

// DocSet converts external IDs into a docNum bitmap, ignoring unknown IDs.
func (idx *Index) DocSet(docIDs []string) *roaring.Bitmap {
	bm := roaring.New()
	for _, id := range docIDs {
		if num, ok := idx.docNums[id]; ok {
			bm.Add(num)
		}
	}
	return bm
}

// Candidates returns the union of the postings of the given terms.
func (idx *Index) Candidates(terms ...string) *roaring.Bitmap {
	bitmaps := make([]*roaring.Bitmap, 0, len(terms))
	for _, t := range terms {
		if tp := idx.terms[t]; tp != nil {
			bitmaps = append(bitmaps, tp.docs)
		}
	}
	if len(bitmaps) == 0 {
		return roaring.New()
	}
	return roaring.FastOr(bitmaps...)
}

// CountIn returns how many documents of set contain term.
func (idx *Index) CountIn(term string, set *roaring.Bitmap) int {
	tp := idx.terms[term]
	if tp == nil || set == nil {
		return 0
	}
	return int(tp.docs.AndCardinality(set))
}
