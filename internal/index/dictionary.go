package index

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/couchbase/vellum"
	"github.com/couchbase/vellum/levenshtein"
	"github.com/couchbase/vellum/regexp"
)

// dictionary is an in-memory FST over the vocabulary. Values are term ordinals.
type dictionary struct {
	fst *vellum.FST
}

func buildDictionary(sortedTerms []string) (*dictionary, error) {
	if len(sortedTerms) == 0 {
		return &dictionary{}, nil
	}

	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, err
	}
	for i, term := range sortedTerms {
		if err := builder.Insert([]byte(term), uint64(i)); err != nil {
			return nil, err
		}
	}
	if err := builder.Close(); err != nil {
		return nil, err
	}

	fst, err := vellum.Load(buf.Bytes())
	if err != nil {
		return nil, err
	}
	return &dictionary{fst: fst}, nil
}

// collect drains an FST iterator into a slice of keys.
func collect(iter vellum.Iterator, err error) ([]string, error) {
	if errors.Is(err, vellum.ErrIteratorDone) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var terms []string
	for err == nil {
		key, _ := iter.Current()
		terms = append(terms, string(key))
		err = iter.Next()
	}
	if err != vellum.ErrIteratorDone {
		return nil, err
	}
	return terms, nil
}

func (d *dictionary) prefix(prefix string) ([]string, error) {
	if d.fst == nil {
		return nil, nil
	}
	start := []byte(prefix)
	end := prefixSuccessor(start)
	iter, err := d.fst.Iterator(start, end)
	return collect(iter, err)
}

func (d *dictionary) search(aut vellum.Automaton) ([]string, error) {
	if d.fst == nil {
		return nil, nil
	}
	iter, err := d.fst.Search(aut, nil, nil)
	return collect(iter, err)
}

// PrefixTerms returns all indexed terms starting with prefix, in order.
func (idx *Index) PrefixTerms(prefix string) ([]string, error) {
	return idx.dict.prefix(prefix)
}

// FuzzyTerms returns all indexed terms within edit distance of term.
func (idx *Index) FuzzyTerms(term string, fuzziness uint8) ([]string, error) {
	builder, err := levenshtein.NewLevenshteinAutomatonBuilder(fuzziness, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create levenshtein builder: %w", err)
	}
	aut, err := builder.BuildDfa(term, fuzziness)
	if err != nil {
		return nil, fmt.Errorf("failed to build fuzzy automaton: %w", err)
	}
	return idx.dict.search(aut)
}

// MatchingTerms returns all indexed terms matching a regular expression.
func (idx *Index) MatchingTerms(pattern string) ([]string, error) {
	aut, err := regexp.New(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	return idx.dict.search(aut)
}

// prefixSuccessor returns the lexicographically next prefix after the given one.
func prefixSuccessor(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}

	succ := bytes.Clone(prefix)

	for i := len(succ) - 1; i >= 0; i-- {
		if succ[i] < 0xff {
			succ[i]++
			return succ[:i+1]
		}
	}

	return nil
}
