package index

import (
	"errors"
	"fmt"

	"harshagw/bm25eval/internal/analysis"
)

var (
	ErrDuplicateDocument = errors.New("duplicate document")
	ErrInvalidFrequency  = errors.New("term frequency must be positive")
)

type Config struct {
	Analyzer analysis.Analyzer
}

func DefaultConfig() Config {
	return Config{
		Analyzer: analysis.NewWhitespace(),
	}
}

// Builder accumulates documents before freezing them into an immutable Index.
type Builder struct {
	terms    map[string]map[string]int // term -> docID -> freq
	docs     map[string]struct{}
	analyzer analysis.Analyzer
}

// NewBuilder creates a new index builder.
func NewBuilder(config Config) *Builder {
	analyzer := config.Analyzer
	if analyzer == nil {
		analyzer = analysis.NewWhitespace()
	}
	return &Builder{
		terms:    make(map[string]map[string]int),
		docs:     make(map[string]struct{}),
		analyzer: analyzer,
	}
}

// Add analyzes text and adds it as a document.
func (b *Builder) Add(docID, text string) error {
	return b.add(docID, b.analyzer.Analyze(text))
}

// AddTokens adds a document that was tokenized upstream.
func (b *Builder) AddTokens(docID string, tokens []string) error {
	tps := make([]analysis.TokenPosition, 0, len(tokens))
	for i, tok := range tokens {
		if tok == "" {
			continue
		}
		tps = append(tps, analysis.TokenPosition{Token: tok, Position: uint64(i)})
	}
	return b.add(docID, tps)
}

func (b *Builder) add(docID string, tokens []analysis.TokenPosition) error {
	if docID == "" {
		return fmt.Errorf("empty document id")
	}
	if _, ok := b.docs[docID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateDocument, docID)
	}
	b.docs[docID] = struct{}{}

	for _, tp := range tokens {
		docs := b.terms[tp.Token]
		if docs == nil {
			docs = make(map[string]int)
			b.terms[tp.Token] = docs
		}
		docs[docID]++
	}
	return nil
}

// NumDocs returns the number of documents added so far.
func (b *Builder) NumDocs() int {
	return len(b.docs)
}

// Build freezes the accumulated documents into an Index. The builder can
// keep accepting documents afterwards; the returned Index does not see them.
func (b *Builder) Build() (*Index, error) {
	docIDs := make([]string, 0, len(b.docs))
	for id := range b.docs {
		docIDs = append(docIDs, id)
	}
	return newIndex(docIDs, b.terms)
}
