package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"harshagw/bm25eval/internal/analysis"
	"harshagw/bm25eval/internal/corpus"
	"harshagw/bm25eval/internal/feedback"
	"harshagw/bm25eval/internal/index"
	"harshagw/bm25eval/internal/logging"
)

var ErrMissingLength = errors.New("document has no length")

// Query is one already-expanded query.
type Query struct {
	ID   string
	Text string
}

// Result is a scored document. Rank is 1-based.
type Result struct {
	DocID string
	Score float64
	Rank  int
}

// TermStat describes how one distinct query term was weighted.
type TermStat struct {
	Term    string
	QF      int // occurrences in the query
	DF      int // ni
	RI      int
	Weight  float64 // relevance weight before tf and qf factors
	Clamped bool
}

// Ranking is the output of one query.
type Ranking struct {
	QueryID    string
	Results    []Result
	Terms      []TermStat
	Candidates int
	R          int
	// Clamped lists terms whose relevance weight had a non-positive log
	// argument and was forced to 0.
	Clamped []string
}

type Config struct {
	Params   Params
	Analyzer analysis.Analyzer
	Logger   *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Params:   DefaultParams(),
		Analyzer: analysis.NewWhitespace(),
	}
}

// Searcher ranks queries against an immutable index and corpus statistics.
// It holds no per-query state and is safe for concurrent use.
type Searcher struct {
	idx      *index.Index
	stats    *corpus.Stats
	params   Params
	analyzer analysis.Analyzer
	logger   *slog.Logger
}

// New creates a new searcher.
func New(idx *index.Index, stats *corpus.Stats, config Config) (*Searcher, error) {
	if idx == nil || stats == nil {
		return nil, errors.New("searcher needs an index and corpus stats")
	}
	if err := config.Params.Validate(); err != nil {
		return nil, err
	}
	if config.Analyzer == nil {
		config.Analyzer = analysis.NewWhitespace()
	}
	if config.Logger == nil {
		config.Logger = logging.WithComponent("search")
	}
	return &Searcher{
		idx:      idx,
		stats:    stats,
		params:   config.Params,
		analyzer: config.Analyzer,
		logger:   config.Logger,
	}, nil
}

func (s *Searcher) Params() Params { return s.params }

// queryTerms returns distinct terms in first-occurrence order with counts.
func (s *Searcher) queryTerms(text string) ([]string, map[string]int) {
	qf := make(map[string]int)
	var terms []string
	for _, term := range analysis.Terms(s.analyzer, text) {
		if qf[term] == 0 {
			terms = append(terms, term)
		}
		qf[term]++
	}
	return terms, qf
}

// Rank scores every document sharing at least one term with q and returns
// the top limit results (all of them when limit <= 0).
func (s *Searcher) Rank(q Query, fb feedback.Query, limit int) (*Ranking, error) {
	terms, qf := s.queryTerms(q.Text)

	acc := newAccumulator(s.idx.Candidates(terms...))
	ranking := &Ranking{
		QueryID:    q.ID,
		Candidates: int(acc.Count()),
		R:          fb.R(),
	}

	n := s.stats.N()
	avdl := s.stats.AvgDocLength()

	for _, term := range terms {
		postings := s.idx.PostingList(term)
		ni := len(postings)
		ri := 0
		if ni > 0 {
			ri = fb.Ri(term)
		}

		rw, ok := relevanceWeight(n, ni, fb.R(), ri)
		stat := TermStat{Term: term, QF: qf[term], DF: ni, RI: ri, Weight: rw, Clamped: !ok}
		ranking.Terms = append(ranking.Terms, stat)
		if ni == 0 {
			continue
		}
		if !ok {
			ranking.Clamped = append(ranking.Clamped, term)
			s.logger.Warn("relevance weight clamped to zero",
				"query", q.ID, "term", term, "N", n, "ni", ni, "R", fb.R(), "ri", ri)
		}

		qw := s.params.queryWeight(qf[term])
		for _, p := range postings {
			dl, ok := s.stats.Length(p.DocID)
			if !ok {
				return nil, fmt.Errorf("query %s term %q: %w: %s", q.ID, term, ErrMissingLength, p.DocID)
			}
			k := s.params.lengthNorm(dl, avdl)
			acc.add(p.DocNum, rw*s.params.docWeight(p.Frequency, k)*qw)
		}
	}

	results := acc.materialize(s.idx)
	sortByScore(results)
	results = truncate(results, limit)
	for i := range results {
		results[i].Rank = i + 1
	}
	ranking.Results = results

	s.logger.Debug("ranked query",
		"query", q.ID, "terms", len(terms), "candidates", ranking.Candidates, "returned", len(results))
	return ranking, nil
}

// RankAll ranks queries concurrently with at most workers in flight and
// returns the rankings in query order. A nil judgments disables feedback.
func (s *Searcher) RankAll(ctx context.Context, queries []Query, judgments *feedback.Judgments, limit, workers int) ([]*Ranking, error) {
	rankings := make([]*Ranking, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fb := feedback.None()
			if judgments != nil {
				fb = feedback.ForQuery(s.idx, judgments, q.ID)
			}
			r, err := s.Rank(q, fb, limit)
			if err != nil {
				return err
			}
			rankings[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rankings, nil
}
