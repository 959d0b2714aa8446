package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"harshagw/bm25eval/internal/corpus"
	"harshagw/bm25eval/internal/feedback"
	"harshagw/bm25eval/internal/index"
	"harshagw/bm25eval/internal/logging"
)

type testDoc struct {
	id   string
	text string
}

// newTestSearcher builds an index and stats from the given documents.
func newTestSearcher(t *testing.T, docs ...testDoc) *Searcher {
	t.Helper()
	b := index.NewBuilder(index.DefaultConfig())
	for _, d := range docs {
		if err := b.Add(d.id, d.text); err != nil {
			t.Fatalf("Add error: %v", err)
		}
	}
	idx, err := b.Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	stats, err := corpus.FromIndex(idx, nil)
	if err != nil {
		t.Fatalf("stats error: %v", err)
	}
	config := DefaultConfig()
	config.Logger = logging.Discard()
	s, err := New(idx, stats, config)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

func docIDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	return ids
}

func TestRank_HandComputedScores(t *testing.T) {
	s := newTestSearcher(t,
		testDoc{"d1", "a b c"},
		testDoc{"d2", "a a b"},
	)

	r, err := s.Rank(Query{ID: "1", Text: "a b"}, feedback.None(), 100)
	if err != nil {
		t.Fatalf("Rank error: %v", err)
	}

	// N=2, ni=2 for both terms: weight ln(0.25/1.25) = ln(0.2).
	// Both documents have length 3 = avdl so K = k1 = 1.2.
	// d1: 2 * ln(0.2); d2: (2.2*2/3.2 + 1) * ln(0.2).
	want := map[string]float64{
		"d1": 2 * math.Log(0.2),
		"d2": 2.375 * math.Log(0.2),
	}
	if got := docIDs(r.Results); !reflect.DeepEqual(got, []string{"d1", "d2"}) {
		t.Fatalf("order: got %v, want [d1 d2]", got)
	}
	for _, res := range r.Results {
		if math.Abs(res.Score-want[res.DocID]) > 1e-9 {
			t.Errorf("%s score: got %v, want %v", res.DocID, res.Score, want[res.DocID])
		}
	}
	if got := fmt.Sprintf("%.2f %.2f", r.Results[0].Score, r.Results[1].Score); got != "-3.22 -3.82" {
		t.Errorf("formatted scores: got %q", got)
	}
	if r.Results[0].Rank != 1 || r.Results[1].Rank != 2 {
		t.Errorf("ranks: got %d,%d", r.Results[0].Rank, r.Results[1].Rank)
	}
	if len(r.Clamped) != 0 {
		t.Errorf("no term should be clamped, got %v", r.Clamped)
	}
}

func TestRank_ZeroOverlapExcluded(t *testing.T) {
	s := newTestSearcher(t,
		testDoc{"d1", "a b"},
		testDoc{"d2", "c d"},
		testDoc{"d3", "e f"},
	)

	r, err := s.Rank(Query{ID: "1", Text: "a zzz"}, feedback.None(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := docIDs(r.Results); !reflect.DeepEqual(got, []string{"d1"}) {
		t.Errorf("results: got %v, want [d1]", got)
	}
	if r.Candidates != 1 {
		t.Errorf("candidates: got %d, want 1", r.Candidates)
	}
}

func TestRank_TieBreakByDocID(t *testing.T) {
	s := newTestSearcher(t,
		testDoc{"zeta", "x y"},
		testDoc{"alpha", "x y"},
		testDoc{"mid", "x y"},
		testDoc{"other", "q r"},
	)

	for i := 0; i < 5; i++ {
		r, err := s.Rank(Query{ID: "1", Text: "x"}, feedback.None(), 0)
		if err != nil {
			t.Fatal(err)
		}
		if got := docIDs(r.Results); !reflect.DeepEqual(got, []string{"alpha", "mid", "zeta"}) {
			t.Fatalf("tie order: got %v", got)
		}
	}
}

func TestRank_Truncates(t *testing.T) {
	s := newTestSearcher(t,
		testDoc{"d1", "x"},
		testDoc{"d2", "x x"},
		testDoc{"d3", "x x x"},
		testDoc{"d4", "y"},
	)

	r, err := s.Rank(Query{ID: "1", Text: "x"}, feedback.None(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(r.Results))
	}
	if r.Candidates != 3 {
		t.Errorf("candidates: got %d, want 3", r.Candidates)
	}
}

func TestRank_QueryTermFrequency(t *testing.T) {
	s := newTestSearcher(t,
		testDoc{"d1", "a b"},
		testDoc{"d2", "c d"},
		testDoc{"d3", "e f"},
	)

	once, _ := s.Rank(Query{ID: "1", Text: "a"}, feedback.None(), 0)
	twice, _ := s.Rank(Query{ID: "2", Text: "a a"}, feedback.None(), 0)

	if len(twice.Terms) != 1 || twice.Terms[0].QF != 2 {
		t.Fatalf("expected one distinct term with qf 2, got %+v", twice.Terms)
	}
	ratio := twice.Results[0].Score / once.Results[0].Score
	want := (2 * 101.0 / 102.0) / 1.0
	if math.Abs(ratio-want) > 1e-9 {
		t.Errorf("qf ratio: got %v, want %v", ratio, want)
	}
}

func TestRank_FeedbackRaisesRelevantTermWeight(t *testing.T) {
	s := newTestSearcher(t,
		testDoc{"d1", "a b"},
		testDoc{"d2", "a c"},
		testDoc{"d3", "c d"},
	)
	j := feedback.NewJudgments()
	j.Add("1", "d1")

	q := Query{ID: "1", Text: "a"}
	plain, _ := s.Rank(q, feedback.None(), 0)
	withFB, _ := s.Rank(q, feedback.ForQuery(s.idx, j, "1"), 0)

	// N=3, ni=2, R=1, ri=1: ln((1.5*1.5)/(0.5*1.5)) = ln(3).
	if got := withFB.Terms[0].Weight; math.Abs(got-math.Log(3)) > 1e-9 {
		t.Errorf("feedback weight: got %v, want ln 3", got)
	}
	if got := plain.Terms[0].Weight; math.Abs(got-math.Log(0.6)) > 1e-9 {
		t.Errorf("plain weight: got %v, want ln 0.6", got)
	}
	if withFB.R != 1 || plain.R != 0 {
		t.Errorf("R: got %d and %d", withFB.R, plain.R)
	}
}

func TestRank_ClampsNonPositiveLogArgument(t *testing.T) {
	s := newTestSearcher(t,
		testDoc{"d1", "a"},
		testDoc{"d2", "a b"},
	)
	// Three judged documents none of which is in the corpus: R > N.
	j := feedback.NewJudgments()
	j.Add("1", "x")
	j.Add("1", "y")
	j.Add("1", "z")

	r, err := s.Rank(Query{ID: "1", Text: "a"}, feedback.ForQuery(s.idx, j, "1"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(r.Clamped, []string{"a"}) {
		t.Errorf("clamped: got %v, want [a]", r.Clamped)
	}
	for _, res := range r.Results {
		if res.Score != 0 || math.IsNaN(res.Score) {
			t.Errorf("%s: expected clamped score 0, got %v", res.DocID, res.Score)
		}
	}
	if got := docIDs(r.Results); !reflect.DeepEqual(got, []string{"d1", "d2"}) {
		t.Errorf("results: got %v", got)
	}
}

func TestRank_MissingLength(t *testing.T) {
	b := index.NewBuilder(index.DefaultConfig())
	b.Add("d1", "a")
	b.Add("d2", "a")
	idx, _ := b.Build()
	stats, _ := corpus.NewStats(map[string]int{"d1": 1})

	config := DefaultConfig()
	config.Logger = logging.Discard()
	s, err := New(idx, stats, config)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Rank(Query{ID: "9", Text: "a"}, feedback.None(), 0)
	if !errors.Is(err, ErrMissingLength) {
		t.Errorf("expected ErrMissingLength, got %v", err)
	}
}

func TestRank_FreshStatePerQuery(t *testing.T) {
	s := newTestSearcher(t,
		testDoc{"d1", "a b"},
		testDoc{"d2", "b c"},
		testDoc{"d3", "c d"},
	)

	first, _ := s.Rank(Query{ID: "1", Text: "a"}, feedback.None(), 0)
	_, _ = s.Rank(Query{ID: "2", Text: "b c"}, feedback.None(), 0)
	again, _ := s.Rank(Query{ID: "1", Text: "a"}, feedback.None(), 0)

	if !reflect.DeepEqual(first.Results, again.Results) {
		t.Errorf("results changed between runs: %+v vs %+v", first.Results, again.Results)
	}
	if got := docIDs(again.Results); !reflect.DeepEqual(got, []string{"d1"}) {
		t.Errorf("stale candidates leaked: %v", got)
	}
}

func TestRankAll_PreservesOrder(t *testing.T) {
	s := newTestSearcher(t,
		testDoc{"d1", "a b"},
		testDoc{"d2", "b c"},
		testDoc{"d3", "c d"},
	)
	queries := []Query{
		{ID: "1", Text: "a"},
		{ID: "2", Text: "b"},
		{ID: "3", Text: "d"},
		{ID: "4", Text: "zzz"},
	}

	rankings, err := s.RankAll(context.Background(), queries, nil, 10, 3)
	if err != nil {
		t.Fatalf("RankAll error: %v", err)
	}
	if len(rankings) != len(queries) {
		t.Fatalf("expected %d rankings, got %d", len(queries), len(rankings))
	}
	for i, r := range rankings {
		if r.QueryID != queries[i].ID {
			t.Errorf("ranking %d: got query %s, want %s", i, r.QueryID, queries[i].ID)
		}
		sequential, _ := s.Rank(queries[i], feedback.None(), 10)
		if !reflect.DeepEqual(r.Results, sequential.Results) {
			t.Errorf("query %s: concurrent and sequential results differ", r.QueryID)
		}
	}
	if len(rankings[3].Results) != 0 {
		t.Errorf("unknown term should return nothing")
	}
}

func TestRankAll_Canceled(t *testing.T) {
	s := newTestSearcher(t, testDoc{"d1", "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RankAll(ctx, []Query{{ID: "1", Text: "a"}}, nil, 0, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func BenchmarkRank(b *testing.B) {
	builder := index.NewBuilder(index.DefaultConfig())
	vocab := []string{"retrieval", "ranking", "query", "index", "term", "document", "score", "relevance"}
	for i := 0; i < 5000; i++ {
		text := ""
		for j := 0; j < 30; j++ {
			text += vocab[(i*7+j*3)%len(vocab)] + " "
		}
		builder.Add(fmt.Sprintf("doc-%05d", i), text)
	}
	idx, _ := builder.Build()
	stats, _ := corpus.FromIndex(idx, nil)
	config := DefaultConfig()
	config.Logger = logging.Discard()
	s, _ := New(idx, stats, config)
	q := Query{ID: "1", Text: "retrieval ranking relevance"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Rank(q, feedback.None(), 100); err != nil {
			b.Fatal(err)
		}
	}
}
