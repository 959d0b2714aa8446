package main

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"harshagw/bm25eval/internal/analysis"
	"harshagw/bm25eval/internal/corpus"
	"harshagw/bm25eval/internal/eval"
	"harshagw/bm25eval/internal/feedback"
	"harshagw/bm25eval/internal/format"
	"harshagw/bm25eval/internal/index"
	"harshagw/bm25eval/internal/logging"
	"harshagw/bm25eval/internal/search"
)

// Document is a pre-tokenized fixture document.
type Document struct {
	ID   string
	Text string
}

// TestCase is a named check that returns nil on success.
type TestCase struct {
	Name  string
	Check func() error
}

type Category struct {
	Name  string
	Cases []TestCase
}

func main() {
	fmt.Println("BM25 Ranking Verification")
	fmt.Println("=========================")

	logging.Setup("error", "text")

	passed := 0
	failed := 0

	for _, category := range getTestCategories() {
		fmt.Printf("\n%s\n", category.Name)
		fmt.Println(strings.Repeat("-", len(category.Name)))

		for _, tc := range category.Cases {
			if err := tc.Check(); err != nil {
				fmt.Printf("  ✗ %s\n", tc.Name)
				fmt.Printf("    %v\n", err)
				failed++
				continue
			}
			fmt.Printf("  ✓ %s\n", tc.Name)
			passed++
		}
	}

	fmt.Println()
	fmt.Println("========================================")
	fmt.Printf("Results: %d passed, %d failed, %d total\n", passed, failed, passed+failed)

	if failed > 0 {
		os.Exit(1)
	}
	fmt.Println("\nAll checks passed!")
}

func build(docs []Document) (*index.Index, *corpus.Stats, error) {
	b := index.NewBuilder(index.DefaultConfig())
	for _, d := range docs {
		if err := b.Add(d.ID, d.Text); err != nil {
			return nil, nil, err
		}
	}
	idx, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	stats, err := corpus.FromIndex(idx, nil)
	if err != nil {
		return nil, nil, err
	}
	return idx, stats, nil
}

func rank(docs []Document, text string, j *feedback.Judgments, qid string) (*search.Ranking, error) {
	idx, stats, err := build(docs)
	if err != nil {
		return nil, err
	}
	s, err := search.New(idx, stats, search.DefaultConfig())
	if err != nil {
		return nil, err
	}
	fb := feedback.None()
	if j != nil {
		fb = feedback.ForQuery(idx, j, qid)
	}
	return s.Rank(search.Query{ID: qid, Text: text}, fb, 0)
}

func ids(r *search.Ranking) []string {
	out := make([]string, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.DocID
	}
	return out
}

func expectIDs(got, want []string) error {
	if !slices.Equal(got, want) {
		return fmt.Errorf("expected %v, got %v", want, got)
	}
	return nil
}

func expectNum(name string, got float64, want string) error {
	if s := fmt.Sprintf("%.2f", got); s != want {
		return fmt.Errorf("%s: expected %s, got %s", name, want, s)
	}
	return nil
}

func getTestCategories() []Category {
	return []Category{
		{
			Name: "POSTING INDEX",
			Cases: []TestCase{
				{"index file round trip keeps postings", checkIndexRoundTrip},
				{"digest is independent of insertion order", checkDigestOrder},
				{"document length skips stop words", checkStopWordLength},
			},
		},
		{
			Name: "BM25 RANKING",
			Cases: []TestCase{
				{"hand computed scores -3.22 / -3.82", checkHandScores},
				{"documents without query terms are excluded", checkZeroOverlap},
				{"equal scores ordered by document id", checkTieBreak},
				{"query term frequency raises the score", checkQueryFrequency},
				{"relevance feedback changes term weight", checkFeedback},
				{"non-positive log argument is clamped", checkClamp},
			},
		},
		{
			Name: "EVALUATION",
			Cases: []TestCase{
				{"precision and recall at each rank", checkPrecisionRecall},
				{"no relevant retrieved gives AP 0", checkNoHits},
				{"MAP and MRR over two queries", checkAggregate},
				{"P@5 and P@20 at exact ranks", checkCutoffs},
			},
		},
	}
}

func checkIndexRoundTrip() error {
	idx, _, err := build([]Document{{"d1", "a b c"}, {"d2", "a a b"}, {"d3", "c d e"}})
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := format.WriteIndex(&buf, idx); err != nil {
		return err
	}
	path, err := writeTemp(buf.Bytes())
	if err != nil {
		return err
	}
	defer os.Remove(path)

	postings, _, err := format.ReadIndex(path, format.Options{Strict: true})
	if err != nil {
		return err
	}
	again, err := index.FromPostings(postings)
	if err != nil {
		return err
	}
	if again.Digest() != idx.Digest() {
		return fmt.Errorf("digest changed: %s -> %s", idx.Digest(), again.Digest())
	}
	return nil
}

func writeTemp(data []byte) (string, error) {
	f, err := os.CreateTemp("", "verify-*.txt")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func checkDigestOrder() error {
	docs := []Document{{"d1", "x y"}, {"d2", "y z"}, {"d3", "z x x"}}
	a, _, err := build(docs)
	if err != nil {
		return err
	}
	slices.Reverse(docs)
	b, _, err := build(docs)
	if err != nil {
		return err
	}
	if a.Digest() != b.Digest() {
		return fmt.Errorf("digests differ: %s vs %s", a.Digest(), b.Digest())
	}
	return nil
}

func checkStopWordLength() error {
	idx, _, err := build([]Document{{"d1", "the cat and the hat"}})
	if err != nil {
		return err
	}
	stats, err := corpus.FromIndex(idx, analysis.NewStopWords("the", "and"))
	if err != nil {
		return err
	}
	if l, _ := stats.Length("d1"); l != 2 {
		return fmt.Errorf("expected length 2, got %d", l)
	}
	return nil
}

func checkHandScores() error {
	r, err := rank([]Document{{"d1", "a b c"}, {"d2", "a a b"}}, "a b", nil, "1")
	if err != nil {
		return err
	}
	if err := expectIDs(ids(r), []string{"d1", "d2"}); err != nil {
		return err
	}
	if err := expectNum("d1", r.Results[0].Score, "-3.22"); err != nil {
		return err
	}
	return expectNum("d2", r.Results[1].Score, "-3.82")
}

func checkZeroOverlap() error {
	r, err := rank([]Document{{"d1", "a b"}, {"d2", "c d"}, {"d3", "e f"}}, "a zzz", nil, "1")
	if err != nil {
		return err
	}
	return expectIDs(ids(r), []string{"d1"})
}

func checkTieBreak() error {
	r, err := rank([]Document{{"zeta", "x y"}, {"alpha", "x y"}, {"mid", "x y"}, {"other", "q r"}}, "x", nil, "1")
	if err != nil {
		return err
	}
	return expectIDs(ids(r), []string{"alpha", "mid", "zeta"})
}

func checkQueryFrequency() error {
	docs := []Document{{"d1", "a b"}, {"d2", "c d"}, {"d3", "e f"}}
	once, err := rank(docs, "a", nil, "1")
	if err != nil {
		return err
	}
	twice, err := rank(docs, "a a", nil, "1")
	if err != nil {
		return err
	}
	if twice.Results[0].Score <= once.Results[0].Score {
		return fmt.Errorf("qf=2 score %.4f not above qf=1 score %.4f", twice.Results[0].Score, once.Results[0].Score)
	}
	return nil
}

func checkFeedback() error {
	docs := []Document{{"d1", "a b"}, {"d2", "c d"}, {"d3", "e f"}, {"d4", "g h"}}
	plain, err := rank(docs, "a", nil, "1")
	if err != nil {
		return err
	}
	j := feedback.NewJudgments()
	j.Add("1", "d1")
	withFB, err := rank(docs, "a", j, "1")
	if err != nil {
		return err
	}
	if withFB.R != 1 || withFB.Terms[0].RI != 1 {
		return fmt.Errorf("expected R=1 ri=1, got R=%d ri=%d", withFB.R, withFB.Terms[0].RI)
	}
	if withFB.Results[0].Score <= plain.Results[0].Score {
		return fmt.Errorf("feedback score %.4f not above plain %.4f", withFB.Results[0].Score, plain.Results[0].Score)
	}
	return nil
}

func checkClamp() error {
	// R exceeds N, so the log argument turns negative.
	j := feedback.NewJudgments()
	for _, d := range []string{"d1", "x1", "x2", "x3"} {
		j.Add("1", d)
	}
	r, err := rank([]Document{{"d1", "a b"}, {"d2", "c d"}}, "a", j, "1")
	if err != nil {
		return err
	}
	if !slices.Equal(r.Clamped, []string{"a"}) {
		return fmt.Errorf("expected [a] clamped, got %v", r.Clamped)
	}
	return expectNum("d1", r.Results[0].Score, "0.00")
}

func checkPrecisionRecall() error {
	qs, rows, ok := eval.Evaluate("1", []string{"d1", "d2", "d3", "d4"}, eval.Set([]string{"d2", "d4"}), 2)
	if !ok {
		return fmt.Errorf("query unexpectedly excluded")
	}
	want := []string{"0.00/0.00", "0.50/0.50", "0.33/0.50", "0.50/1.00"}
	for i, row := range rows {
		got := fmt.Sprintf("%.2f/%.2f", row.Precision, row.Recall)
		if got != want[i] {
			return fmt.Errorf("rank %d: expected P/R %s, got %s", i+1, want[i], got)
		}
	}
	return expectNum("AP", qs.AveragePrecision, "0.50")
}

func checkNoHits() error {
	qs, _, ok := eval.Evaluate("7", []string{"d1", "d2"}, eval.Set([]string{"d9"}), 1)
	if !ok {
		return fmt.Errorf("query unexpectedly excluded")
	}
	if !qs.Undefined {
		return fmt.Errorf("expected the query to be marked undefined")
	}
	if err := expectNum("AP", qs.AveragePrecision, "0.00"); err != nil {
		return err
	}
	return expectNum("RR", qs.ReciprocalRank, "0.00")
}

func checkAggregate() error {
	a, _, _ := eval.Evaluate("1", []string{"d1", "d2"}, eval.Set([]string{"d1"}), 1)
	b, _, _ := eval.Evaluate("2", []string{"d1", "d2", "d3"}, eval.Set([]string{"d3"}), 1)
	agg := eval.Aggregate([]eval.QueryStats{a, b})
	if err := expectNum("MAP", agg.MAP, "0.67"); err != nil {
		return err
	}
	return expectNum("MRR", agg.MRR, "0.67")
}

func checkCutoffs() error {
	ranked := make([]string, 25)
	for i := range ranked {
		ranked[i] = fmt.Sprintf("d%02d", i+1)
	}
	qs, _, _ := eval.Evaluate("1", ranked, eval.Set([]string{"d01", "d03", "d21"}), 3)
	if err := expectNum("P@5", qs.PrecisionAt5, "0.40"); err != nil {
		return err
	}
	return expectNum("P@20", qs.PrecisionAt20, "0.10")
}
