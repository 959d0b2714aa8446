package format

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harshagw/bm25eval/internal/corpus"
	"harshagw/bm25eval/internal/eval"
	"harshagw/bm25eval/internal/feedback"
	"harshagw/bm25eval/internal/index"
	"harshagw/bm25eval/internal/search"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadIndex(t *testing.T) {
	path := writeTemp(t, "index.txt", strings.Join([]string{
		"a : [d1:1], [d2:2]",
		"b : [d1:1], [d2:1]",
		"",
		"broken line",
		"c : [d1:0]",
		"d : [CACM-0001:3]\r",
	}, "\n"))

	postings, report, err := ReadIndex(path, Options{})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"d1": 1, "d2": 2}, postings["a"])
	assert.Equal(t, map[string]int{"CACM-0001": 3}, postings["d"])
	assert.NotContains(t, postings, "c")
	assert.Equal(t, 3, report.Records)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, []int{4, 5}, report.SkippedLines)
}

func TestReadIndex_Strict(t *testing.T) {
	path := writeTemp(t, "index.txt", "a : [d1:1]\nnope\n")
	_, _, err := ReadIndex(path, Options{Strict: true})
	assert.ErrorIs(t, err, ErrMalformed)

	var inErr *InputError
	require.ErrorAs(t, err, &inErr)
	assert.Equal(t, path, inErr.Path)
}

func TestReadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.txt")
	_, _, err := ReadLengths(path, Options{})
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), path)
}

func TestReadEmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.txt", "")
	lengths, report, err := ReadLengths(path, Options{})
	require.NoError(t, err)
	assert.Empty(t, lengths)
	assert.Zero(t, report.Records)
}

func TestReadLengths(t *testing.T) {
	path := writeTemp(t, "lengths.txt", "d1 : 3\nd2 : 0\nd3 : x\nd1 : 4\n")
	lengths, report, err := ReadLengths(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"d1": 3, "d2": 0}, lengths)
	assert.Equal(t, 2, report.Skipped)
}

func TestReadJudgments(t *testing.T) {
	path := writeTemp(t, "rel.txt", "1 Q0 CACM-1 1\n1 Q0 CACM-2042 1\n2 Q0\n7 Q0 CACM-12 1\n")
	j, report, err := ReadJudgments(path, feedback.PadDocID(9), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"CACM-0001", "CACM-2042"}, j.Relevant("1"))
	assert.Equal(t, 1, j.Count("7"))
	assert.False(t, j.Has("2"))
	assert.Equal(t, 1, report.Skipped)
}

func TestReadQueries(t *testing.T) {
	path := writeTemp(t, "queries.txt", "1 what articles exist\n2\tportable operating systems\n3\n1 dup\n")
	queries, report, err := ReadQueries(path, Options{})
	require.NoError(t, err)

	assert.Equal(t, []search.Query{
		{ID: "1", Text: "what articles exist"},
		{ID: "2", Text: "portable operating systems"},
		{ID: "3", Text: ""},
	}, queries)
	assert.Equal(t, 1, report.Skipped)
}

func TestReadQueries_RejectsPathLikeIDs(t *testing.T) {
	path := writeTemp(t, "queries.txt", "../escape a\nsub/1 b\n..\tc\n.. d\nwin\\2 e\n4 ok\n")
	queries, report, err := ReadQueries(path, Options{})
	require.NoError(t, err)

	assert.Equal(t, []search.Query{{ID: "4", Text: "ok"}}, queries)
	assert.Equal(t, 5, report.Skipped)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, report.SkippedLines)

	_, _, err = ReadQueries(path, Options{Strict: true})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReadLogsToOptionsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	path := writeTemp(t, "lengths.txt", "d1 : 3\nbroken\n")

	_, report, err := ReadLengths(path, Options{Logger: logger})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Contains(t, buf.String(), "skipping malformed record")
	assert.Contains(t, buf.String(), "line=2")
}

func TestReadCorpus(t *testing.T) {
	path := writeTemp(t, "corpus.txt", "d1\ta b c\nd2\na b\tc\nd1\tx\n")
	docs, report, err := ReadCorpus(path, Options{})
	require.NoError(t, err)

	assert.Equal(t, []CorpusDoc{{ID: "d1", Tokens: "a b c"}, {ID: "d2"}}, docs)
	assert.Equal(t, 2, report.Skipped)
}

func buildIndex(t *testing.T) *index.Index {
	t.Helper()
	b := index.NewBuilder(index.DefaultConfig())
	require.NoError(t, b.Add("d1", "a b c"))
	require.NoError(t, b.Add("d2", "a a b"))
	idx, err := b.Build()
	require.NoError(t, err)
	return idx
}

func TestIndexFileRoundTrip(t *testing.T) {
	idx := buildIndex(t)
	path := filepath.Join(t.TempDir(), "out", "index.txt")
	require.NoError(t, WriteFile(path, func(w io.Writer) error { return WriteIndex(w, idx) }))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a : [d1:1], [d2:2]\nb : [d1:1], [d2:1]\nc : [d1:1]\n", string(data))

	postings, _, err := ReadIndex(path, Options{Strict: true})
	require.NoError(t, err)
	loaded, err := index.FromPostings(postings)
	require.NoError(t, err)
	assert.Equal(t, idx.Digest(), loaded.Digest())
}

func TestLengthsFileRoundTrip(t *testing.T) {
	stats, err := corpus.NewStats(map[string]int{"d2": 0, "d1": 3})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteLengths(&buf, stats))
	assert.Equal(t, "d1 : 3\nd2 : 0\n", buf.String())

	path := writeTemp(t, "lengths.txt", buf.String())
	lengths, _, err := ReadLengths(path, Options{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, stats.Lengths(), lengths)
}

func TestWriteRanking(t *testing.T) {
	r := &search.Ranking{
		QueryID: "7",
		Results: []search.Result{
			{DocID: "d2", Score: 3.14159, Rank: 1},
			{DocID: "d1", Score: -0.126, Rank: 2},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteRanking(&buf, r, ""))
	assert.Equal(t, "7 d2 1 3.14 BM25\n7 d1 2 -0.13 BM25\n", buf.String())
}

func TestWriteQueryAnalysisAndSummary(t *testing.T) {
	qs, rows, ok := eval.Evaluate("1", []string{"a", "b"}, eval.Set([]string{"b"}), 1)
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, WriteQueryAnalysis(&buf, qs, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Precision: 0.50, Recall: 1.00, Average Precision: 0.50, Reciprocal Rank: 0.50, Precision At Rank 5: 0.00, Precision At Rank 20: 0.00", lines[0])
	assert.Equal(t, "DOCID: a, DocREL: false, DocPrecision: 0.00, DocRecall: 0.00", lines[1])
	assert.Equal(t, "DOCID: b, DocREL: true, DocPrecision: 0.50, DocRecall: 1.00", lines[2])

	buf.Reset()
	require.NoError(t, WriteSummary(&buf, eval.AggregateStats{Queries: 2, MAP: 0.4567, MRR: 0.5}))
	assert.Equal(t, "Mean Average Precision: 0.46, Mean Reciprocal Rank: 0.50\n", buf.String())
}

func TestWriteFile_LeavesNoPartialFileOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	err := WriteFile(path, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return errors.New("boom")
	})
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, fs.ErrNotExist))
}
