package format

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"harshagw/bm25eval/internal/corpus"
	"harshagw/bm25eval/internal/eval"
	"harshagw/bm25eval/internal/index"
	"harshagw/bm25eval/internal/search"
)

// DefaultSystemName fills the last column of ranking files.
const DefaultSystemName = "BM25"

// num formats every metric and score with two decimals.
func num(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// WriteIndex writes one line per term in ascending term order.
func WriteIndex(w io.Writer, idx *index.Index) error {
	bw := bufio.NewWriter(w)
	for _, term := range idx.Terms() {
		postings := idx.PostingList(term)
		pairs := make([]string, len(postings))
		for i, p := range postings {
			pairs[i] = fmt.Sprintf("[%s:%d]", p.DocID, p.Frequency)
		}
		if _, err := fmt.Fprintf(bw, "%s%s%s\n", term, indexSep, strings.Join(pairs, ", ")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteLengths writes "docID : length" lines in document order.
func WriteLengths(w io.Writer, stats *corpus.Stats) error {
	bw := bufio.NewWriter(w)
	for _, id := range stats.DocIDs() {
		l, _ := stats.Length(id)
		if _, err := fmt.Fprintf(bw, "%s%s%d\n", id, indexSep, l); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteRanking writes "queryID docID rank score system" lines.
func WriteRanking(w io.Writer, r *search.Ranking, system string) error {
	if system == "" {
		system = DefaultSystemName
	}
	bw := bufio.NewWriter(w)
	for _, res := range r.Results {
		if _, err := fmt.Fprintf(bw, "%s %s %d %s %s\n", r.QueryID, res.DocID, res.Rank, num(res.Score), system); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteQueryAnalysis writes the query metrics line followed by one row per
// ranked document.
func WriteQueryAnalysis(w io.Writer, qs eval.QueryStats, rows []eval.DocRelevance) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Precision: %s, Recall: %s, Average Precision: %s, Reciprocal Rank: %s, Precision At Rank 5: %s, Precision At Rank 20: %s\n",
		num(qs.Precision), num(qs.Recall), num(qs.AveragePrecision),
		num(qs.ReciprocalRank), num(qs.PrecisionAt5), num(qs.PrecisionAt20))
	for _, row := range rows {
		fmt.Fprintf(bw, "DOCID: %s, DocREL: %t, DocPrecision: %s, DocRecall: %s\n",
			row.DocID, row.Relevant, num(row.Precision), num(row.Recall))
	}
	return bw.Flush()
}

// WriteSummary writes the corpus-level line.
func WriteSummary(w io.Writer, agg eval.AggregateStats) error {
	_, err := fmt.Fprintf(w, "Mean Average Precision: %s, Mean Reciprocal Rank: %s\n", num(agg.MAP), num(agg.MRR))
	return err
}

// WriteFile writes through a temp file in the same directory and renames
// it into place, creating parent directories as needed.
func WriteFile(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
