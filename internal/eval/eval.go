// Package eval computes per-query and corpus-wide retrieval metrics.
package eval

import "math"

// DocRelevance is one row of a ranked list walk.
type DocRelevance struct {
	DocID     string
	Relevant  bool
	Precision float64
	Recall    float64
}

// QueryStats are the metrics of one judged query.
type QueryStats struct {
	QueryID           string
	Retrieved         int
	RelevantTotal     int // R
	RelevantRetrieved int
	Precision         float64 // at the last ranked position
	Recall            float64 // at the last ranked position
	AveragePrecision  float64 // sum of precision at hits / hits
	ReciprocalRank    float64
	PrecisionAt5      float64
	PrecisionAt20     float64
	// APOverR divides the same sum by R. Diagnostic only.
	APOverR float64
	// Undefined is set when no relevant document was retrieved and
	// AveragePrecision was reported as 0.
	Undefined bool
}

// AggregateStats are the means over all evaluated queries.
type AggregateStats struct {
	Queries int
	MAP     float64
	MRR     float64
}

// Evaluate walks ranked against the relevant set. ok is false when R is 0,
// in which case the query is excluded from evaluation.
func Evaluate(queryID string, ranked []string, relevant map[string]struct{}, r int) (QueryStats, []DocRelevance, bool) {
	if r <= 0 {
		return QueryStats{}, nil, false
	}

	qs := QueryStats{QueryID: queryID, Retrieved: len(ranked), RelevantTotal: r}
	rows := make([]DocRelevance, len(ranked))

	hits := 0
	precisionSum := 0.0
	for i, docID := range ranked {
		pos := i + 1
		_, rel := relevant[docID]
		if rel {
			hits++
		}
		precision := float64(hits) / float64(pos)
		recall := float64(hits) / float64(r)
		if rel {
			precisionSum += precision
			if hits == 1 {
				qs.ReciprocalRank = 1 / float64(pos)
			}
		}
		switch pos {
		case 5:
			qs.PrecisionAt5 = precision
		case 20:
			qs.PrecisionAt20 = precision
		}
		rows[i] = DocRelevance{DocID: docID, Relevant: rel, Precision: precision, Recall: recall}
	}

	if n := len(rows); n > 0 {
		qs.Precision = rows[n-1].Precision
		qs.Recall = rows[n-1].Recall
	}
	qs.RelevantRetrieved = hits
	if hits > 0 {
		qs.AveragePrecision = precisionSum / float64(hits)
	} else {
		qs.Undefined = true
	}
	qs.APOverR = precisionSum / float64(r)

	return qs, rows, true
}

// Aggregate averages AP and RR, counting NaN as 0. No queries gives zeros.
func Aggregate(stats []QueryStats) AggregateStats {
	agg := AggregateStats{Queries: len(stats)}
	if len(stats) == 0 {
		return agg
	}
	for _, qs := range stats {
		agg.MAP += zeroNaN(qs.AveragePrecision)
		agg.MRR += zeroNaN(qs.ReciprocalRank)
	}
	agg.MAP /= float64(len(stats))
	agg.MRR /= float64(len(stats))
	return agg
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// Set converts a list of document IDs into a lookup set.
func Set(docIDs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(docIDs))
	for _, id := range docIDs {
		set[id] = struct{}{}
	}
	return set
}
