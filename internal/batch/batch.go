// Package batch runs one offline ranking and evaluation job end to end.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"harshagw/bm25eval/internal/analysis"
	"harshagw/bm25eval/internal/config"
	"harshagw/bm25eval/internal/corpus"
	"harshagw/bm25eval/internal/eval"
	"harshagw/bm25eval/internal/feedback"
	"harshagw/bm25eval/internal/format"
	"harshagw/bm25eval/internal/index"
	"harshagw/bm25eval/internal/logging"
	"harshagw/bm25eval/internal/metrics"
	"harshagw/bm25eval/internal/search"
	"harshagw/bm25eval/internal/store"
)

const (
	IndexFileName   = "index.txt"
	LengthsFileName = "lengths.txt"
)

// Deps are the optional collaborators of a run. Nil fields are skipped.
type Deps struct {
	Metrics *metrics.Metrics
	Ledger  *store.Ledger
	Logger  *slog.Logger
	Now     func() time.Time
}

// Report is the outcome of a run.
type Report struct {
	RunID       uint64
	IndexDigest index.Digest
	Rankings    []*search.Ranking
	Stats       []eval.QueryStats
	Aggregate   eval.AggregateStats
	// Skipped counts malformed records per input kind.
	Skipped map[string]int
	// Flagged lists queries with an undefined metric or a clamped term.
	Flagged []string
	// Excluded lists ranked queries without judgments.
	Excluded []string
	Duration time.Duration
}

// Corpus is a loaded index with its length statistics.
type Corpus struct {
	Index *index.Index
	Stats *corpus.Stats
}

type runner struct {
	cfg      *config.Config
	deps     Deps
	base     *slog.Logger
	logger   *slog.Logger
	analyzer analysis.Analyzer
	report   *Report
	readOpt  format.Options
}

func newRunner(ctx context.Context, cfg *config.Config, deps Deps) (*runner, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	base := deps.Logger
	if base == nil {
		base = logging.FromContext(ctx)
	}
	analyzer, err := analysis.ByName(cfg.Ranking.Analyzer)
	if err != nil {
		return nil, err
	}
	return &runner{
		cfg:      cfg,
		deps:     deps,
		base:     base,
		logger:   base.With("component", "batch"),
		analyzer: analyzer,
		report:   &Report{Skipped: make(map[string]int)},
		readOpt:  format.Options{Strict: cfg.Strict, Logger: base.With("component", "format")},
	}, nil
}

func (r *runner) noteSkipped(kind string, rep format.Report) {
	if rep.Skipped == 0 {
		return
	}
	r.report.Skipped[kind] += rep.Skipped
	if r.deps.Metrics != nil {
		r.deps.Metrics.SkippedRecordsTotal.WithLabelValues(kind).Add(float64(rep.Skipped))
	}
	r.logger.Warn("skipped malformed records", "input", kind, "path", rep.Path, "skipped", rep.Skipped)
}

// BuildIndex builds the index from the corpus file and writes the index
// and length files into the output directory.
func BuildIndex(ctx context.Context, cfg *config.Config, deps Deps) (*Corpus, error) {
	r, err := newRunner(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	return r.buildFromCorpus(ctx)
}

func (r *runner) buildFromCorpus(ctx context.Context) (*Corpus, error) {
	c, err := r.indexCorpus(ctx)
	if err != nil {
		return nil, err
	}

	indexPath := filepath.Join(r.cfg.Output.Dir, IndexFileName)
	if err := format.WriteFile(indexPath, func(w io.Writer) error { return format.WriteIndex(w, c.Index) }); err != nil {
		return nil, err
	}
	lengthsPath := filepath.Join(r.cfg.Output.Dir, LengthsFileName)
	if err := format.WriteFile(lengthsPath, func(w io.Writer) error { return format.WriteLengths(w, c.Stats) }); err != nil {
		return nil, err
	}

	r.logger.Info("built index from corpus",
		"docs", c.Index.NumDocs(), "terms", c.Index.NumTerms(), "index", indexPath, "lengths", lengthsPath)
	return c, nil
}

// indexCorpus builds the index and length statistics in memory.
func (r *runner) indexCorpus(ctx context.Context) (*Corpus, error) {
	docs, rep, err := format.ReadCorpus(r.cfg.Input.Corpus, r.readOpt)
	if err != nil {
		return nil, err
	}
	r.noteSkipped("corpus", rep)

	b := index.NewBuilder(index.Config{Analyzer: r.analyzer})
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.Add(d.ID, d.Tokens); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", d.ID, err)
		}
	}
	idx, err := b.Build()
	if err != nil {
		return nil, err
	}
	stats, err := corpus.FromIndex(idx, analysis.NewStopWords(r.cfg.Input.StopWords...))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.cfg.Input.Corpus, err)
	}
	return &Corpus{Index: idx, Stats: stats}, nil
}

// LoadCorpus reads the index and length files when an index is configured,
// otherwise it indexes the corpus file in memory without writing anything.
func LoadCorpus(ctx context.Context, cfg *config.Config, deps Deps) (*Corpus, error) {
	r, err := newRunner(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	if cfg.Input.Index != "" {
		return r.loadFiles()
	}
	if cfg.Input.Corpus == "" {
		return nil, fmt.Errorf("%w: neither index nor corpus configured", format.ErrMissingInput)
	}
	return r.indexCorpus(ctx)
}

func (r *runner) loadFiles() (*Corpus, error) {
	postings, rep, err := format.ReadIndex(r.cfg.Input.Index, r.readOpt)
	if err != nil {
		return nil, err
	}
	r.noteSkipped("index", rep)

	lengths, rep, err := format.ReadLengths(r.cfg.Input.Lengths, r.readOpt)
	if err != nil {
		return nil, err
	}
	r.noteSkipped("lengths", rep)

	docIDs := make([]string, 0, len(lengths))
	for id := range lengths {
		docIDs = append(docIDs, id)
	}
	idx, err := index.FromPostings(postings, docIDs...)
	if err != nil {
		return nil, &format.InputError{Path: r.cfg.Input.Index, Err: err}
	}
	stats, err := corpus.NewStats(lengths)
	if err != nil {
		return nil, &format.InputError{Path: r.cfg.Input.Lengths, Err: err}
	}
	return &Corpus{Index: idx, Stats: stats}, nil
}

func (r *runner) loadCorpus(ctx context.Context) (*Corpus, error) {
	if r.cfg.Input.Index != "" {
		return r.loadFiles()
	}
	return r.buildFromCorpus(ctx)
}

// Run executes the whole job described by cfg.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	r, err := newRunner(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	started := r.deps.Now()

	c, err := r.loadCorpus(ctx)
	if err != nil {
		return nil, err
	}
	r.report.IndexDigest = c.Index.Digest()
	if m := r.deps.Metrics; m != nil {
		m.IndexDocuments.Set(float64(c.Index.NumDocs()))
		m.IndexTerms.Set(float64(c.Index.NumTerms()))
	}

	queries, rep, err := format.ReadQueries(cfg.Input.Queries, r.readOpt)
	if err != nil {
		return nil, err
	}
	r.noteSkipped("queries", rep)

	var judgments *feedback.Judgments
	if cfg.Input.Judgments != "" {
		judgments, rep, err = format.ReadJudgments(cfg.Input.Judgments, feedback.PadDocID(cfg.Ranking.DocIDWidth), r.readOpt)
		if err != nil {
			return nil, err
		}
		r.noteSkipped("judgments", rep)
	}

	s, err := search.New(c.Index, c.Stats, search.Config{
		Params:   cfg.Ranking.Params(),
		Analyzer: r.analyzer,
		Logger:   r.base.With("component", "search"),
	})
	if err != nil {
		return nil, err
	}

	var fbJudgments *feedback.Judgments
	if cfg.Ranking.Feedback {
		fbJudgments = judgments
	}
	rankings, err := s.RankAll(ctx, queries, fbJudgments, cfg.Ranking.Limit, cfg.Ranking.Workers)
	if err != nil {
		return nil, err
	}
	r.report.Rankings = rankings

	if err := r.writeRankings(rankings); err != nil {
		return nil, err
	}
	if judgments != nil {
		if err := r.evaluate(rankings, judgments); err != nil {
			return nil, err
		}
	}

	r.report.Duration = r.deps.Now().Sub(started)
	if err := r.record(started); err != nil {
		return nil, err
	}

	r.logger.Info("run complete",
		"run_id", r.report.RunID,
		"queries", len(rankings),
		"evaluated", len(r.report.Stats),
		"map", r.report.Aggregate.MAP,
		"mrr", r.report.Aggregate.MRR,
		"duration", r.report.Duration)
	return r.report, nil
}

func (r *runner) writeRankings(rankings []*search.Ranking) error {
	out := r.cfg.Output
	for _, rk := range rankings {
		path := filepath.Join(out.Dir, out.RankingPrefix+rk.QueryID+".txt")
		err := format.WriteFile(path, func(w io.Writer) error {
			return format.WriteRanking(w, rk, out.SystemName)
		})
		if err != nil {
			return err
		}
		if len(rk.Clamped) > 0 {
			r.flag(rk.QueryID)
		}
		if m := r.deps.Metrics; m != nil {
			m.QueriesTotal.WithLabelValues("ranked").Inc()
			m.ResultsCount.Observe(float64(len(rk.Results)))
			m.CandidatesCount.Observe(float64(rk.Candidates))
			m.ClampedTermsTotal.Add(float64(len(rk.Clamped)))
		}
	}
	return nil
}

func (r *runner) evaluate(rankings []*search.Ranking, judgments *feedback.Judgments) error {
	out := r.cfg.Output
	for _, rk := range rankings {
		ranked := make([]string, len(rk.Results))
		for i, res := range rk.Results {
			ranked[i] = res.DocID
		}

		qs, rows, ok := eval.Evaluate(rk.QueryID, ranked, eval.Set(judgments.Relevant(rk.QueryID)), judgments.Count(rk.QueryID))
		if !ok {
			r.report.Excluded = append(r.report.Excluded, rk.QueryID)
			if r.deps.Metrics != nil {
				r.deps.Metrics.QueriesTotal.WithLabelValues("excluded").Inc()
			}
			continue
		}
		if qs.Undefined {
			r.flag(rk.QueryID)
			r.logger.Warn("average precision undefined, counted as zero",
				"query", rk.QueryID, "relevant", qs.RelevantTotal, "retrieved", qs.Retrieved)
			if r.deps.Metrics != nil {
				r.deps.Metrics.UndefinedMetricTotal.Inc()
			}
		}
		if r.deps.Metrics != nil {
			r.deps.Metrics.QueriesTotal.WithLabelValues("evaluated").Inc()
		}
		r.report.Stats = append(r.report.Stats, qs)

		path := filepath.Join(out.Dir, out.AnalysisPrefix+rk.QueryID+".txt")
		if err := format.WriteFile(path, func(w io.Writer) error {
			return format.WriteQueryAnalysis(w, qs, rows)
		}); err != nil {
			return err
		}
	}

	r.report.Aggregate = eval.Aggregate(r.report.Stats)
	if m := r.deps.Metrics; m != nil {
		m.MeanAveragePrecision.Set(r.report.Aggregate.MAP)
		m.MeanReciprocalRank.Set(r.report.Aggregate.MRR)
	}
	return format.WriteFile(filepath.Join(out.Dir, out.Summary), func(w io.Writer) error {
		return format.WriteSummary(w, r.report.Aggregate)
	})
}

func (r *runner) flag(queryID string) {
	for _, q := range r.report.Flagged {
		if q == queryID {
			return
		}
	}
	r.report.Flagged = append(r.report.Flagged, queryID)
}

// record stores the run in the ledger and writes the metrics textfile.
func (r *runner) record(started time.Time) error {
	if m := r.deps.Metrics; m != nil {
		m.RunDuration.Set(r.report.Duration.Seconds())
		if r.cfg.Metrics.Textfile != "" {
			if err := m.WriteTextfile(r.cfg.Metrics.Textfile); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
		}
	}

	if r.deps.Ledger == nil {
		return nil
	}
	p := r.cfg.Ranking.Params()
	run := &store.RunRecord{
		StartedAt:   started,
		Duration:    r.report.Duration,
		IndexDigest: r.report.IndexDigest.String(),
		K1:          p.K1,
		K2:          p.K2,
		B:           p.B,
		Limit:       r.cfg.Ranking.Limit,
		Feedback:    r.cfg.Ranking.Feedback,
		Queries:     len(r.report.Rankings),
		MAP:         r.report.Aggregate.MAP,
		MRR:         r.report.Aggregate.MRR,
		Flagged:     r.report.Flagged,
		System:      r.cfg.Output.SystemName,
	}
	for _, qs := range r.report.Stats {
		run.Stats = append(run.Stats, store.QueryRecord{
			QueryID:          qs.QueryID,
			Precision:        qs.Precision,
			Recall:           qs.Recall,
			AveragePrecision: qs.AveragePrecision,
			ReciprocalRank:   qs.ReciprocalRank,
			PrecisionAt5:     qs.PrecisionAt5,
			PrecisionAt20:    qs.PrecisionAt20,
			Undefined:        qs.Undefined,
		})
	}
	rankings := make(map[string][]store.RankedDoc, len(r.report.Rankings))
	for _, rk := range r.report.Rankings {
		docs := make([]store.RankedDoc, len(rk.Results))
		for i, res := range rk.Results {
			docs[i] = store.RankedDoc{DocID: res.DocID, Score: res.Score}
		}
		rankings[rk.QueryID] = docs
	}

	id, err := r.deps.Ledger.Record(run, rankings)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	r.report.RunID = id
	return nil
}
