package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"harshagw/bm25eval/internal/batch"
	"harshagw/bm25eval/internal/config"
	"harshagw/bm25eval/internal/logging"
	"harshagw/bm25eval/internal/metrics"
	"harshagw/bm25eval/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "bm25eval: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch args[0] {
	case "index":
		return cmdIndex(ctx, args[1:])
	case "run":
		return cmdRun(ctx, args[1:])
	case "runs":
		return cmdRuns(args[1:])
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `bm25eval ranks queries against a pre-tokenized corpus with BM25 and
evaluates the rankings against relevance judgments.

Usage:
  bm25eval index [flags]   build index and length files from a corpus
  bm25eval run [flags]     rank every query and evaluate
  bm25eval runs [flags]    list runs recorded in the ledger

Run "bm25eval <command> --help" for the flags of a command.
`)
}

// options collects flag values shared by index and run.
type options struct {
	configPath string
	cfg        *config.Config
}

func addCommonFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVarP(&o.configPath, "config", "c", "", "YAML config file")
	fs.String("corpus", "", "pre-tokenized corpus file (docID<TAB>tokens)")
	fs.String("out", "", "output directory")
	fs.StringSlice("stopwords", nil, "words left out of document lengths")
	fs.Bool("strict", false, "fail on malformed input records")
	fs.String("analyzer", "", "tokenizer for documents and queries: whitespace or simple")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("log-format", "", "text or json")
}

// load reads the config file and applies flags the user actually set.
func load(fs *pflag.FlagSet, o *options) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	strFlags := map[string]*string{
		"corpus":     &cfg.Input.Corpus,
		"index":      &cfg.Input.Index,
		"lengths":    &cfg.Input.Lengths,
		"queries":    &cfg.Input.Queries,
		"judgments":  &cfg.Input.Judgments,
		"out":        &cfg.Output.Dir,
		"system":     &cfg.Output.SystemName,
		"ledger":     &cfg.Ledger.Path,
		"metrics":    &cfg.Metrics.Textfile,
		"log-level":  &cfg.Logging.Level,
		"log-format": &cfg.Logging.Format,
	}
	for name, dst := range strFlags {
		if fs.Lookup(name) != nil && fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
	if fs.Changed("stopwords") {
		cfg.Input.StopWords, _ = fs.GetStringSlice("stopwords")
	}
	if fs.Changed("strict") {
		cfg.Strict, _ = fs.GetBool("strict")
	}
	if fs.Changed("analyzer") {
		cfg.Ranking.Analyzer, _ = fs.GetString("analyzer")
	}
	if fs.Lookup("limit") != nil {
		if fs.Changed("limit") {
			cfg.Ranking.Limit, _ = fs.GetInt("limit")
		}
		if fs.Changed("workers") {
			cfg.Ranking.Workers, _ = fs.GetInt("workers")
		}
		if fs.Changed("feedback") {
			cfg.Ranking.Feedback, _ = fs.GetBool("feedback")
		}
		if fs.Changed("doc-id-width") {
			cfg.Ranking.DocIDWidth, _ = fs.GetInt("doc-id-width")
		}
		if fs.Changed("k1") {
			cfg.Ranking.K1, _ = fs.GetFloat64("k1")
		}
		if fs.Changed("k2") {
			cfg.Ranking.K2, _ = fs.GetFloat64("k2")
		}
		if fs.Changed("b") {
			cfg.Ranking.B, _ = fs.GetFloat64("b")
		}
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	o.cfg = cfg
	return nil
}

func parse(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return false, nil
		}
		return false, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return false, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return true, nil
}

func cmdIndex(ctx context.Context, args []string) error {
	var o options
	fs := pflag.NewFlagSet("bm25eval index", pflag.ContinueOnError)
	addCommonFlags(fs, &o)
	if ok, err := parse(fs, args); !ok {
		return err
	}
	if err := load(fs, &o); err != nil {
		return err
	}
	if o.cfg.Input.Corpus == "" {
		return errors.New("--corpus is required")
	}

	c, err := batch.BuildIndex(ctx, o.cfg, batch.Deps{})
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d documents, %d terms (digest %s)\n",
		c.Index.NumDocs(), c.Index.NumTerms(), c.Index.Digest())
	return nil
}

func cmdRun(ctx context.Context, args []string) error {
	var o options
	fs := pflag.NewFlagSet("bm25eval run", pflag.ContinueOnError)
	addCommonFlags(fs, &o)
	fs.String("index", "", "posting index file")
	fs.String("lengths", "", "document length file")
	fs.String("queries", "", "query file (queryID text)")
	fs.String("judgments", "", "relevance judgment file")
	fs.String("system", "", "system name written in ranking files")
	fs.String("ledger", "", "run ledger database (empty disables)")
	fs.String("metrics", "", "Prometheus textfile to write (empty disables)")
	fs.Int("limit", 0, "results per query (0 keeps all)")
	fs.Int("workers", 0, "queries ranked concurrently")
	fs.Bool("feedback", false, "use judgments as relevance feedback")
	fs.Int("doc-id-width", 0, "zero-pad judgment doc IDs to this width")
	fs.Float64("k1", 0, "BM25 k1")
	fs.Float64("k2", 0, "BM25 k2")
	fs.Float64("b", 0, "BM25 b")
	if ok, err := parse(fs, args); !ok {
		return err
	}
	if err := load(fs, &o); err != nil {
		return err
	}

	deps := batch.Deps{Metrics: metrics.New()}
	if o.cfg.Ledger.Path != "" {
		ledger, err := store.Open(o.cfg.Ledger.Path)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}
		defer ledger.Close()
		deps.Ledger = ledger
	}

	ctx = logging.WithRunID(ctx, time.Now().UTC().Format("20060102T150405"))
	report, err := batch.Run(ctx, o.cfg, deps)
	if err != nil {
		return err
	}

	fmt.Printf("Ranked %d queries, evaluated %d\n", len(report.Rankings), len(report.Stats))
	if len(report.Stats) > 0 {
		fmt.Printf("Mean Average Precision: %.2f, Mean Reciprocal Rank: %.2f\n",
			report.Aggregate.MAP, report.Aggregate.MRR)
	}
	if len(report.Flagged) > 0 {
		fmt.Printf("Flagged queries: %s\n", strings.Join(report.Flagged, ", "))
	}
	for kind, n := range report.Skipped {
		fmt.Printf("Skipped %d malformed %s records\n", n, kind)
	}
	if report.RunID > 0 {
		fmt.Printf("Recorded as run %d\n", report.RunID)
	}
	return nil
}

func cmdRuns(args []string) error {
	var ledgerPath string
	var runID string
	fs := pflag.NewFlagSet("bm25eval runs", pflag.ContinueOnError)
	fs.StringVar(&ledgerPath, "ledger", "bm25eval.db", "run ledger database")
	fs.StringVar(&runID, "run", "", "show per-query stats of one run")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	ledger, err := store.Open(ledgerPath)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer ledger.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if runID != "" {
		id, err := strconv.ParseUint(runID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid run id %q", runID)
		}
		r, err := ledger.Run(id)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "QUERY\tP\tR\tAP\tRR\tP@5\tP@20\t")
		for _, qs := range r.Stats {
			mark := ""
			if qs.Undefined {
				mark = "undefined"
			}
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n", qs.QueryID,
				qs.Precision, qs.Recall, qs.AveragePrecision, qs.ReciprocalRank,
				qs.PrecisionAt5, qs.PrecisionAt20, mark)
		}
		return nil
	}

	runs, err := ledger.Runs()
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "RUN\tSTARTED\tQUERIES\tFEEDBACK\tMAP\tMRR\tINDEX\t")
	for _, r := range runs {
		digest := r.IndexDigest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%t\t%.2f\t%.2f\t%s\t\n", r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Queries, r.Feedback, r.MAP, r.MRR, digest)
	}
	return nil
}
