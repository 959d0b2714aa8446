package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/spf13/pflag"

	"harshagw/bm25eval/internal/analysis"
	"harshagw/bm25eval/internal/batch"
	"harshagw/bm25eval/internal/config"
	"harshagw/bm25eval/internal/feedback"
	"harshagw/bm25eval/internal/format"
	"harshagw/bm25eval/internal/index"
	"harshagw/bm25eval/internal/logging"
	"harshagw/bm25eval/internal/search"
)

const defaultLimit = 10

type REPL struct {
	corpus    *batch.Corpus
	searcher  *search.Searcher
	judgments *feedback.Judgments
	last      *search.Ranking
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "explore: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string

	fs := pflag.NewFlagSet("explore", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "YAML config file")
	indexPath := fs.String("index", "", "posting index file")
	lengthsPath := fs.String("lengths", "", "document length file")
	corpusPath := fs.String("corpus", "", "pre-tokenized corpus file")
	judgmentsPath := fs.String("judgments", "", "relevance judgment file, enables feedback")
	stopwords := fs.StringSlice("stopwords", nil, "words left out of document lengths")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if *indexPath != "" {
		cfg.Input.Index, cfg.Input.Lengths = *indexPath, *lengthsPath
	}
	if *corpusPath != "" {
		cfg.Input.Corpus = *corpusPath
	}
	if *judgmentsPath != "" {
		cfg.Input.Judgments = *judgmentsPath
	}
	if fs.Changed("stopwords") {
		cfg.Input.StopWords = *stopwords
	}
	// Keep the prompt clean; warnings still surface.
	logging.Setup("warn", "text")

	c, err := batch.LoadCorpus(context.Background(), cfg, batch.Deps{})
	if err != nil {
		return err
	}
	analyzer, err := analysis.ByName(cfg.Ranking.Analyzer)
	if err != nil {
		return err
	}
	s, err := search.New(c.Index, c.Stats, search.Config{
		Params:   cfg.Ranking.Params(),
		Analyzer: analyzer,
		Logger:   logging.WithComponent("search"),
	})
	if err != nil {
		return err
	}

	r := &REPL{corpus: c, searcher: s}
	if cfg.Input.Judgments != "" {
		j, _, err := format.ReadJudgments(cfg.Input.Judgments, feedback.PadDocID(cfg.Ranking.DocIDWidth), format.Options{})
		if err != nil {
			return err
		}
		r.judgments = j
	}

	fmt.Println("BM25 Index Explorer")
	fmt.Println()
	printHelp()
	fmt.Println()
	fmt.Printf("Loaded %d documents, %d terms, avdl %.2f\n\n",
		c.Index.NumDocs(), c.Index.NumTerms(), c.Stats.AvgDocLength())

	p := prompt.New(
		r.executor,
		r.completer,
		prompt.OptionPrefix("bm25 >> "),
		prompt.OptionTitle("bm25eval explore"),
	)
	p.Run()
	return nil
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  search [--limit=N] [--qid=Q] <text> - Rank documents, Q enables relevance feedback")
	fmt.Println("  explain                             - Show term weights of the last search")
	fmt.Println("  postings <term>                     - Show posting list")
	fmt.Println("  terms <prefix>                      - List terms with prefix")
	fmt.Println("  fuzzy <term> [distance]             - List terms within edit distance")
	fmt.Println("  regex <pattern>                     - List terms matching a regular expression")
	fmt.Println("  doc <docID>                         - Show document length")
	fmt.Println("  stats                               - Show corpus statistics")
	fmt.Println("  help                                - Show this help")
	fmt.Println("  quit                                - Exit")
}

func (r *REPL) completer(d prompt.Document) []prompt.Suggest {
	if strings.Contains(d.TextBeforeCursor(), " ") {
		return nil
	}
	s := []prompt.Suggest{
		{Text: "search", Description: "rank documents"},
		{Text: "explain", Description: "term weights of the last search"},
		{Text: "postings", Description: "posting list of a term"},
		{Text: "terms", Description: "terms by prefix"},
		{Text: "fuzzy", Description: "terms by edit distance"},
		{Text: "regex", Description: "terms by pattern"},
		{Text: "doc", Description: "document length"},
		{Text: "stats", Description: "corpus statistics"},
		{Text: "help", Description: "show help"},
		{Text: "quit", Description: "exit"},
	}
	return prompt.FilterHasPrefix(s, d.GetWordBeforeCursor(), true)
}

func (r *REPL) executor(input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}

	parts := strings.Fields(input)
	cmd := parts[0]

	switch cmd {
	case "search":
		r.cmdSearch(parts[1:])
	case "explain":
		r.cmdExplain()
	case "postings":
		r.cmdPostings(parts[1:])
	case "terms":
		r.cmdTerms(parts[1:])
	case "fuzzy":
		r.cmdFuzzy(parts[1:])
	case "regex":
		r.cmdRegex(parts[1:])
	case "doc":
		r.cmdDoc(parts[1:])
	case "stats":
		r.cmdStats()
	case "help":
		printHelp()
	case "quit", "exit":
		fmt.Println("Goodbye!")
		os.Exit(0)
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
	}
}

func (r *REPL) cmdSearch(args []string) {
	limit := defaultLimit
	qid := ""
	for len(args) > 0 && strings.HasPrefix(args[0], "--") {
		if v, ok := strings.CutPrefix(args[0], "--limit="); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				fmt.Printf("Error: invalid limit %q\n", v)
				return
			}
			limit = n
		} else if v, ok := strings.CutPrefix(args[0], "--qid="); ok {
			qid = v
		} else {
			fmt.Printf("Error: unknown option %s\n", args[0])
			return
		}
		args = args[1:]
	}
	if len(args) < 1 {
		fmt.Println("Usage: search [--limit=N] [--qid=Q] <text>")
		return
	}

	fb := feedback.None()
	if qid != "" {
		if r.judgments == nil {
			fmt.Println("Error: no judgments loaded, start with --judgments")
			return
		}
		fb = feedback.ForQuery(r.corpus.Index, r.judgments, qid)
	}

	q := search.Query{ID: qid, Text: strings.Join(args, " ")}
	if q.ID == "" {
		q.ID = "adhoc"
	}
	ranking, err := r.searcher.Rank(q, fb, limit)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	r.last = ranking

	fmt.Printf("%d of %d candidates", len(ranking.Results), ranking.Candidates)
	if fb.Enabled() {
		fmt.Printf(" (feedback R=%d)", fb.R())
	}
	fmt.Println()
	for _, res := range ranking.Results {
		mark := ""
		if qid != "" && r.judgments.IsRelevant(qid, res.DocID) {
			mark = " *"
		}
		fmt.Printf("  %3d. %-16s %8.2f%s\n", res.Rank, res.DocID, res.Score, mark)
	}
	if len(ranking.Clamped) > 0 {
		fmt.Printf("Clamped terms: %s\n", strings.Join(ranking.Clamped, ", "))
	}
}

func (r *REPL) cmdExplain() {
	if r.last == nil {
		fmt.Println("No search yet")
		return
	}
	fmt.Printf("Query %s (R=%d)\n", r.last.QueryID, r.last.R)
	fmt.Printf("  %-20s %4s %6s %4s %10s\n", "term", "qf", "n_i", "r_i", "weight")
	for _, ts := range r.last.Terms {
		mark := ""
		if ts.Clamped {
			mark = " clamped"
		}
		fmt.Printf("  %-20s %4d %6d %4d %10.4f%s\n", ts.Term, ts.QF, ts.DF, ts.RI, ts.Weight, mark)
	}
}

func (r *REPL) cmdPostings(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: postings <term>")
		return
	}
	list := r.corpus.Index.PostingList(args[0])
	if len(list) == 0 {
		fmt.Printf("Term '%s' not found\n", args[0])
		return
	}
	fmt.Printf("Posting list for '%s' (%d docs):\n", args[0], len(list))
	for _, p := range list {
		fmt.Printf("  %s:%d\n", p.DocID, p.Frequency)
	}
}

func printTerms(idx *index.Index, terms []string, err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(terms) == 0 {
		fmt.Println("No terms")
		return
	}
	for _, t := range terms {
		fmt.Printf("  %-24s df=%d\n", t, idx.DocFreq(t))
	}
	fmt.Printf("(%d terms)\n", len(terms))
}

func (r *REPL) cmdTerms(args []string) {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	terms, err := r.corpus.Index.PrefixTerms(prefix)
	printTerms(r.corpus.Index, terms, err)
}

func (r *REPL) cmdFuzzy(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: fuzzy <term> [distance]")
		return
	}
	dist := uint64(1)
	if len(args) > 1 {
		d, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			fmt.Printf("Error: invalid distance %q\n", args[1])
			return
		}
		dist = d
	}
	terms, err := r.corpus.Index.FuzzyTerms(args[0], uint8(dist))
	printTerms(r.corpus.Index, terms, err)
}

func (r *REPL) cmdRegex(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: regex <pattern>")
		return
	}
	terms, err := r.corpus.Index.MatchingTerms(args[0])
	printTerms(r.corpus.Index, terms, err)
}

func (r *REPL) cmdDoc(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: doc <docID>")
		return
	}
	l, ok := r.corpus.Stats.Length(args[0])
	if !ok {
		fmt.Printf("Document '%s' not found\n", args[0])
		return
	}
	num, _ := r.corpus.Index.DocNum(args[0])
	fmt.Printf("Document %s: docNum=%d length=%d (avdl %.2f)\n", args[0], num, l, r.corpus.Stats.AvgDocLength())
}

func (r *REPL) cmdStats() {
	idx := r.corpus.Index
	stats := r.corpus.Stats
	p := r.searcher.Params()
	fmt.Printf("Documents:      %d\n", stats.N())
	fmt.Printf("Terms:          %d\n", idx.NumTerms())
	fmt.Printf("Total length:   %d\n", stats.TotalLength())
	fmt.Printf("Avg doc length: %.2f\n", stats.AvgDocLength())
	fmt.Printf("Parameters:     k1=%.2f k2=%.2f b=%.2f\n", p.K1, p.K2, p.B)
	fmt.Printf("Index digest:   %s\n", idx.Digest())
	if r.judgments != nil {
		fmt.Printf("Judged queries: %d\n", len(r.judgments.QueryIDs()))
	}
}
