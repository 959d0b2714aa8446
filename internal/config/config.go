// Package config loads run configuration from YAML with environment-variable
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"harshagw/bm25eval/internal/analysis"
	"harshagw/bm25eval/internal/search"
)

// Config is the top-level configuration of a batch run.
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Output  OutputConfig  `yaml:"output"`
	Ranking RankingConfig `yaml:"ranking"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
	// Strict makes any malformed input record fatal.
	Strict bool `yaml:"strict"`
}

// InputConfig names the input files. Either Index+Lengths or Corpus must
// be given; when both are set the index files win.
type InputConfig struct {
	Corpus    string   `yaml:"corpus"`
	Index     string   `yaml:"index"`
	Lengths   string   `yaml:"lengths"`
	Queries   string   `yaml:"queries"`
	Judgments string   `yaml:"judgments"`
	StopWords []string `yaml:"stopWords"`
}

type OutputConfig struct {
	Dir            string `yaml:"dir"`
	RankingPrefix  string `yaml:"rankingPrefix"`
	AnalysisPrefix string `yaml:"analysisPrefix"`
	Summary        string `yaml:"summary"`
	SystemName     string `yaml:"systemName"`
}

type RankingConfig struct {
	K1       float64 `yaml:"k1"`
	K2       float64 `yaml:"k2"`
	B        float64 `yaml:"b"`
	Limit    int     `yaml:"limit"`
	Workers  int     `yaml:"workers"`
	Feedback bool    `yaml:"feedback"`
	// Analyzer tokenizes corpus documents and query text: whitespace or simple.
	Analyzer string `yaml:"analyzer"`
	// DocIDWidth pads judgment doc IDs after the first '-' (9 for CACM);
	// 0, the default, leaves them unchanged.
	DocIDWidth int `yaml:"docIdWidth"`
}

// Params returns the BM25 constants.
func (r RankingConfig) Params() search.Params {
	return search.Params{K1: r.K1, K2: r.K2, B: r.B}
}

type LedgerConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig controls where run metrics are written in Prometheus text
// format. An empty Textfile disables them.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	p := search.DefaultParams()
	return &Config{
		Output: OutputConfig{
			Dir:            "out",
			RankingPrefix:  "ranking_",
			AnalysisPrefix: "analysis_forQuery_",
			Summary:        "summary.txt",
			SystemName:     "BM25",
		},
		Ranking: RankingConfig{
			K1:         p.K1,
			K2:         p.K2,
			B:          p.B,
			Limit:      100,
			Workers:    4,
			Feedback:   false,
			Analyzer:   "whitespace",
			DocIDWidth: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration describes a runnable job.
func (c *Config) Validate() error {
	var errs []error
	if c.Input.Queries == "" {
		errs = append(errs, errors.New("input.queries is required"))
	}
	if c.Input.Corpus == "" {
		if c.Input.Index == "" {
			errs = append(errs, errors.New("input.index or input.corpus is required"))
		}
		if c.Input.Lengths == "" {
			errs = append(errs, errors.New("input.lengths is required without input.corpus"))
		}
	}
	if c.Ranking.Feedback && c.Input.Judgments == "" {
		errs = append(errs, errors.New("ranking.feedback needs input.judgments"))
	}
	if c.Ranking.Workers < 0 {
		errs = append(errs, fmt.Errorf("ranking.workers must be >= 0, got %d", c.Ranking.Workers))
	}
	if _, err := analysis.ByName(c.Ranking.Analyzer); err != nil {
		errs = append(errs, fmt.Errorf("ranking.analyzer: %w", err))
	}
	if err := c.Ranking.Params().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// applyEnvOverrides reads BM25EVAL_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	strVars := map[string]*string{
		"BM25EVAL_INPUT_CORPUS":     &cfg.Input.Corpus,
		"BM25EVAL_INPUT_INDEX":      &cfg.Input.Index,
		"BM25EVAL_INPUT_LENGTHS":    &cfg.Input.Lengths,
		"BM25EVAL_INPUT_QUERIES":    &cfg.Input.Queries,
		"BM25EVAL_INPUT_JUDGMENTS":  &cfg.Input.Judgments,
		"BM25EVAL_RANKING_ANALYZER": &cfg.Ranking.Analyzer,
		"BM25EVAL_OUTPUT_DIR":       &cfg.Output.Dir,
		"BM25EVAL_OUTPUT_SYSTEM":    &cfg.Output.SystemName,
		"BM25EVAL_LEDGER_PATH":      &cfg.Ledger.Path,
		"BM25EVAL_METRICS_TEXTFILE": &cfg.Metrics.Textfile,
		"BM25EVAL_LOGGING_LEVEL":    &cfg.Logging.Level,
		"BM25EVAL_LOGGING_FORMAT":   &cfg.Logging.Format,
	}
	for name, dst := range strVars {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("BM25EVAL_INPUT_STOPWORDS"); v != "" {
		cfg.Input.StopWords = strings.Split(v, ",")
	}
	if v := os.Getenv("BM25EVAL_RANKING_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ranking.Limit = n
		}
	}
	if v := os.Getenv("BM25EVAL_RANKING_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ranking.Workers = n
		}
	}
	if v := os.Getenv("BM25EVAL_RANKING_DOCIDWIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ranking.DocIDWidth = n
		}
	}
	if v := os.Getenv("BM25EVAL_RANKING_FEEDBACK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Ranking.Feedback = b
		}
	}
	if v := os.Getenv("BM25EVAL_STRICT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Strict = b
		}
	}
}
