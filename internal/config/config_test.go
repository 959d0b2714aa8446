package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1.2, cfg.Ranking.K1)
	assert.Equal(t, 100.0, cfg.Ranking.K2)
	assert.Equal(t, 0.75, cfg.Ranking.B)
	assert.Equal(t, 100, cfg.Ranking.Limit)
	assert.Equal(t, 0, cfg.Ranking.DocIDWidth)
	assert.Equal(t, "BM25", cfg.Output.SystemName)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bm25eval.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input:
  index: data/index.txt
  lengths: data/lengths.txt
  queries: data/queries.txt
  stopWords: [the, of]
ranking:
  limit: 20
  feedback: true
strict: true
`), 0644))

	t.Setenv("BM25EVAL_RANKING_LIMIT", "50")
	t.Setenv("BM25EVAL_INPUT_JUDGMENTS", "data/rel.txt")
	t.Setenv("BM25EVAL_LOGGING_LEVEL", "debug")
	t.Setenv("BM25EVAL_RANKING_DOCIDWIDTH", "9")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "data/index.txt", cfg.Input.Index)
	assert.Equal(t, []string{"the", "of"}, cfg.Input.StopWords)
	assert.Equal(t, 50, cfg.Ranking.Limit)
	assert.True(t, cfg.Ranking.Feedback)
	assert.True(t, cfg.Strict)
	assert.Equal(t, "data/rel.txt", cfg.Input.Judgments)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 9, cfg.Ranking.DocIDWidth)
	// Untouched defaults survive a partial file.
	assert.Equal(t, 1.2, cfg.Ranking.K1)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ranking: [1, 2"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input.queries")
	assert.Contains(t, err.Error(), "input.index or input.corpus")

	cfg.Input.Queries = "q.txt"
	cfg.Input.Corpus = "corpus.txt"
	assert.NoError(t, cfg.Validate())

	cfg.Ranking.Feedback = true
	assert.ErrorContains(t, cfg.Validate(), "judgments")

	cfg.Ranking.Feedback = false
	cfg.Ranking.Analyzer = "porter"
	assert.ErrorContains(t, cfg.Validate(), "ranking.analyzer")

	cfg.Ranking.Analyzer = "simple"
	require.NoError(t, cfg.Validate())
	cfg.Ranking.B = 2
	assert.Error(t, cfg.Validate())
}
