package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harshagw/bm25eval/internal/analysis"
	"harshagw/bm25eval/internal/index"
)

func TestNewStats(t *testing.T) {
	s, err := NewStats(map[string]int{"d1": 3, "d2": 3, "d3": 0})
	require.NoError(t, err)

	assert.Equal(t, 3, s.N())
	assert.Equal(t, 6, s.TotalLength())
	assert.InDelta(t, 2.0, s.AvgDocLength(), 1e-12)

	l, ok := s.Length("d3")
	assert.True(t, ok)
	assert.Equal(t, 0, l)

	_, ok = s.Length("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"d1", "d2", "d3"}, s.DocIDs())
}

func TestNewStats_Empty(t *testing.T) {
	_, err := NewStats(nil)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestNewStats_NegativeLength(t *testing.T) {
	_, err := NewStats(map[string]int{"d1": -1})
	assert.Error(t, err)
}

func TestNewStats_CopiesInput(t *testing.T) {
	in := map[string]int{"d1": 4}
	s, err := NewStats(in)
	require.NoError(t, err)
	in["d1"] = 100

	l, _ := s.Length("d1")
	assert.Equal(t, 4, l)
}

func TestFromIndex_SkipsStopWords(t *testing.T) {
	b := index.NewBuilder(index.DefaultConfig())
	require.NoError(t, b.Add("d1", "the design of the system"))
	require.NoError(t, b.Add("d2", "the"))
	idx, err := b.Build()
	require.NoError(t, err)

	s, err := FromIndex(idx, analysis.NewStopWords("the", "of"))
	require.NoError(t, err)

	l, _ := s.Length("d1")
	assert.Equal(t, 2, l)
	l, ok := s.Length("d2")
	assert.True(t, ok)
	assert.Equal(t, 0, l)
	assert.InDelta(t, 1.0, s.AvgDocLength(), 1e-12)
}

func TestFromIndex_NoStopWords(t *testing.T) {
	b := index.NewBuilder(index.DefaultConfig())
	require.NoError(t, b.Add("d1", "a b c"))
	require.NoError(t, b.Add("d2", "a a b"))
	idx, err := b.Build()
	require.NoError(t, err)

	s, err := FromIndex(idx, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"d1": 3, "d2": 3}, s.Lengths())
}
