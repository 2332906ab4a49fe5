package fuzzy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lexicore/fuzzy"
	"lexicore/model"
)

func sampleCandidates() []fuzzy.Candidate {
	return []fuzzy.Candidate{
		{Normalized: "apple", Original: "Apple", Frequency: 10},
		{Normalized: "application", Original: "Application", Frequency: 3},
		{Normalized: "apply", Original: "Apply", Frequency: 7},
		{Normalized: "banana", Original: "Banana", Frequency: 1},
	}
}

func TestSearchFindsCloseMatch(t *testing.T) {
	results := fuzzy.Search(sampleCandidates(), "aple", 0.5, 5)
	require.NotEmpty(t, results)
	require.Equal(t, "apple", results[0].Term)
	require.Equal(t, model.MethodFuzzy, results[0].Method)
	require.Greater(t, results[0].Score, 0.7)
}

func TestSearchRejectsBelowMinScore(t *testing.T) {
	results := fuzzy.Search(sampleCandidates(), "aple", 0.99, 5)
	require.Empty(t, results)
}

func TestSearchOrdersByScoreThenFrequency(t *testing.T) {
	results := fuzzy.Search(sampleCandidates(), "appl", 0.5, 5)
	require.True(t, len(results) >= 2)
	for i := 1; i < len(results); i++ {
		require.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		if results[i-1].Score == results[i].Score {
			require.GreaterOrEqual(t, results[i-1].Frequency, results[i].Frequency)
		}
	}
}

func TestSearchCollapsesByLemma(t *testing.T) {
	candidates := []fuzzy.Candidate{
		{Normalized: "run", Original: "run", Frequency: 5, Lemma: "run"},
		{Normalized: "ran", Original: "ran", Frequency: 2, Lemma: "run"},
	}
	results := fuzzy.Search(candidates, "run", 0.1, 5)
	require.Len(t, results, 1)
	require.Equal(t, "run", results[0].Term)
}

func TestSearchRespectsMaxResults(t *testing.T) {
	results := fuzzy.Search(sampleCandidates(), "appl", 0.1, 1)
	require.Len(t, results, 1)
}
