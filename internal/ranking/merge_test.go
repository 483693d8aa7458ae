package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/nursesim/internal/models"
)

func ranked(id, title string, sim float64, occ int) *models.RankedDisease {
	return &models.RankedDisease{
		Disease:     &models.DiseaseRecord{ID: id, Title: title},
		Similarity:  sim,
		Occurrences: occ,
	}
}

func TestMergeRankings(t *testing.T) {
	plural := &Ranking{
		Similar: []*models.RankedDisease{ranked("1", "Seizures", 0.95, 0), ranked("2", "Epilepsy", 0.91, 3)},
		Keyword: []*models.RankedDisease{ranked("2", "Epilepsy", 0.91, 3)},
	}
	singular := &Ranking{
		Similar: []*models.RankedDisease{ranked("3", "Seizure", 0.97, 5), ranked("1", "Seizures", 0.95, 1)},
		Keyword: []*models.RankedDisease{ranked("3", "Seizure", 0.97, 5), ranked("1", "Seizures", 0.95, 1)},
	}

	got := MergeRankings(2, plural, nil, singular)
	assert.Equal(t, []string{"3", "1", "2"}, ids(got.Similar))
	assert.Equal(t, []string{"3", "2"}, ids(got.Keyword))
}

func TestMergeRankings_keepsStrongerVariantEntry(t *testing.T) {
	candidates := []*models.DiseaseRecord{
		disease("A", []float32{1, 0}, "fevers"),
		disease("B", []float32{1, 0}, "fevers. fever fever"),
		disease("C", []float32{1, 0}, "fever fever"),
	}
	r := NewRanker(nil)
	plural, err := r.Rank([]float32{1, 0}, candidates, "fevers")
	require.NoError(t, err)
	singular, err := r.Rank([]float32{1, 0}, candidates, "fever")
	require.NoError(t, err)

	got := MergeRankings(9, plural, singular)
	assert.Equal(t, []string{"B", "C", "A"}, ids(got.Keyword))
	occurrences := map[string]int{}
	for _, rd := range got.Keyword {
		occurrences[rd.Disease.ID] = rd.Occurrences
	}
	assert.Equal(t, map[string]int{"A": 1, "B": 3, "C": 2}, occurrences)
	assert.Len(t, got.Similar, 3)
}

func TestMergeRankings_similarKeepsHigherSimilarity(t *testing.T) {
	first := &Ranking{Similar: []*models.RankedDisease{ranked("1", "Gout", 0.91, 0), ranked("2", "Arthritis", 0.92, 0)}}
	second := &Ranking{Similar: []*models.RankedDisease{ranked("1", "Gout", 0.99, 0)}}

	got := MergeRankings(9, first, second)
	assert.Equal(t, []string{"1", "2"}, ids(got.Similar))
	assert.Equal(t, 0.99, got.Similar[0].Similarity)
}

func TestMergeRankings_single(t *testing.T) {
	one := &Ranking{
		Similar: []*models.RankedDisease{ranked("1", "A", 0.5, 0)},
		Keyword: []*models.RankedDisease{},
	}
	got := MergeRankings(9, one)
	assert.Equal(t, []string{"1"}, ids(got.Similar))
	assert.NotNil(t, got.Keyword)

	empty := MergeRankings(9)
	assert.NotNil(t, empty.Similar)
	assert.Empty(t, empty.Similar)
}

func TestSplitByTitle(t *testing.T) {
	list := []*models.RankedDisease{
		ranked("1", "Type 2 Diabetes", 0.99, 0),
		ranked("2", "Hypertension", 0.95, 0),
		ranked("3", "Diabetic ketoacidosis", 0.93, 0),
	}
	assert.Equal(t, []string{"1"}, ids(SplitByTitle(list, "diabetes")))
	assert.Equal(t, []string{"1", "3"}, ids(SplitByTitle(list, "diabetes", "diabet")))
	assert.Empty(t, SplitByTitle(list, "", "  "))
	assert.NotNil(t, SplitByTitle(nil, "x"))
}
