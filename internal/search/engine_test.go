package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/nursesim/internal/embedding"
	"github.com/hyperjump/nursesim/internal/models"
	"github.com/hyperjump/nursesim/internal/ranking"
	"github.com/hyperjump/nursesim/internal/storage"
)

type mapTranslator map[string]string

func (m mapTranslator) Translate(_ context.Context, text, _, _ string) string {
	if out, ok := m[text]; ok {
		return out
	}
	return text
}

func (m mapTranslator) ToEnglish(ctx context.Context, text string) string {
	return m.Translate(ctx, text, "KO", "EN")
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *storage.SQLStore) {
	t.Helper()
	ctx := context.Background()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "search.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	emb := embedding.NewMockEmbedder(32)
	for _, d := range []*models.DiseaseRecord{
		{Title: "Influenza", Paragraphs: []string{"Flu causes fever and cough."}, Attributes: map[string]string{"symptoms": "fever, chills"}},
		{Title: "Fever of unknown origin", Paragraphs: []string{"A fever lasting weeks."}},
		{Title: "Asthma", Paragraphs: []string{"Airway disease with wheezing."}},
	} {
		vec, err := emb.Embed(ctx, d.EmbeddingText())
		if err != nil {
			t.Fatal(err)
		}
		d.Embedding = vec
		if err := store.CreateDisease(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	translator := mapTranslator{"열": "fevers"}
	return NewEngine(store, emb, translator, ranking.NewRanker(nil), opts...), store
}

func titles(ranked []*models.RankedDisease) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Disease.Title
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEngine_Search(t *testing.T) {
	for _, source := range []string{models.CandidatesAll, models.CandidatesKeyword} {
		t.Run(source, func(t *testing.T) {
			engine, _ := newTestEngine(t)
			resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "fevers", Candidates: source})
			if err != nil {
				t.Fatal(err)
			}

			if !equalStrings(resp.Variants, []string{"fevers", "fever"}) {
				t.Errorf("Variants = %v", resp.Variants)
			}
			if got := titles(resp.ContentResults); !equalStrings(got, []string{"Influenza", "Fever of unknown origin"}) {
				t.Errorf("ContentResults = %v", got)
			}
			if resp.ContentResults[0].Occurrences != 2 {
				t.Errorf("Influenza occurrences = %d, want 2", resp.ContentResults[0].Occurrences)
			}
			if got := titles(resp.TitleResults); !equalStrings(got, []string{"Fever of unknown origin"}) {
				t.Errorf("TitleResults = %v", got)
			}
			for _, r := range resp.Similar {
				if r.Disease.Title == "Asthma" {
					t.Error("Asthma should not be in the similar set")
				}
			}
		})
	}
}

func TestEngine_Search_TranslatesHangul(t *testing.T) {
	engine, _ := newTestEngine(t)
	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "열"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Query != "열" || resp.TranslatedQuery != "fevers" {
		t.Errorf("Query = %q, TranslatedQuery = %q", resp.Query, resp.TranslatedQuery)
	}
	if len(resp.ContentResults) != 2 {
		t.Errorf("ContentResults = %v", titles(resp.ContentResults))
	}

	resp, err = engine.Search(context.Background(), &models.SearchQuery{Query: "열", SkipTranslation: true})
	if err != nil {
		t.Fatal(err)
	}
	if resp.TranslatedQuery != "" || len(resp.ContentResults) != 0 {
		t.Errorf("untranslated search: translated=%q content=%v", resp.TranslatedQuery, titles(resp.ContentResults))
	}
}

func TestEngine_Search_NoMatches(t *testing.T) {
	engine, _ := newTestEngine(t, WithDefaultCandidates(models.CandidatesKeyword))
	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "fracture"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.TitleResults == nil || resp.ContentResults == nil || resp.Similar == nil {
		t.Fatal("result lists must be non-nil")
	}
	if len(resp.Similar) != 0 || len(resp.ContentResults) != 0 {
		t.Errorf("expected no results, got %v / %v", titles(resp.Similar), titles(resp.ContentResults))
	}
}

func TestEngine_Search_InvalidQuery(t *testing.T) {
	engine, _ := newTestEngine(t)
	if _, err := engine.Search(context.Background(), &models.SearchQuery{Query: "  "}); err == nil {
		t.Error("expected error for blank query")
	}
	if _, err := engine.Search(context.Background(), &models.SearchQuery{Query: "x", Candidates: "vector"}); err == nil {
		t.Error("expected error for unknown candidate source")
	}
}
