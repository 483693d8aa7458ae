// Package search runs the disease search workflow: translation, candidate
// selection, embedding and ranking.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/nursesim/internal/embedding"
	"github.com/hyperjump/nursesim/internal/metrics"
	"github.com/hyperjump/nursesim/internal/models"
	"github.com/hyperjump/nursesim/internal/ranking"
	"github.com/hyperjump/nursesim/internal/storage"
	"github.com/hyperjump/nursesim/internal/translate"
)

// Engine answers disease searches.
type Engine struct {
	store      storage.DiseaseStore
	embedder   embedding.Embedder
	translator translate.Translator
	ranker     *ranking.Ranker
	candidates string
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDefaultCandidates sets the candidate source used when a query names none.
func WithDefaultCandidates(source string) Option {
	return func(e *Engine) {
		if source != "" {
			e.candidates = source
		}
	}
}

// NewEngine creates a search engine. translator may be nil to disable translation.
func NewEngine(
	store storage.DiseaseStore,
	embedder embedding.Embedder,
	translator translate.Translator,
	ranker *ranking.Ranker,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:      store,
		embedder:   embedder,
		translator: translator,
		ranker:     ranker,
		candidates: models.CandidatesAll,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search translates a Hangul query, ranks the candidates for every query
// variant and splits the merged result into the title and content panels.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if query.Candidates == "" {
		query.Candidates = e.candidates
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	text := query.Query
	resp := &models.SearchResponse{Query: query.Query}
	if !query.SkipTranslation && e.translator != nil {
		if translated := e.translator.ToEnglish(ctx, text); translated != text {
			resp.TranslatedQuery = translated
			text = translated
		}
	}
	resp.Variants = models.QueryVariants(text)
	if len(resp.Variants) == 0 {
		return nil, models.InvalidInputf("query %q has no searchable text", query.Query)
	}

	candidates, err := e.loadCandidates(ctx, query.Candidates, resp.Variants)
	if err != nil {
		return nil, err
	}

	// Rankings are indexed by variant so the merge keeps the variant order.
	rankings := make([]*ranking.Ranking, len(resp.Variants))
	if len(candidates) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for i, variant := range resp.Variants {
			i, variant := i, variant
			g.Go(func() error {
				queryEmbedding, err := e.embedder.Embed(gctx, variant)
				if err != nil {
					return fmt.Errorf("embedding failed: %w", err)
				}
				r, err := e.ranker.Rank(queryEmbedding, candidates, variant)
				if err != nil {
					return fmt.Errorf("ranking failed: %w", err)
				}
				rankings[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	merged := ranking.MergeRankings(e.ranker.Config().KeywordTopN, rankings...)
	resp.Similar = merged.Similar
	resp.ContentResults = merged.Keyword
	resp.TitleResults = ranking.SplitByTitle(merged.Similar, resp.Variants...)

	elapsed := time.Since(startTime)
	resp.QueryTime = elapsed.Milliseconds()
	metrics.SearchDuration.WithLabelValues(query.Candidates).Observe(elapsed.Seconds())
	e.logger.Debug("disease search",
		zap.String("query", query.Query),
		zap.Strings("variants", resp.Variants),
		zap.String("candidates", query.Candidates),
		zap.Int("candidate_count", len(candidates)),
		zap.Int("similar", len(resp.Similar)),
		zap.Int("content", len(resp.ContentResults)),
		zap.Duration("duration", elapsed))
	return resp, nil
}

// loadCandidates returns every record for CandidatesAll, or the union of the
// substring matches of each variant in storage order for CandidatesKeyword.
func (e *Engine) loadCandidates(ctx context.Context, source string, variants []string) ([]*models.DiseaseRecord, error) {
	if source == models.CandidatesAll {
		all, err := e.store.ListDiseases(ctx)
		if err != nil {
			return nil, fmt.Errorf("list candidates: %w", err)
		}
		return all, nil
	}

	var out []*models.DiseaseRecord
	seen := map[string]bool{}
	for _, v := range variants {
		matches, err := e.store.SearchByText(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("search candidates for %q: %w", v, err)
		}
		for _, m := range matches {
			if !seen[m.ID] {
				seen[m.ID] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}
