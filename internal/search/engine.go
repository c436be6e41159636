// Package search implements the retrieval and ranking pipeline: query
// vectorization, candidate retrieval, filtering, scoring with boosts, and
// result diversification.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/exilemind/buildsearch/internal/config"
	"github.com/exilemind/buildsearch/internal/feature"
	"github.com/exilemind/buildsearch/internal/models"
	"github.com/exilemind/buildsearch/internal/vector"
	"github.com/exilemind/buildsearch/internal/vectorizer"
)

// candidateMultiplier widens retrieval beyond the requested result count so
// filtering and diversification have candidates to discard.
const candidateMultiplier = 3

// Engine answers similarity queries against a built vector index.
type Engine struct {
	index      *vector.Index
	vectorizer *vectorizer.Vectorizer
	cfg        *config.SearchConfig
	logger     *zap.Logger
}

// NewEngine creates a search engine over the given index and vectorizer.
func NewEngine(index *vector.Index, vec *vectorizer.Vectorizer, cfg *config.SearchConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{index: index, vectorizer: vec, cfg: cfg, logger: logger}
}

// Search runs the full pipeline for a query. Returns vector.ErrNotBuilt when
// no index has been built or loaded yet.
func (e *Engine) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = e.cfg.MaxResults
	}

	queryText := q.Query
	if !q.HasText() {
		queryText = e.synthesizeQueryText(q)
	}
	queryVec, err := e.vectorizer.VectorizeText(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	k := maxResults * candidateMultiplier
	if size := e.index.Size(); k > size {
		k = size
	}
	matches, err := e.index.Search(queryVec, k)
	if err != nil {
		if errors.Is(err, vector.ErrNotBuilt) {
			return nil, err
		}
		return nil, fmt.Errorf("index search: %w", err)
	}

	results := e.rank(q, matches)
	if e.diversifyEnabled(q) {
		results = diversify(results, e.cfg.MaxSimilarPerGroup)
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	for i, r := range results {
		r.Rank = i + 1
	}

	e.logger.Debug("search completed",
		zap.String("query", queryText),
		zap.Int("candidates", len(matches)),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)))

	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
		Query:     queryText,
	}, nil
}

// FindVariants returns builds similar to a reference build: same class, above
// the stricter variant similarity floor, excluding the reference itself.
func (e *Engine) FindVariants(ctx context.Context, record *models.BuildRecord, maxResults int) (*models.SearchResponse, error) {
	if maxResults <= 0 {
		maxResults = e.cfg.MaxResults
	}
	refVec, err := e.vectorizer.Vectorize(ctx, record, e.cfg.MultiFeatureOrDefault())
	if err != nil {
		return nil, fmt.Errorf("vectorize reference build: %w", err)
	}

	minSim := e.cfg.VariantMinSimilarity
	q := &models.SearchQuery{
		Class:         record.Class,
		PreferredGoal: record.Goal,
		MaxResults:    maxResults,
		MinSimilarity: &minSim,
		ExcludeHashes: []string{record.Hash()},
	}

	start := time.Now()
	k := maxResults * candidateMultiplier
	if size := e.index.Size(); k > size {
		k = size
	}
	matches, err := e.index.Search(refVec, k)
	if err != nil {
		return nil, err
	}

	results := e.rank(q, matches)
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	for i, r := range results {
		r.Rank = i + 1
	}
	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
		Query:     "variants of " + record.Hash(),
	}, nil
}

// rank filters candidates, scores survivors, and sorts by final score.
func (e *Engine) rank(q *models.SearchQuery, matches []vector.Match) []*models.SearchResult {
	minSim := e.cfg.MinSimilarity
	if q.MinSimilarity != nil {
		minSim = *q.MinSimilarity
	}
	boosts := e.cfg.BoostsEnabledOrDefault()

	results := make([]*models.SearchResult, 0, len(matches))
	for _, m := range matches {
		if m.Similarity < minSim {
			continue
		}
		if reason := applyFilters(q, m.Metadata); reason != "" {
			continue
		}
		score := baseScore(e.cfg, m.Similarity, m.Metadata)
		var reasons []string
		if boosts {
			score, reasons = applyBoosts(e.cfg, q, m.Metadata, score)
		}
		results = append(results, &models.SearchResult{
			Hash:         m.Metadata.Hash,
			Similarity:   m.Similarity,
			Score:        score,
			Metadata:     m.Metadata,
			BoostReasons: reasons,
			FilterStatus: models.FilterStatusPassed,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Hash < results[j].Hash
	})
	return results
}

func (e *Engine) diversifyEnabled(q *models.SearchQuery) bool {
	if q.Diversify != nil {
		return *q.Diversify
	}
	return e.cfg.DiversifyEnabledOrDefault()
}

// diversify caps how many results may share a (class, ascendancy, main skill)
// group, preserving score order among survivors.
func diversify(results []*models.SearchResult, maxPerGroup int) []*models.SearchResult {
	if maxPerGroup <= 0 {
		return results
	}
	counts := make(map[string]int)
	out := results[:0]
	for _, r := range results {
		key := strings.ToLower(r.Metadata.Class) + "|" +
			strings.ToLower(r.Metadata.Ascendancy) + "|" +
			strings.ToLower(r.Metadata.MainSkill)
		if counts[key] >= maxPerGroup {
			continue
		}
		counts[key]++
		out = append(out, r)
	}
	return out
}

// synthesizeQueryText builds query text from structured fields so a purely
// structured query still retrieves semantically, in the same phrasing records
// are vectorized with.
func (e *Engine) synthesizeQueryText(q *models.SearchQuery) string {
	var parts []string
	if q.Ascendancy != "" {
		parts = append(parts, q.Ascendancy)
	}
	if q.Class != "" {
		parts = append(parts, q.Class)
	}
	parts = append(parts, "build")
	if q.MainSkill != "" {
		parts = append(parts, "using", q.MainSkill)
	}
	if q.Goal != "" {
		parts = append(parts, "for", q.Goal)
	}
	if q.MaxCost > 0 {
		parts = append(parts, "on a", feature.CostTier(q.MaxCost), "budget")
	}
	return strings.Join(parts, " ")
}
