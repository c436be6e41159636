package search

import (
	"fmt"
	"strings"

	"github.com/exilemind/buildsearch/internal/config"
	"github.com/exilemind/buildsearch/internal/models"
)

// popularityDecayRank is the rank at which popularity contribution bottoms out.
const popularityDecayRank = 10000

// baseScore blends similarity, popularity, and quality using the configured
// weights. Similarity is clamped to [0, 1] so a negative inner product cannot
// produce a negative score.
func baseScore(cfg *config.SearchConfig, similarity float64, m *models.BuildMetadata) float64 {
	sim := similarity
	if sim < 0 {
		sim = 0
	} else if sim > 1 {
		sim = 1
	}
	return sim*cfg.SimilarityWeight +
		popularityScore(m.PopularityRank)*cfg.PopularityWeight +
		m.Quality.Score()*cfg.QualityWeight
}

// popularityScore maps a 1-based popularity rank to [0, 1], linearly decaying
// to zero at popularityDecayRank. Unranked builds get a neutral 0.5.
func popularityScore(rank int) float64 {
	if rank <= 0 {
		return 0.5
	}
	score := 1.0 - float64(rank-1)/float64(popularityDecayRank)
	if score < 0 {
		return 0
	}
	return score
}

// applyBoosts multiplies contextual boosts into the score and records a reason
// for each one applied. Class+ascendancy supersedes the plain class boost.
func applyBoosts(cfg *config.SearchConfig, q *models.SearchQuery, m *models.BuildMetadata, score float64) (float64, []string) {
	var reasons []string

	switch {
	case q.Class != "" && q.Ascendancy != "" &&
		strings.EqualFold(q.Class, m.Class) && strings.EqualFold(q.Ascendancy, m.Ascendancy):
		score *= cfg.ClassAscendancyBoost
		reasons = append(reasons, fmt.Sprintf("matching class and ascendancy (x%.2f)", cfg.ClassAscendancyBoost))
	case q.Class != "" && strings.EqualFold(q.Class, m.Class):
		score *= cfg.ClassBoost
		reasons = append(reasons, fmt.Sprintf("matching class (x%.2f)", cfg.ClassBoost))
	}

	if q.MainSkill != "" && strings.EqualFold(q.MainSkill, m.MainSkill) {
		score *= cfg.MainSkillBoost
		reasons = append(reasons, fmt.Sprintf("matching main skill (x%.2f)", cfg.MainSkillBoost))
	}
	goal := q.Goal
	if goal == "" {
		goal = q.PreferredGoal
	}
	if goal != "" && strings.EqualFold(goal, m.Goal) {
		score *= cfg.GoalBoost
		reasons = append(reasons, fmt.Sprintf("matching goal (x%.2f)", cfg.GoalBoost))
	}
	if m.Quality == models.QualityHigh {
		score *= cfg.QualityBoost
		reasons = append(reasons, fmt.Sprintf("high quality build (x%.2f)", cfg.QualityBoost))
	}
	if m.PopularityRank > 0 && m.PopularityRank <= cfg.PopularityBoostRank {
		score *= cfg.PopularityBoost
		reasons = append(reasons, fmt.Sprintf("top %d popularity (x%.2f)", cfg.PopularityBoostRank, cfg.PopularityBoost))
	}
	return score, reasons
}
