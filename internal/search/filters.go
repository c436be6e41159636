package search

import (
	"fmt"
	"strings"

	"github.com/exilemind/buildsearch/internal/models"
)

// applyFilters checks every enabled structured filter against a candidate and
// returns the first failing reason. Filters are AND-combined; an empty reason
// means the candidate passed.
func applyFilters(q *models.SearchQuery, m *models.BuildMetadata) string {
	if q.Class != "" && !strings.EqualFold(q.Class, m.Class) {
		return fmt.Sprintf("class %q does not match %q", m.Class, q.Class)
	}
	if q.Ascendancy != "" && !strings.EqualFold(q.Ascendancy, m.Ascendancy) {
		return fmt.Sprintf("ascendancy %q does not match %q", m.Ascendancy, q.Ascendancy)
	}
	if q.MainSkill != "" && !strings.EqualFold(q.MainSkill, m.MainSkill) {
		return fmt.Sprintf("main skill %q does not match %q", m.MainSkill, q.MainSkill)
	}
	if q.Goal != "" && !strings.EqualFold(q.Goal, m.Goal) {
		return fmt.Sprintf("goal %q does not match %q", m.Goal, q.Goal)
	}
	if q.MinCost > 0 && m.Cost < q.MinCost {
		return fmt.Sprintf("cost %.2f below minimum %.2f", m.Cost, q.MinCost)
	}
	if q.MaxCost > 0 && m.Cost > q.MaxCost {
		return fmt.Sprintf("cost %.2f exceeds maximum %.2f", m.Cost, q.MaxCost)
	}
	if q.MinLevel > 0 && m.Level < q.MinLevel {
		return fmt.Sprintf("level %d below minimum %d", m.Level, q.MinLevel)
	}
	if q.MaxLevel > 0 && m.Level > q.MaxLevel {
		return fmt.Sprintf("level %d exceeds maximum %d", m.Level, q.MaxLevel)
	}
	if q.MinDPS > 0 && m.DPS < q.MinDPS {
		return fmt.Sprintf("dps %.0f below minimum %.0f", m.DPS, q.MinDPS)
	}
	if q.MinQuality != "" {
		floor := models.QualityTier(q.MinQuality)
		if m.Quality.Rank() < floor.Rank() {
			return fmt.Sprintf("quality %q below minimum %q", m.Quality, q.MinQuality)
		}
	}
	for _, ks := range q.RequiredKeystones {
		if !hasKeystone(m.Keystones, ks) {
			return fmt.Sprintf("missing required keystone %q", ks)
		}
	}
	for _, ks := range q.ExcludedKeystones {
		if hasKeystone(m.Keystones, ks) {
			return fmt.Sprintf("has excluded keystone %q", ks)
		}
	}
	for _, h := range q.ExcludeHashes {
		if h == m.Hash {
			return "explicitly excluded"
		}
	}
	return ""
}

func hasKeystone(keystones []string, name string) bool {
	for _, ks := range keystones {
		if strings.EqualFold(ks, name) {
			return true
		}
	}
	return false
}
