// Package feature synthesizes descriptive feature texts from build records.
// Synthesis is deterministic and pure; results are memoized per (record hash, group).
package feature

import (
	"fmt"
	"strings"

	"github.com/exilemind/buildsearch/internal/models"
	"github.com/exilemind/buildsearch/pkg/utils"
)

// Recognized feature groups. Unknown groups fall back to GroupComprehensive.
const (
	GroupComprehensive = "comprehensive"
	GroupClassSkill    = "class_skill"
	GroupEquipment     = "equipment"
	GroupKeystones     = "keystones"
	GroupStats         = "stats"
	GroupGoalBudget    = "goal_budget"
)

// MultiFeatureGroups lists the groups combined in multi-feature vectorization,
// in weight order.
var MultiFeatureGroups = []string{
	GroupClassSkill,
	GroupEquipment,
	GroupKeystones,
	GroupStats,
	GroupGoalBudget,
}

// GroupWeights are the relative weights for multi-feature vector combination.
var GroupWeights = map[string]float32{
	GroupClassSkill: 0.4,
	GroupEquipment:  0.2,
	GroupKeystones:  0.15,
	GroupStats:      0.15,
	GroupGoalBudget: 0.1,
}

// Synthesizer memoizes feature text generation.
type Synthesizer struct {
	cache *Cache
}

// NewSynthesizer creates a synthesizer with its own cache.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{cache: NewCache()}
}

// Synthesize returns the feature text for record and group, consulting the cache first.
func (s *Synthesizer) Synthesize(record *models.BuildRecord, group string) string {
	key := Key{Hash: record.Hash(), Group: group}
	if text, ok := s.cache.Get(key); ok {
		return text
	}
	text := SynthesizeGroup(record, group)
	s.cache.Set(key, text)
	return text
}

// Invalidate drops cached texts for the given record hash.
func (s *Synthesizer) Invalidate(hash string) {
	s.cache.Invalidate(hash)
}

// Reset drops every memoized text. Called when the corpus is rebuilt so texts
// for removed records do not accumulate.
func (s *Synthesizer) Reset() {
	s.cache.Clear()
}

// CacheLen returns the number of memoized texts.
func (s *Synthesizer) CacheLen() int {
	return s.cache.Len()
}

// SynthesizeGroup generates the feature text for one group without caching.
// Deterministic and free of I/O.
func SynthesizeGroup(r *models.BuildRecord, group string) string {
	switch group {
	case GroupClassSkill:
		return classSkillText(r)
	case GroupEquipment:
		return equipmentText(r)
	case GroupKeystones:
		return keystonesText(r)
	case GroupStats:
		return statsText(r)
	case GroupGoalBudget:
		return goalBudgetText(r)
	default:
		return comprehensiveText(r)
	}
}

// CostTier buckets a cost value into a descriptive phrase.
func CostTier(cost float64) string {
	switch {
	case cost < 1:
		return "very budget"
	case cost < 5:
		return "budget friendly"
	case cost < 20:
		return "medium cost"
	default:
		return "expensive"
	}
}

// DamageTier buckets a DPS summary into a coarse tier word.
func DamageTier(dps float64) string {
	switch {
	case dps >= 2_000_000:
		return "very high"
	case dps >= 500_000:
		return "high"
	case dps >= 100_000:
		return "medium"
	default:
		return "low"
	}
}

// DefenseTier buckets an effective-HP summary into a coarse tier word.
func DefenseTier(ehp float64) string {
	switch {
	case ehp >= 100_000:
		return "very high"
	case ehp >= 50_000:
		return "high"
	case ehp >= 25_000:
		return "medium"
	default:
		return "low"
	}
}

func classText(r *models.BuildRecord) string {
	if r.Ascendancy != "" {
		return r.Ascendancy + " " + r.Class
	}
	return r.Class
}

func classSkillText(r *models.BuildRecord) string {
	base := classText(r)
	if base == "" && r.MainSkill == "" {
		return ""
	}
	if r.MainSkill == "" {
		return base + " build"
	}
	if base == "" {
		return r.MainSkill + " build"
	}
	return fmt.Sprintf("%s build using %s", base, r.MainSkill)
}

// equipmentText lists every named non-weapon, non-armour slot plus up to two
// ring-like slots.
func equipmentText(r *models.BuildRecord) string {
	var names []string
	rings := 0
	for _, eq := range r.Equipment {
		if eq.Name == "" {
			continue
		}
		switch strings.ToLower(eq.Category) {
		case "weapon", "armour", "armor":
			continue
		case "ring":
			if rings >= 2 {
				continue
			}
			rings++
		}
		names = append(names, eq.Name)
	}
	if len(names) == 0 {
		return ""
	}
	return "equipped with " + strings.Join(names, ", ")
}

func keystonesText(r *models.BuildRecord) string {
	parts := append([]string{}, r.Keystones...)
	for i, p := range r.MajorPassives {
		if i >= 5 {
			break
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return ""
	}
	return "keystones and passives: " + strings.Join(parts, ", ")
}

func statsText(r *models.BuildRecord) string {
	if r.DPS == 0 && r.EffectiveHP == 0 {
		return ""
	}
	return fmt.Sprintf("%s damage, %s defense", DamageTier(r.DPS), DefenseTier(r.EffectiveHP))
}

func goalBudgetText(r *models.BuildRecord) string {
	if r.Goal == "" && r.Cost == 0 {
		return ""
	}
	if r.Goal == "" {
		return CostTier(r.Cost) + " build"
	}
	return fmt.Sprintf("%s on a %s budget", r.Goal, CostTier(r.Cost))
}

// comprehensiveText combines every signal into one descriptive sentence.
func comprehensiveText(r *models.BuildRecord) string {
	parts := []string{classSkillText(r)}

	if n := len(r.SecondarySkills); n > 0 {
		if n > 4 {
			n = 4
		}
		parts = append(parts, "with "+strings.Join(r.SecondarySkills[:n], ", "))
	}

	var key []string
	for _, eq := range r.Equipment {
		if eq.Name == "" {
			continue
		}
		key = append(key, eq.Name)
		if len(key) == 2 {
			break
		}
	}
	if len(key) > 0 {
		parts = append(parts, "equipped with "+strings.Join(key, " and "))
	}

	if n := len(r.Keystones); n > 0 {
		if n > 3 {
			n = 3
		}
		parts = append(parts, "using "+strings.Join(r.Keystones[:n], ", "))
	}

	parts = append(parts, goalBudgetText(r), statsText(r))
	return utils.JoinNonEmpty(", ", parts...)
}
