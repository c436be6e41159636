// Package models defines core data structures for build records, queries, and search results.
package models

import "time"

// QualityTier classifies how trustworthy a build record's data is.
type QualityTier string

const (
	QualityHigh    QualityTier = "high"
	QualityMedium  QualityTier = "medium"
	QualityLow     QualityTier = "low"
	QualityInvalid QualityTier = "invalid"
)

// Score maps a quality tier to its scoring contribution.
func (q QualityTier) Score() float64 {
	switch q {
	case QualityHigh:
		return 1.0
	case QualityMedium:
		return 0.7
	case QualityLow:
		return 0.4
	default:
		return 0.1
	}
}

// Rank orders tiers for minimum-quality filtering (higher is better).
func (q QualityTier) Rank() int {
	switch q {
	case QualityHigh:
		return 3
	case QualityMedium:
		return 2
	case QualityLow:
		return 1
	default:
		return 0
	}
}

// EquipmentSlot is one named equipment piece and its category (weapon, armour, ring, ...).
type EquipmentSlot struct {
	Name     string `json:"name" db:"name"`
	Category string `json:"category" db:"category"`
}

// BuildRecord describes one character configuration. Records are produced by the
// external data layer and are read-only to the search core. CreatedAt/UpdatedAt
// are volatile and excluded from the similarity hash.
type BuildRecord struct {
	Class           string          `json:"class" db:"class"`
	Ascendancy      string          `json:"ascendancy" db:"ascendancy"`
	MainSkill       string          `json:"main_skill" db:"main_skill"`
	SecondarySkills []string        `json:"secondary_skills,omitempty" db:"secondary_skills"`
	Equipment       []EquipmentSlot `json:"equipment,omitempty" db:"equipment"`
	Keystones       []string        `json:"keystones,omitempty" db:"keystones"`
	MajorPassives   []string        `json:"major_passives,omitempty" db:"major_passives"`
	Goal            string          `json:"goal,omitempty" db:"goal"`
	Cost            float64         `json:"cost" db:"cost"`
	CostCurrency    string          `json:"cost_currency,omitempty" db:"cost_currency"`
	Level           int             `json:"level" db:"level"`
	DPS             float64         `json:"dps" db:"dps"`
	EffectiveHP     float64         `json:"effective_hp" db:"effective_hp"`
	PopularityRank  int             `json:"popularity_rank,omitempty" db:"popularity_rank"`
	Quality         QualityTier     `json:"quality,omitempty" db:"quality"`
	SimilarityHash  string          `json:"similarity_hash,omitempty" db:"similarity_hash"`
	CreatedAt       time.Time       `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at,omitempty" db:"updated_at"`
}

// Hash returns the record's similarity hash, computing and caching it when unset.
func (r *BuildRecord) Hash() string {
	if r.SimilarityHash == "" {
		r.SimilarityHash = SimilarityHash(r)
	}
	return r.SimilarityHash
}

// BuildMetadata is the compact per-slot record kept alongside each indexed vector.
type BuildMetadata struct {
	Hash           string      `json:"hash"`
	Class          string      `json:"class"`
	Ascendancy     string      `json:"ascendancy"`
	MainSkill      string      `json:"main_skill"`
	Level          int         `json:"level"`
	Cost           float64     `json:"cost"`
	Goal           string      `json:"goal"`
	DPS            float64     `json:"dps"`
	Keystones      []string    `json:"keystones,omitempty"`
	Quality        QualityTier `json:"quality"`
	PopularityRank int         `json:"popularity_rank"`
}

// Metadata extracts the compact index metadata from a record.
func (r *BuildRecord) Metadata() *BuildMetadata {
	return &BuildMetadata{
		Hash:           r.Hash(),
		Class:          r.Class,
		Ascendancy:     r.Ascendancy,
		MainSkill:      r.MainSkill,
		Level:          r.Level,
		Cost:           r.Cost,
		Goal:           r.Goal,
		DPS:            r.DPS,
		Keystones:      r.Keystones,
		Quality:        r.Quality,
		PopularityRank: r.PopularityRank,
	}
}
