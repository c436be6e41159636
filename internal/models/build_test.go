package models

import (
	"testing"
	"time"
)

func testRecord() *BuildRecord {
	return &BuildRecord{
		Class:           "Ranger",
		Ascendancy:      "Deadeye",
		MainSkill:       "Lightning Arrow",
		SecondarySkills: []string{"Frenzy", "Ensnaring Arrow"},
		Equipment: []EquipmentSlot{
			{Name: "Widowhail", Category: "weapon"},
			{Name: "Ventor's Gamble", Category: "ring"},
		},
		Keystones:    []string{"Point Blank"},
		Goal:         "mapping",
		Cost:         12.5,
		CostCurrency: "divine",
		Level:        94,
		DPS:          1_200_000,
		EffectiveHP:  48_000,
		Quality:      QualityHigh,
	}
}

func TestSimilarityHash_Stable(t *testing.T) {
	a := testRecord()
	b := testRecord()
	if SimilarityHash(a) != SimilarityHash(b) {
		t.Error("identical semantic fields must hash identically")
	}

	// Volatile fields must not change the hash.
	b.CreatedAt = time.Now()
	b.UpdatedAt = time.Now()
	b.PopularityRank = 7
	b.Quality = QualityLow
	if SimilarityHash(a) != SimilarityHash(b) {
		t.Error("volatile fields must not affect the hash")
	}
}

func TestSimilarityHash_Sensitive(t *testing.T) {
	a := testRecord()
	tests := []struct {
		name   string
		mutate func(*BuildRecord)
	}{
		{"class", func(r *BuildRecord) { r.Class = "Witch" }},
		{"main skill", func(r *BuildRecord) { r.MainSkill = "Tornado Shot" }},
		{"equipment", func(r *BuildRecord) { r.Equipment[0].Name = "Death's Opus" }},
		{"keystones", func(r *BuildRecord) { r.Keystones = nil }},
		{"cost", func(r *BuildRecord) { r.Cost = 99 }},
		{"level", func(r *BuildRecord) { r.Level = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testRecord()
			tt.mutate(b)
			if SimilarityHash(a) == SimilarityHash(b) {
				t.Errorf("changing %s must change the hash", tt.name)
			}
		})
	}
}

func TestBuildRecord_HashCaches(t *testing.T) {
	r := testRecord()
	h := r.Hash()
	if h == "" || r.SimilarityHash != h {
		t.Fatal("Hash must compute and cache the similarity hash")
	}
	if r.Hash() != h {
		t.Error("repeated Hash calls must be stable")
	}
}

func TestQualityTier(t *testing.T) {
	if QualityHigh.Score() != 1.0 || QualityMedium.Score() != 0.7 ||
		QualityLow.Score() != 0.4 || QualityInvalid.Score() != 0.1 {
		t.Error("unexpected quality scores")
	}
	if QualityTier("bogus").Score() != 0.1 {
		t.Error("unknown tier scores as invalid")
	}
	if QualityHigh.Rank() <= QualityMedium.Rank() {
		t.Error("tier ranks must be ordered")
	}
}

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *SearchQuery
		wantErr bool
	}{
		{"empty", &SearchQuery{}, true},
		{"free text", &SearchQuery{Query: "lightning arrow deadeye"}, false},
		{"structured only", &SearchQuery{Class: "Ranger", MaxCost: 10}, false},
		{"inverted cost range", &SearchQuery{Query: "x", MinCost: 20, MaxCost: 5}, true},
		{"inverted level range", &SearchQuery{Query: "x", MinLevel: 90, MaxLevel: 10}, true},
		{"negative max results", &SearchQuery{Query: "x", MaxResults: -1}, true},
		{"caps max results", &SearchQuery{Query: "x", MaxResults: 500}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.query.MaxResults > 100 {
				t.Errorf("expected max_results capped at 100, got %d", tt.query.MaxResults)
			}
		})
	}
}
