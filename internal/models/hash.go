package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const hashPrefix = "build:"

// SimilarityHash returns a stable content-addressed identity for a build record.
// It is derived from the semantically relevant fields only; volatile fields
// (timestamps, popularity, quality) do not participate, so re-scraping the same
// build yields the same hash.
func SimilarityHash(r *BuildRecord) string {
	var b strings.Builder
	b.WriteString(r.Class)
	b.WriteByte('|')
	b.WriteString(r.Ascendancy)
	b.WriteByte('|')
	b.WriteString(r.MainSkill)
	b.WriteByte('|')
	b.WriteString(strings.Join(r.SecondarySkills, ","))
	b.WriteByte('|')
	for i, eq := range r.Equipment {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(eq.Name)
		b.WriteByte(':')
		b.WriteString(eq.Category)
	}
	b.WriteByte('|')
	b.WriteString(strings.Join(r.Keystones, ","))
	b.WriteByte('|')
	b.WriteString(r.Goal)
	b.WriteByte('|')
	fmt.Fprintf(&b, "%.2f%s|%d", r.Cost, r.CostCurrency, r.Level)

	sum := sha256.Sum256([]byte(b.String()))
	return hashPrefix + hex.EncodeToString(sum[:])
}
