package classification

import (
	"math"
	"sort"

	"sorter_server/core/domain"
)

// Cosine returns the cosine similarity of two vectors. Empty vectors,
// length mismatches and zero-norm vectors all yield 0 so callers never
// divide by zero or rank garbage.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankProfiles scores a message embedding against every learned folder
// centroid and returns the top candidates, highest first. Ties keep the
// profile list order. Profiles without a centroid are skipped.
func RankProfiles(profiles []domain.FolderProfile, embedding []float64, max int) []domain.RankedCandidate {
	if len(embedding) == 0 {
		return nil
	}
	ranked := make([]domain.RankedCandidate, 0, len(profiles))
	for _, p := range profiles {
		if len(p.Centroid) == 0 {
			continue
		}
		score := Cosine(embedding, p.Centroid)
		ranked = append(ranked, domain.NewRankedCandidate(p.Name, score, "embedding similarity"))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if max > 0 && len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}
