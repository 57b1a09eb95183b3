package classification

import (
	"math"
	"testing"

	"sorter_server/core/domain"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"empty", nil, nil, 0},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"zero norm", []float64{0, 0}, []float64{1, 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineSymmetric(t *testing.T) {
	a := []float64{0.3, 0.8, 0.1, 0.5}
	b := []float64{0.7, 0.2, 0.9, 0.4}
	if Cosine(a, b) != Cosine(b, a) {
		t.Error("cosine must be symmetric")
	}
}

func TestRankProfiles(t *testing.T) {
	profiles := []domain.FolderProfile{
		{Name: "Finance", Centroid: []float64{1, 0}},
		{Name: "Travel", Centroid: []float64{0, 1}},
		{Name: "Empty"},
		{Name: "Mixed", Centroid: []float64{1, 1}},
	}
	embedding := []float64{1, 0.1}

	ranked := RankProfiles(profiles, embedding, 2)
	if len(ranked) != 2 {
		t.Fatalf("got %d candidates, want 2", len(ranked))
	}
	if ranked[0].Name != "Finance" {
		t.Errorf("top candidate = %q, want Finance", ranked[0].Name)
	}
	if ranked[0].Rating < ranked[1].Rating {
		t.Error("candidates not sorted descending")
	}
	for _, c := range ranked {
		if c.Rating != math.Round(c.Score*100) {
			t.Errorf("%s: rating %v != round(score*100) %v", c.Name, c.Rating, math.Round(c.Score*100))
		}
	}

	if got := RankProfiles(profiles, nil, 3); got != nil {
		t.Errorf("empty embedding should rank nothing, got %v", got)
	}
}
