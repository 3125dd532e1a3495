package vectorstore

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "scale invariant", a: []float32{1, 1}, b: []float32{5, 5}, want: 1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
		{name: "dimension mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func candidate(index int, vec ...float32) Match {
	return Match{Entry: Entry{DocumentID: "doc", Index: index, Vector: vec}}
}

func indexes(ms []Match) []int {
	out := make([]int, len(ms))
	for i, m := range ms {
		out[i] = m.Index
	}
	return out
}

func TestSelectDiverse(t *testing.T) {
	query := []float32{1, 0}
	// 0 and 1 are near-duplicates close to the query, 2 is less relevant but different
	candidates := []Match{
		candidate(0, 1, 0.05),
		candidate(1, 1, 0.06),
		candidate(2, 0.6, -0.8),
	}

	tests := []struct {
		name   string
		k      int
		lambda float64
		want   []int
	}{
		{name: "pure relevance", k: 2, lambda: 1, want: []int{0, 1}},
		{name: "balanced prefers diversity", k: 2, lambda: 0.5, want: []int{0, 2}},
		{name: "k larger than candidates", k: 10, lambda: 1, want: []int{0, 1, 2}},
		{name: "lambda clamped above one", k: 2, lambda: 3, want: []int{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := indexes(SelectDiverse(query, candidates, tt.k, tt.lambda))
			if len(got) != len(tt.want) {
				t.Fatalf("SelectDiverse() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SelectDiverse() = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestSelectDiverse_Empty(t *testing.T) {
	if got := SelectDiverse([]float32{1}, nil, 3, 0.5); len(got) != 0 {
		t.Errorf("SelectDiverse(nil) = %v, want empty", got)
	}
	if got := SelectDiverse([]float32{1}, []Match{candidate(0, 1)}, 0, 0.5); len(got) != 0 {
		t.Errorf("SelectDiverse(k=0) = %v, want empty", got)
	}
}
