package vectorstore

import "math"

// CosineSimilarity returns the cosine of the angle between a and b in [-1, 1].
// Mismatched, empty or zero vectors have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, sim))
}

// SelectDiverse picks up to k candidates by maximal marginal relevance:
// each step takes the candidate maximising
// lambda*sim(query, c) - (1-lambda)*max(sim(c, s)) over already selected s.
// Ties keep candidate order. Candidates must carry their vectors.
func SelectDiverse(query []float32, candidates []Match, k int, lambda float64) []Match {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}
	lambda = math.Max(0, math.Min(1, lambda))

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = CosineSimilarity(query, c.Vector)
	}

	// maxSim[i] is the highest similarity of candidate i to anything selected so far
	maxSim := make([]float64, len(candidates))
	for i := range maxSim {
		maxSim[i] = math.Inf(-1)
	}
	used := make([]bool, len(candidates))

	selected := make([]Match, 0, k)
	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if used[i] {
				continue
			}
			penalty := 0.0
			if len(selected) > 0 {
				penalty = maxSim[i]
			}
			score := lambda*relevance[i] - (1-lambda)*penalty
			if score > bestScore {
				best, bestScore = i, score
			}
		}

		used[best] = true
		selected = append(selected, candidates[best])
		for i := range candidates {
			if !used[i] {
				maxSim[i] = math.Max(maxSim[i], CosineSimilarity(candidates[i].Vector, candidates[best].Vector))
			}
		}
	}

	return selected
}
