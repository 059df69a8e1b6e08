package storer

import "math"

// Diversify picks limit records by maximal marginal relevance. Each pick
// maximizes relevance*score - (1-relevance)*(similarity to the closest
// record already picked). Relevance 1 keeps score order; records without
// embeddings are never penalized.
func Diversify(records []Record, limit int, relevance float64) []Record {
	if limit <= 0 {
		return nil
	}

	if len(records) <= limit {
		return records
	}

	relevance = math.Max(0, math.Min(1, relevance))

	selected := make([]Record, 0, limit)
	remaining := append([]Record(nil), records...)

	for len(selected) < limit && len(remaining) > 0 {
		bestIdx := -1
		best := math.Inf(-1)

		for i, cand := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				if sim := CosineSimilarity(cand.Embedding, sel.Embedding); sim > maxSim {
					maxSim = sim
				}
			}

			// strict > keeps the earlier record on ties
			if current := relevance*float64(cand.Score) - (1-relevance)*maxSim; current > best {
				best = current
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}
