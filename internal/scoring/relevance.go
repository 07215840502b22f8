package scoring

import "math"

// DefaultRelevance is assumed when a hypothesis has no embedding to
// compare against.
const DefaultRelevance = 0.5

// Relevance is the cosine similarity between an evidence embedding and
// a hypothesis embedding, in [-1, 1]. Mismatched or empty vectors
// score 0.
func Relevance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}
