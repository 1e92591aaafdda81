package vector

import (
	"fmt"
	"math"
	"sort"
)

// Scored pairs an entry with its similarity to a query.
type Scored struct {
	Entry Entry
	Score float64
}

// Magnitude returns the Euclidean norm of v. The norm of an empty vector is 0.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// CheckFinite returns ErrNonFinite when v holds a NaN or infinite component.
func CheckFinite(v []float32) error {
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w at index %d", ErrNonFinite, i)
		}
	}
	return nil
}

// CosineSimilarity scores q against v using their precomputed norms.
// Vectors of different length are not comparable and report false.
// A zero norm on either side scores 0.
func CosineSimilarity(q, v []float32, qMag, vMag float64) (float64, bool) {
	if len(q) != len(v) {
		return 0, false
	}
	if qMag == 0 || vMag == 0 {
		return 0, true
	}
	var dot float64
	for i := range q {
		dot += float64(q[i]) * float64(v[i])
	}
	return dot / (qMag * vMag), true
}

// SimilaritySearchWithScore ranks the entries matching f by cosine
// similarity to query, best first, and keeps the top k. Equal scores keep
// insertion order. Entries whose dimensionality differs from query are
// skipped. A query with a non-finite component matches nothing.
func (s *Store) SimilaritySearchWithScore(query []float32, k int, f Filter) []Scored {
	if k <= 0 || CheckFinite(query) != nil {
		return []Scored{}
	}
	qMag := Magnitude(query)

	candidates := s.Filter(f)
	scored := make([]Scored, 0, len(candidates))
	for _, e := range candidates {
		score, ok := CosineSimilarity(query, e.Embedding, qMag, e.Magnitude)
		if !ok {
			continue
		}
		scored = append(scored, Scored{Entry: e, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// SimilaritySearch is SimilaritySearchWithScore without the scores.
func (s *Store) SimilaritySearch(query []float32, k int, f Filter) []Entry {
	scored := s.SimilaritySearchWithScore(query, k, f)
	out := make([]Entry, len(scored))
	for i, sc := range scored {
		out[i] = sc.Entry
	}
	return out
}
