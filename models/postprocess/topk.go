package postprocess

import "sort"

// SortByScore orders candidates by descending score in place.
// Candidates with equal scores keep their relative order.
func SortByScore(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}

// SelectTopK returns the k highest-scoring candidates in descending score order.
//
// The input slice is not modified. Ties keep their input order.
//
// Arguments:
//   - candidates: The candidates to rank.
//   - k: The maximum number of candidates to return. Must be positive.
//
// Returns:
//   - []Candidate: min(k, len(candidates)) candidates.
func SelectTopK(candidates []Candidate, k int) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	SortByScore(ranked)

	if k < len(ranked) {
		ranked = ranked[:max(k, 0)]
	}
	return ranked
}
