package usecase

import (
	"sort"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
)

type fusedCandidate struct {
	candidate domain.Candidate
	score     float64
	bestRank  int
	lists     int
}

// fuseCandidatesRRF merges the semantic and lexical rankings with
// reciprocal-rank fusion: score = sum over lists of 1/(k + rank). A passage
// present in only one list still participates with its single contribution.
// Ties are broken by presence in both lists, then by the better individual
// rank, then by passage ID for determinism.
func fuseCandidatesRRF(semantic, lexical []domain.Candidate, rrfK int) []domain.Candidate {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]fusedCandidate, len(semantic)+len(lexical))
	addList := func(candidates []domain.Candidate) {
		for rank, candidate := range candidates {
			id := candidate.Passage.ID
			fused, seen := acc[id]
			if !seen {
				fused.candidate = candidate
				fused.bestRank = rank
			} else if rank < fused.bestRank {
				fused.bestRank = rank
			}
			fused.score += 1.0 / float64(rrfK+rank+1)
			fused.lists++
			acc[id] = fused
		}
	}

	addList(semantic)
	addList(lexical)

	out := make([]fusedCandidate, 0, len(acc))
	for _, fused := range acc {
		out = append(out, fused)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].lists != out[j].lists {
			return out[i].lists > out[j].lists
		}
		if out[i].bestRank != out[j].bestRank {
			return out[i].bestRank < out[j].bestRank
		}
		return out[i].candidate.Passage.ID < out[j].candidate.Passage.ID
	})

	result := make([]domain.Candidate, 0, len(out))
	for _, fused := range out {
		candidate := fused.candidate
		candidate.Score = fused.score
		result = append(result, candidate)
	}
	return result
}

func trimCandidates(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
