package usecase

import (
	"sort"
	"strings"
	"unicode"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
)

// Reranker rescores retrieved candidates with a pairwise lexical relevance
// score between the query and each passage. The score is computed from the
// (query, passage) pair alone, independent of the fusion score, and is
// deterministic for a fixed pair.
type Reranker struct {
	topN int
}

func NewReranker(topN int) *Reranker {
	if topN <= 0 {
		topN = 20
	}
	return &Reranker{topN: topN}
}

// Rerank reorders the head of the candidate list. The set is unchanged;
// only scores and ordering move.
func (r *Reranker) Rerank(query string, candidates []domain.Candidate) []domain.Candidate {
	return rerankCandidates(query, candidates, r.topN)
}

func rerankCandidates(query string, fused []domain.Candidate, topN int) []domain.Candidate {
	if len(fused) == 0 {
		return fused
	}
	if topN <= 0 || topN > len(fused) {
		topN = len(fused)
	}

	head := make([]domain.Candidate, topN)
	copy(head, fused[:topN])
	queryTokens := toTokenSet(query)

	for i := range head {
		head[i].Score = pairwiseRelevance(queryTokens, head[i].Passage)
	}

	sort.SliceStable(head, func(i, j int) bool {
		if head[i].Score != head[j].Score {
			return head[i].Score > head[j].Score
		}
		return head[i].Passage.ID < head[j].Passage.ID
	})

	if topN == len(fused) {
		return head
	}

	out := make([]domain.Candidate, 0, len(fused))
	out = append(out, head...)
	out = append(out, fused[topN:]...)
	return out
}

func pairwiseRelevance(queryTokens map[string]struct{}, passage domain.Passage) float64 {
	overlap := tokenOverlap(queryTokens, toTokenSet(passage.Text))
	score := 0.80 * overlap

	if keywordHit(queryTokens, passage.Keywords) {
		score += 0.10
	}
	if articleHit(queryTokens, passage.Article) {
		score += 0.10
	}
	return score
}

func tokenOverlap(query, passage map[string]struct{}) float64 {
	if len(query) == 0 || len(passage) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := passage[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func keywordHit(query map[string]struct{}, keywords []string) bool {
	for _, keyword := range keywords {
		for _, token := range tokenize(keyword) {
			if _, ok := query[token]; ok {
				return true
			}
		}
	}
	return false
}

func articleHit(query map[string]struct{}, article string) bool {
	if article == "" {
		return false
	}
	for _, token := range tokenize(article) {
		if _, ok := query[token]; ok {
			return true
		}
	}
	return false
}

func toTokenSet(s string) map[string]struct{} {
	tokens := tokenize(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

// tokenize lowercases and splits on non-alphanumeric runes. The corpus is
// Uzbek/Russian/English, so it must keep Cyrillic letters.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
