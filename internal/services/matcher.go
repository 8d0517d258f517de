package services

import (
	"context"
	"math"
	"sort"

	"answerhub/internal/models"
)

// scoredCandidate pairs an entry with its question vector. Keeping them in
// one value makes entry/vector misalignment impossible past construction.
type scoredCandidate struct {
	entry  models.KnowledgeEntry
	vector []float32
}

// CandidateSet is an immutable list of entries with their vectors.
type CandidateSet struct {
	candidates []scoredCandidate
}

// NewCandidateSet pairs entries with precomputed vectors. A length
// mismatch fails fast; it is never truncated to the shorter side.
func NewCandidateSet(entries []models.KnowledgeEntry, vectors [][]float32) (*CandidateSet, error) {
	if len(entries) != len(vectors) {
		return nil, alignmentError(len(entries), len(vectors))
	}
	candidates := make([]scoredCandidate, len(entries))
	for i := range entries {
		candidates[i] = scoredCandidate{entry: entries[i], vector: vectors[i]}
	}
	return &CandidateSet{candidates: candidates}, nil
}

// Len returns the number of candidates.
func (s *CandidateSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.candidates)
}

// Questions returns the candidate questions in order.
func (s *CandidateSet) Questions() []string {
	out := make([]string, len(s.candidates))
	for i := range s.candidates {
		out[i] = s.candidates[i].entry.Question
	}
	return out
}

// EntryAt returns the entry at index i.
func (s *CandidateSet) EntryAt(i int) models.KnowledgeEntry {
	return s.candidates[i].entry
}

// Matcher scores a query against a candidate set by embedding similarity.
type Matcher struct {
	embedder Embedder
}

func NewMatcher(embedder Embedder) *Matcher {
	return &Matcher{embedder: embedder}
}

// BuildCandidates embeds every candidate question and returns the paired
// set. Embedding failure is returned as-is; the caller decides whether a
// degraded strategy applies.
func (m *Matcher) BuildCandidates(ctx context.Context, entries []models.KnowledgeEntry) (*CandidateSet, error) {
	if len(entries) == 0 {
		return &CandidateSet{}, nil
	}

	questions := make([]string, len(entries))
	for i := range entries {
		questions[i] = entries[i].Question
	}

	vectors, err := m.embedder.EmbedBatch(ctx, questions)
	if err != nil {
		return nil, err
	}
	return NewCandidateSet(entries, vectors)
}

// BestMatch scores the question against every candidate and returns the
// highest-scoring entry when it clears the threshold. On a miss the
// result still carries the best score and index with a nil entry so
// callers can report how close the nearest candidate was. An empty set
// yields score 0 and index -1.
func (m *Matcher) BestMatch(ctx context.Context, question string, set *CandidateSet, threshold float64) (models.MatchResult, error) {
	result := models.MatchResult{Index: models.SentinelIndex, Strategy: models.StrategyEmbedding}
	if set.Len() == 0 {
		return result, nil
	}

	queryVec, err := m.embedder.Embed(ctx, question)
	if err != nil {
		return result, err
	}

	bestScore := math.Inf(-1)
	bestIndex := models.SentinelIndex
	for i := range set.candidates {
		score := cosineSimilarity(queryVec, set.candidates[i].vector)
		// strictly-greater keeps the first candidate on ties
		if score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}

	result.Score = bestScore
	result.Index = bestIndex
	if bestScore >= threshold {
		entry := set.candidates[bestIndex].entry
		result.Entry = &entry
	}
	return result, nil
}

// TopK returns up to k results sorted by descending score, cut off at the
// first score below the threshold. Ties keep candidate order.
func (m *Matcher) TopK(ctx context.Context, question string, set *CandidateSet, threshold float64, k int) ([]models.MatchResult, error) {
	if set.Len() == 0 || k <= 0 {
		return nil, nil
	}

	queryVec, err := m.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	scored := make([]models.MatchResult, set.Len())
	for i := range set.candidates {
		entry := set.candidates[i].entry
		scored[i] = models.MatchResult{
			Entry:    &entry,
			Score:    cosineSimilarity(queryVec, set.candidates[i].vector),
			Index:    i,
			Strategy: models.StrategyEmbedding,
		}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	results := make([]models.MatchResult, 0, k)
	for _, r := range scored {
		if r.Score < threshold || len(results) == k {
			break
		}
		results = append(results, r)
	}
	return results, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Accumulates in float64 to limit rounding error. Returns 0 when either
// vector has zero norm or the lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
