package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"answerhub/internal/models"
)

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"both empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewCandidateSetAlignment(t *testing.T) {
	entries := testEntries("a", "b", "c", "d", "e")
	vectors := [][]float32{{1}, {2}, {3}, {4}} // one short

	_, err := NewCandidateSet(entries, vectors)
	if err == nil {
		t.Fatal("expected alignment error for 5 entries and 4 vectors")
	}
	if !errors.Is(err, ErrAlignmentViolation) {
		t.Errorf("error %v should wrap ErrAlignmentViolation", err)
	}

	set, err := NewCandidateSet(entries, [][]float32{{1}, {2}, {3}, {4}, {5}})
	if err != nil {
		t.Fatalf("aligned inputs returned error: %v", err)
	}
	if set.Len() != 5 {
		t.Errorf("Len = %d, want 5", set.Len())
	}
}

func buildSet(t *testing.T, m *Matcher, entries []models.KnowledgeEntry) *CandidateSet {
	t.Helper()
	set, err := m.BuildCandidates(context.Background(), entries)
	if err != nil {
		t.Fatalf("BuildCandidates: %v", err)
	}
	return set
}

func TestBestMatchThreshold(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"query":    {1, 0, 0},
		"close":    {0.9, 0.1, 0},
		"far":      {0, 1, 0},
		"opposite": {-1, 0, 0},
	}}
	m := NewMatcher(embedder)
	set := buildSet(t, m, testEntries("close", "far", "opposite"))

	result, err := m.BestMatch(context.Background(), "query", set, 0.6)
	if err != nil {
		t.Fatalf("BestMatch: %v", err)
	}
	if !result.Matched() {
		t.Fatalf("expected match above threshold, best score %v", result.Score)
	}
	if result.Entry.Question != "close" {
		t.Errorf("matched %q, want close", result.Entry.Question)
	}
	if result.Index != 0 {
		t.Errorf("index = %d, want 0", result.Index)
	}
}

func TestBestMatchMissReportsClosest(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"query": {1, 0, 0},
		"a":     {0.5, 0.5, 0.70710678},
		"b":     {0, 1, 0},
	}}
	m := NewMatcher(embedder)
	set := buildSet(t, m, testEntries("a", "b"))

	result, err := m.BestMatch(context.Background(), "query", set, 0.99)
	if err != nil {
		t.Fatalf("BestMatch: %v", err)
	}
	if result.Matched() {
		t.Fatal("expected miss below threshold")
	}
	if result.Index != 0 {
		t.Errorf("miss should still report the closest index, got %d", result.Index)
	}
	if result.Score <= 0 {
		t.Errorf("miss should carry the best score, got %v", result.Score)
	}
}

func TestBestMatchStableTieBreak(t *testing.T) {
	// identical candidates, the first must win
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"query":  {1, 0},
		"first":  {1, 0},
		"second": {1, 0},
		"third":  {1, 0},
	}}
	m := NewMatcher(embedder)
	set := buildSet(t, m, testEntries("first", "second", "third"))

	for i := 0; i < 10; i++ {
		result, err := m.BestMatch(context.Background(), "query", set, 0.5)
		if err != nil {
			t.Fatalf("BestMatch: %v", err)
		}
		if result.Index != 0 || result.Entry.Question != "first" {
			t.Fatalf("tie should resolve to the first candidate, got index %d", result.Index)
		}
	}
}

func TestBestMatchEmptySet(t *testing.T) {
	m := NewMatcher(&fakeEmbedder{})
	set := buildSet(t, m, nil)

	result, err := m.BestMatch(context.Background(), "query", set, 0.6)
	if err != nil {
		t.Fatalf("BestMatch: %v", err)
	}
	if result.Matched() {
		t.Error("empty set must not match")
	}
	if result.Score != 0 {
		t.Errorf("score = %v, want 0", result.Score)
	}
	if result.Index != models.SentinelIndex {
		t.Errorf("index = %d, want %d", result.Index, models.SentinelIndex)
	}
}

func TestBestMatchEmbedderError(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{"a": {1}}}
	m := NewMatcher(embedder)
	set := buildSet(t, m, testEntries("a"))

	embedder.err = errors.New("backend down")
	_, err := m.BestMatch(context.Background(), "query", set, 0.6)
	if err == nil {
		t.Error("embedder failure must surface as an error")
	}
}

func TestTopKOrderAndCutoff(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"query": {1, 0, 0},
		"best":  {1, 0, 0},      // score 1.0
		"good":  {0.9, 0.43589, 0}, // ~0.9
		"weak":  {0.5, 0.86603, 0}, // ~0.5, below threshold
		"bad":   {0, 1, 0},      // 0
	}}
	m := NewMatcher(embedder)
	set := buildSet(t, m, testEntries("weak", "best", "bad", "good"))

	results, err := m.TopK(context.Background(), "query", set, 0.6, 10)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results above threshold, got %d", len(results))
	}
	if results[0].Entry.Question != "best" || results[1].Entry.Question != "good" {
		t.Errorf("wrong order: %q then %q", results[0].Entry.Question, results[1].Entry.Question)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results must be sorted by descending score")
		}
	}
}

func TestTopKLimit(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"query": {1, 0},
		"a":     {1, 0},
		"b":     {1, 0},
		"c":     {1, 0},
	}}
	m := NewMatcher(embedder)
	set := buildSet(t, m, testEntries("a", "b", "c"))

	results, err := m.TopK(context.Background(), "query", set, 0.5, 2)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected k=2 results, got %d", len(results))
	}
}

func TestTopKEmptySet(t *testing.T) {
	m := NewMatcher(&fakeEmbedder{})
	set := buildSet(t, m, nil)

	results, err := m.TopK(context.Background(), "query", set, 0.6, 5)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
