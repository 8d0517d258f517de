package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"answerhub/internal/models"
)

func newTestQueryService(t *testing.T, source DocumentSource, embedder Embedder, ranker *RankerClient) *QueryService {
	t.Helper()
	cache := NewKnowledgeCache(5 * time.Minute)
	fetcher := NewKnowledgeFetcher(cache, source, NewFallbackDataset(""), 100)

	var matcher *Matcher
	if embedder != nil {
		matcher = NewMatcher(embedder)
	}
	return NewQueryService(fetcher, matcher, ranker, cache, nil, testMetrics(), 0.6, false)
}

// testMetrics returns the shared metrics instance; prometheus collectors
// can only be registered once per process.
func testMetrics() *Metrics {
	if m := GetMetrics(); m != nil {
		return m
	}
	return InitMetrics()
}

func TestAnswerQueryEmbeddingMatch(t *testing.T) {
	source := &stubSource{entries: testEntries("what is machine learning", "what is design")}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"tell me about ML":         {1, 0, 0},
		"what is machine learning": {0.95, 0.31225, 0},
		"what is design":           {0, 1, 0},
	}}
	svc := newTestQueryService(t, source, embedder, nil)

	answer, err := svc.AnswerQuery(context.Background(), "tell me about ML", nil)
	if err != nil {
		t.Fatalf("AnswerQuery: %v", err)
	}
	if !answer.Result.Matched() {
		t.Fatalf("expected match, best score %v", answer.Result.Score)
	}
	if answer.Result.Entry.Question != "what is machine learning" {
		t.Errorf("matched %q", answer.Result.Entry.Question)
	}
	if answer.Result.Strategy != models.StrategyEmbedding {
		t.Errorf("strategy = %s, want embedding", answer.Result.Strategy)
	}
	if answer.Provenance != models.ProvenanceLive {
		t.Errorf("provenance = %s, want live", answer.Provenance)
	}
	if answer.Threshold != 0.6 {
		t.Errorf("threshold = %v, want default 0.6", answer.Threshold)
	}
}

func TestAnswerQueryMissCarriesBestScore(t *testing.T) {
	source := &stubSource{entries: testEntries("a")}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"query": {1, 0},
		"a":     {0.3, 0.95394},
	}}
	svc := newTestQueryService(t, source, embedder, nil)

	answer, err := svc.AnswerQuery(context.Background(), "query", nil)
	if err != nil {
		t.Fatalf("AnswerQuery: %v", err)
	}
	if answer.Result.Matched() {
		t.Fatal("expected miss")
	}
	if answer.Result.Score <= 0 || answer.Result.Index != 0 {
		t.Errorf("miss should report closest candidate, got score=%v index=%d",
			answer.Result.Score, answer.Result.Index)
	}
}

func TestAnswerQueryInvalidThreshold(t *testing.T) {
	svc := newTestQueryService(t, &stubSource{entries: testEntries("a")}, &fakeEmbedder{}, nil)

	for _, bad := range []float64{-0.1, 1.01, 7} {
		th := bad
		if _, err := svc.AnswerQuery(context.Background(), "q", &th); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("threshold %v: err = %v, want ErrInvalidThreshold", bad, err)
		}
	}

	// boundary values are valid
	for _, ok := range []float64{0, 1} {
		th := ok
		if _, err := svc.AnswerQuery(context.Background(), "q", &th); errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("threshold %v should be accepted", ok)
		}
	}
}

func TestAnswerQuerySourceUnavailable(t *testing.T) {
	cache := NewKnowledgeCache(5 * time.Minute)
	fetcher := NewKnowledgeFetcher(cache, nil, &FallbackDataset{}, 100)
	svc := NewQueryService(fetcher, NewMatcher(&fakeEmbedder{}), nil, cache, nil, testMetrics(), 0.6, false)

	_, err := svc.AnswerQuery(context.Background(), "q", nil)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestAnswerQueryKeywordFallbackOnEmbeddingFailure(t *testing.T) {
	source := &stubSource{entries: testEntries("What is machine learning?")}
	embedder := &fakeEmbedder{err: errors.New("ollama down")}
	svc := newTestQueryService(t, source, embedder, nil)

	answer, err := svc.AnswerQuery(context.Background(), "what is machine learning?", nil)
	if err != nil {
		t.Fatalf("keyword fallback should have saved the query: %v", err)
	}
	if answer.Result.Strategy != models.StrategyKeyword {
		t.Errorf("strategy = %s, want keyword", answer.Result.Strategy)
	}
}

func TestAnswerQueryEmbeddingFailureSurfacesWhenKeywordMisses(t *testing.T) {
	source := &stubSource{entries: testEntries("completely unrelated entry")}
	embedder := &fakeEmbedder{err: errors.New("ollama down")}
	svc := newTestQueryService(t, source, embedder, nil)

	if _, err := svc.AnswerQuery(context.Background(), "zzz qqq", nil); err == nil {
		t.Error("embedding failure with no keyword rescue must surface as an error")
	}
}

func TestAnswerQueryRankerWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"match": "what is design",
			"score": 0.9,
		})
	}))
	defer server.Close()
	ranker := NewRankerClient(server.URL, 5*time.Second, 0.5, testSentinel)

	source := &stubSource{entries: testEntries("what is machine learning", "what is design")}
	svc := newTestQueryService(t, source, &fakeEmbedder{}, ranker)

	answer, err := svc.AnswerQuery(context.Background(), "design question", nil)
	if err != nil {
		t.Fatalf("AnswerQuery: %v", err)
	}
	if !answer.Result.Matched() || answer.Result.Strategy != models.StrategyRanker {
		t.Fatalf("expected ranker match, got %+v", answer.Result)
	}
	if answer.Result.Entry.Question != "what is design" || answer.Result.Index != 1 {
		t.Errorf("pick resolved wrong: %+v", answer.Result)
	}
}

func TestAnswerQueryRankerNoMatchIsFinal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	ranker := NewRankerClient(server.URL, 5*time.Second, 0.5, testSentinel)

	// embedding would match, but the ranker's confident no-match is final
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"query": {1, 0},
		"a":     {1, 0},
	}}
	svc := newTestQueryService(t, &stubSource{entries: testEntries("a")}, embedder, ranker)

	answer, err := svc.AnswerQuery(context.Background(), "query", nil)
	if err != nil {
		t.Fatalf("AnswerQuery: %v", err)
	}
	if answer.Result.Matched() {
		t.Error("ranker no-match must not fall through to embedding")
	}
	if answer.Result.Strategy != models.StrategyRanker {
		t.Errorf("strategy = %s, want ranker", answer.Result.Strategy)
	}
}

func TestAnswerQueryRankerFailureFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	ranker := NewRankerClient(server.URL, 5*time.Second, 0.5, testSentinel)

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"query": {1, 0},
		"a":     {1, 0},
	}}
	svc := newTestQueryService(t, &stubSource{entries: testEntries("a")}, embedder, ranker)

	answer, err := svc.AnswerQuery(context.Background(), "query", nil)
	if err != nil {
		t.Fatalf("AnswerQuery: %v", err)
	}
	if !answer.Result.Matched() || answer.Result.Strategy != models.StrategyEmbedding {
		t.Errorf("ranker failure should fall back to embedding, got %+v", answer.Result)
	}
}

func TestBatchAnswerIsolation(t *testing.T) {
	source := &stubSource{entries: testEntries("what is go")}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"what is go":    {1, 0},
		"go question":   {1, 0},
		"pizza":         {0, 1},
	}}
	svc := newTestQueryService(t, source, embedder, nil)

	batch, err := svc.BatchAnswer(context.Background(), []string{"go question", "", "pizza"}, nil, 0)
	if err != nil {
		t.Fatalf("BatchAnswer: %v", err)
	}
	items := batch.Items
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	if items[0].Err != nil || len(items[0].Results) != 1 {
		t.Errorf("item 0 should match: %+v", items[0])
	}
	if items[1].Err == nil {
		t.Error("empty question must fail its own item")
	}
	if items[2].Err != nil || len(items[2].Results) != 0 {
		t.Errorf("item 2 should be a clean miss: %+v", items[2])
	}
	if batch.Provenance != models.ProvenanceLive {
		t.Errorf("batch provenance = %s, want live", batch.Provenance)
	}
}

func TestBatchAnswerTopKBounds(t *testing.T) {
	svc := newTestQueryService(t, &stubSource{entries: testEntries("a")}, &fakeEmbedder{}, nil)

	if _, err := svc.BatchAnswer(context.Background(), []string{"q"}, nil, 11); err == nil {
		t.Error("top_k above the maximum must be rejected")
	}
	if _, err := svc.BatchAnswer(context.Background(), []string{"q"}, nil, -1); err == nil {
		t.Error("negative top_k must be rejected")
	}
	if _, err := svc.BatchAnswer(context.Background(), []string{"q"}, nil, 0); err != nil {
		t.Errorf("top_k 0 should use the default: %v", err)
	}
}

func TestAnswerQueryMockMode(t *testing.T) {
	source := &stubSource{entries: testEntries("live question")}
	cache := NewKnowledgeCache(5 * time.Minute)
	fetcher := NewKnowledgeFetcher(cache, source, NewFallbackDataset(""), 100)
	svc := NewQueryService(fetcher, nil, nil, cache, nil, testMetrics(), 0.6, true)

	answer, err := svc.AnswerQuery(context.Background(), "what is machine learning?", nil)
	if err != nil {
		t.Fatalf("AnswerQuery: %v", err)
	}
	if answer.Provenance != models.ProvenanceMock {
		t.Errorf("provenance = %s, want mock", answer.Provenance)
	}
	if source.calls != 0 {
		t.Error("mock mode must not contact the live source")
	}
}

func TestClearCacheAndInfo(t *testing.T) {
	source := &stubSource{entries: testEntries("a")}
	embedder := &fakeEmbedder{vectors: map[string][]float32{"a": {1, 0}}}
	svc := newTestQueryService(t, source, embedder, nil)

	svc.AnswerQuery(context.Background(), "anything", nil)
	if info := svc.CacheInfo(); !info.Cached {
		t.Fatal("cache should be populated after a query")
	}

	svc.ClearCache(context.Background())
	if info := svc.CacheInfo(); info.Cached {
		t.Error("cache should be empty after ClearCache")
	}
}
