package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"answerhub/internal/logging"
	"answerhub/internal/models"
)

const (
	// DefaultTopK is used when a batch request omits top_k
	DefaultTopK = 1
	// MaxTopK bounds how many results one batch item may request
	MaxTopK = 10
)

// Answer is the outcome of one answered (or missed) query.
type Answer struct {
	Result     models.MatchResult
	Provenance models.Provenance
	Threshold  float64
}

// BatchItem is the outcome of one question inside a batch. Failures are
// isolated: Err is set for the failing item and the rest proceed.
type BatchItem struct {
	Question string
	Results  []models.MatchResult
	Err      error
}

// QueryService is the engine facade. It owns the retrieval chain and the
// matching strategy order: external ranker when configured, then
// embedding similarity, then the lexical keyword matcher when the
// embedding tier fails or is absent.
type QueryService struct {
	fetcher     *KnowledgeFetcher
	matcher     *Matcher      // nil when no embedding backend is configured
	keyword     *KeywordMatcher
	ranker      *RankerClient // nil when no ranker is configured
	cache       *KnowledgeCache
	invalidator *CacheInvalidator // nil without Redis
	metrics     *Metrics
	threshold   float64 // default similarity threshold
	useMock     bool    // serve mock data instead of fetching live
}

// NewQueryService wires the facade. matcher, ranker and invalidator are
// all optional; useMock pins every fetch to the mock tier.
func NewQueryService(
	fetcher *KnowledgeFetcher,
	matcher *Matcher,
	ranker *RankerClient,
	cache *KnowledgeCache,
	invalidator *CacheInvalidator,
	metrics *Metrics,
	defaultThreshold float64,
	useMock bool,
) *QueryService {
	return &QueryService{
		fetcher:     fetcher,
		matcher:     matcher,
		keyword:     NewKeywordMatcher(),
		ranker:      ranker,
		cache:       cache,
		invalidator: invalidator,
		metrics:     metrics,
		threshold:   defaultThreshold,
		useMock:     useMock,
	}
}

// resolveThreshold validates a caller-supplied threshold or falls back
// to the configured default.
func (s *QueryService) resolveThreshold(threshold *float64) (float64, error) {
	if threshold == nil {
		return s.threshold, nil
	}
	if *threshold < 0 || *threshold > 1 {
		return 0, ErrInvalidThreshold
	}
	return *threshold, nil
}

// AnswerQuery answers a single question. A miss (no error) carries the
// best score and index with a nil entry; ErrSourceUnavailable means no
// tier produced any entries at all.
func (s *QueryService) AnswerQuery(ctx context.Context, question string, threshold *float64) (*Answer, error) {
	start := time.Now()
	s.metrics.RecordQuery()
	defer func() {
		s.metrics.RecordQueryLatency(time.Since(start).Seconds())
	}()

	logger := logging.WithQuery(uuid.NewString(), question)

	resolved, err := s.resolveThreshold(threshold)
	if err != nil {
		s.metrics.RecordQueryError("invalid_threshold")
		return nil, err
	}

	entries, provenance := s.fetcher.Fetch(ctx, s.useMock)
	s.metrics.RecordFetch(string(provenance))
	if len(entries) == 0 {
		s.metrics.RecordQueryError("source_unavailable")
		logger.Warn("No knowledge entries available from any tier")
		return nil, ErrSourceUnavailable
	}

	result, err := s.match(ctx, logger, question, entries, resolved)
	if err != nil {
		return nil, err
	}

	if result.Matched() {
		s.metrics.RecordMatch(string(result.Strategy))
		logger.Info("Query matched",
			"strategy", result.Strategy,
			"score", result.Score,
			"provenance", provenance,
		)
	} else {
		s.metrics.RecordMiss()
		logger.Info("Query missed",
			"best_score", result.Score,
			"threshold", resolved,
		)
	}

	return &Answer{
		Result:     result,
		Provenance: provenance,
		Threshold:  resolved,
	}, nil
}

// match runs the strategy chain for one question against one entry set.
func (s *QueryService) match(ctx context.Context, logger *slog.Logger, question string, entries []models.KnowledgeEntry, threshold float64) (models.MatchResult, error) {
	if s.ranker != nil {
		result, final := s.rankerMatch(ctx, logger, question, entries)
		if final {
			return result, nil
		}
	}

	if s.matcher == nil {
		return s.keyword.Match(question, entries), nil
	}

	set, err := s.matcher.BuildCandidates(ctx, entries)
	if err == nil {
		var result models.MatchResult
		result, err = s.matcher.BestMatch(ctx, question, set, threshold)
		if err == nil {
			return result, nil
		}
	}

	// embedding tier is down; the lexical matcher can still save the query
	logger.Warn("Embedding tier failed, trying keyword fallback", "error", err)
	s.metrics.RecordQueryError("embedding_failure")
	if result := s.keyword.Match(question, entries); result.Matched() {
		return result, nil
	}
	return models.MatchResult{Index: models.SentinelIndex, Strategy: models.StrategyNone}, err
}

// rankerMatch consults the external ranker. The second return value is
// true when the verdict is final: either an accepted match, or a
// well-formed confident no-match. Transport and protocol failures are
// not final and fall through to the embedding tier.
func (s *QueryService) rankerMatch(ctx context.Context, logger *slog.Logger, question string, entries []models.KnowledgeEntry) (models.MatchResult, bool) {
	questions := make([]string, len(entries))
	for i := range entries {
		questions[i] = entries[i].Question
	}

	verdict, err := s.ranker.Rank(ctx, question, questions)
	if err != nil {
		logger.Warn("Ranker unavailable, falling back to embedding", "error", err)
		s.metrics.RecordQueryError("ranker_failure")
		return models.MatchResult{}, false
	}

	if !verdict.Matched {
		return models.MatchResult{
			Score:    verdict.Score,
			Index:    models.SentinelIndex,
			Strategy: models.StrategyRanker,
		}, true
	}

	// resolve the pick against the current entry set, not the one the
	// ranker may have cached
	for i := range entries {
		if entries[i].Question == verdict.Question {
			entry := entries[i]
			return models.MatchResult{
				Entry:    &entry,
				Score:    verdict.Score,
				Index:    i,
				Strategy: models.StrategyRanker,
			}, true
		}
	}

	logger.Warn("Ranker pick no longer present in entry set", "pick", verdict.Question)
	return models.MatchResult{}, false
}

// BatchResult is the outcome of a whole batch request.
type BatchResult struct {
	Items      []BatchItem
	Provenance models.Provenance
	Threshold  float64
}

// BatchAnswer answers several questions in one pass. The entry set and
// candidate vectors are built once; failures are isolated per item.
// topK 0 means DefaultTopK; values above MaxTopK are an error.
func (s *QueryService) BatchAnswer(ctx context.Context, questions []string, threshold *float64, topK int) (*BatchResult, error) {
	resolved, err := s.resolveThreshold(threshold)
	if err != nil {
		s.metrics.RecordQueryError("invalid_threshold")
		return nil, err
	}

	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 1 || topK > MaxTopK {
		return nil, fmt.Errorf("top_k must be between 1 and %d, got %d", MaxTopK, topK)
	}

	entries, provenance := s.fetcher.Fetch(ctx, s.useMock)
	s.metrics.RecordFetch(string(provenance))
	if len(entries) == 0 {
		s.metrics.RecordQueryError("source_unavailable")
		return nil, ErrSourceUnavailable
	}

	// build embeddings once for the whole batch
	var set *CandidateSet
	if s.matcher != nil {
		set, err = s.matcher.BuildCandidates(ctx, entries)
		if err != nil {
			slog.Warn("Batch candidate embedding failed, using keyword matching", "error", err)
			s.metrics.RecordQueryError("embedding_failure")
			set = nil
		}
	}

	items := make([]BatchItem, len(questions))
	for i, question := range questions {
		items[i] = s.batchOne(ctx, question, entries, set, resolved, topK, i)
	}
	return &BatchResult{
		Items:      items,
		Provenance: provenance,
		Threshold:  resolved,
	}, nil
}

func (s *QueryService) batchOne(ctx context.Context, question string, entries []models.KnowledgeEntry, set *CandidateSet, threshold float64, topK, index int) BatchItem {
	item := BatchItem{Question: question}
	logger := logging.WithBatch(slog.Default(), index)

	if question == "" {
		item.Err = fmt.Errorf("question must be a non-empty string")
		return item
	}

	s.metrics.RecordQuery()

	if set != nil {
		results, err := s.matcher.TopK(ctx, question, set, threshold, topK)
		if err != nil {
			logger.Warn("Batch item embedding failed", "error", err)
			s.metrics.RecordQueryError("embedding_failure")
			item.Err = err
			return item
		}
		item.Results = results
	} else if result := s.keyword.Match(question, entries); result.Matched() {
		item.Results = []models.MatchResult{result}
	}

	if len(item.Results) == 0 {
		s.metrics.RecordMiss()
	} else {
		s.metrics.RecordMatch(string(item.Results[0].Strategy))
	}
	return item
}

// CacheInfo reports the state of the knowledge cache slot.
func (s *QueryService) CacheInfo() models.CacheInfo {
	return s.cache.Info()
}

// ClearCache drops the local cache slot and, when Redis is wired,
// broadcasts the invalidation to other instances.
func (s *QueryService) ClearCache(ctx context.Context) {
	s.cache.Clear()
	s.metrics.RecordCacheClear()

	if s.invalidator != nil {
		if err := s.invalidator.Broadcast(ctx, "manual clear"); err != nil {
			slog.Warn("Failed to broadcast cache invalidation", "error", err)
		}
	}
}

// TestSource probes the live knowledge source for the health endpoint.
func (s *QueryService) TestSource(ctx context.Context) error {
	return s.fetcher.TestConnection(ctx)
}

// HasLiveSource reports whether a live retrieval tier is configured.
func (s *QueryService) HasLiveSource() bool {
	return s.fetcher.HasLiveSource()
}
