package models

import "time"

// Provenance records which retrieval tier produced the current entry set
type Provenance string

const (
	ProvenanceLive     Provenance = "live"
	ProvenanceCached   Provenance = "cached"
	ProvenanceFallback Provenance = "fallback"
	ProvenanceMock     Provenance = "mock"
	ProvenanceNone     Provenance = "none"
)

// KnowledgeEntry is a single question/answer pair from the knowledge base.
// Entries are immutable once fetched; the answer payload is a free-form
// document owned by whoever authored the knowledge base.
type KnowledgeEntry struct {
	ID       string                 `json:"_id" bson:"_id,omitempty" yaml:"id"`
	Question string                 `json:"question" bson:"question" yaml:"question"`
	Answers  map[string]interface{} `json:"answers" bson:"answers" yaml:"answers"`
}

// Valid reports whether an entry is usable for matching: it needs a
// non-empty question. A nil answers map is tolerated (normalized to empty
// by the fetcher).
func (e *KnowledgeEntry) Valid() bool {
	return e != nil && len(e.Question) > 0
}

// CacheRecord is the single cached slot holding the last successfully
// retrieved entry set plus its provenance. It is always replaced wholesale,
// never mutated in place.
type CacheRecord struct {
	Entries    []KnowledgeEntry
	Provenance Provenance
	FetchedAt  time.Time
}

// CacheInfo is the operational view of the cache slot
type CacheInfo struct {
	Cached       bool       `json:"cached"`
	AgeSeconds   float64    `json:"cache_age_seconds"`
	TTLRemaining float64    `json:"cache_expires_in"`
	EntryCount   int        `json:"cached_entries"`
	Provenance   Provenance `json:"cache_status"`
}

// SentinelIndex marks "no applicable candidate index"
const SentinelIndex = -1

// MatchResult is the outcome of scoring one query against the entry set.
// Entry is nil when nothing scored above the threshold; Score and Index
// still carry the closest miss so callers can report diagnostics.
type MatchResult struct {
	Entry    *KnowledgeEntry
	Score    float64
	Index    int
	Strategy MatchStrategy
}

// Matched reports whether the result carries an accepted entry
func (r MatchResult) Matched() bool {
	return r.Entry != nil
}

// MatchStrategy records which matcher produced a result
type MatchStrategy string

const (
	StrategyEmbedding MatchStrategy = "embedding"
	StrategyRanker    MatchStrategy = "ranker"
	StrategyKeyword   MatchStrategy = "keyword"
	StrategyNone      MatchStrategy = "none"
)
