package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"answerhub/internal/models"
)

// DocumentSource is a live knowledge base backend. Implementations return
// the full entry set or an error; partial results are not supported.
type DocumentSource interface {
	FetchAll(ctx context.Context) ([]models.KnowledgeEntry, error)
	Name() string
}

// fetchErrorKind classifies live fetch failures for logging and the
// health endpoint. The chain reacts the same way to all of them (fall
// through to the next tier), but operators care which one it was.
type fetchErrorKind string

const (
	fetchErrTimeout    fetchErrorKind = "timeout"
	fetchErrConnection fetchErrorKind = "connection"
	fetchErrAuth       fetchErrorKind = "auth"
	fetchErrNotFound   fetchErrorKind = "not_found"
	fetchErrMalformed  fetchErrorKind = "malformed"
	fetchErrStatus     fetchErrorKind = "status"
)

func classifyFetchError(err error) fetchErrorKind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fetchErrTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fetchErrTimeout
	}
	var statusErr *webhookStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.code == http.StatusUnauthorized || statusErr.code == http.StatusForbidden:
			return fetchErrAuth
		case statusErr.code == http.StatusNotFound:
			return fetchErrNotFound
		default:
			return fetchErrStatus
		}
	}
	var jsonErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &jsonErr) || errors.As(err, &typeErr) {
		return fetchErrMalformed
	}
	return fetchErrConnection
}

type webhookStatusError struct {
	code int
	body string
}

func (e *webhookStatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d: %s", e.code, e.body)
}

// WebhookSource fetches the knowledge base from an HTTP endpoint that
// returns a JSON array of entries. An optional bearer token is attached.
type WebhookSource struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewWebhookSource creates a webhook source with the given fetch timeout.
func NewWebhookSource(url, token string, timeout time.Duration) *WebhookSource {
	return &WebhookSource{
		url:   url,
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *WebhookSource) Name() string { return "webhook" }

// FetchAll retrieves and decodes the full entry set from the webhook.
func (s *WebhookSource) FetchAll(ctx context.Context) ([]models.KnowledgeEntry, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &webhookStatusError{code: resp.StatusCode, body: truncate(string(body), 200)}
	}

	var entries []models.KnowledgeEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		// some deployments wrap the array in {"data": [...]}
		var wrapped struct {
			Data []models.KnowledgeEntry `json:"data"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil || wrapped.Data == nil {
			return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
		}
		entries = wrapped.Data
	}

	return entries, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// KnowledgeFetcher is the retrieval chain: valid cache, then the live
// source, then the static fallback dataset, then empty. Fetch never
// returns an error; a total miss surfaces as an empty set with
// provenance none and callers decide how to report it.
type KnowledgeFetcher struct {
	cache    *KnowledgeCache
	source   DocumentSource // nil when no live source is configured
	fallback *FallbackDataset
	limiter  *rate.Limiter
}

// NewKnowledgeFetcher wires the chain. source may be nil; ratePerSec
// bounds outbound live fetches (burst 1).
func NewKnowledgeFetcher(cache *KnowledgeCache, source DocumentSource, fallback *FallbackDataset, ratePerSec float64) *KnowledgeFetcher {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &KnowledgeFetcher{
		cache:    cache,
		source:   source,
		fallback: fallback,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

// Fetch returns the current entry set and its provenance. Every tier
// that produces a result stores it in the cache, so repeated queries
// inside the TTL window reuse it whether it came from the live source
// or a fallback. useMock skips the live tier and serves the fallback
// dataset tagged as mock data.
func (f *KnowledgeFetcher) Fetch(ctx context.Context, useMock bool) ([]models.KnowledgeEntry, models.Provenance) {
	if useMock {
		entries := f.fallback.Entries()
		f.cache.Put(entries, models.ProvenanceMock)
		slog.Info("Serving mock knowledge data", "entries", len(entries))
		return entries, models.ProvenanceMock
	}

	if record, found := f.cache.Get(); found {
		return record.Entries, models.ProvenanceCached
	}

	if f.source != nil {
		entries, err := f.fetchLive(ctx)
		if err == nil {
			// an empty but well-formed result is a success and is
			// cached like any other
			f.cache.Put(entries, models.ProvenanceLive)
			return entries, models.ProvenanceLive
		}
		slog.Warn("Live knowledge fetch failed, falling back",
			"source", f.source.Name(),
			"kind", string(classifyFetchError(err)),
			"error", err,
		)
	}

	entries := f.fallback.Entries()
	if len(entries) > 0 {
		f.cache.Put(entries, models.ProvenanceFallback)
		return entries, models.ProvenanceFallback
	}

	return nil, models.ProvenanceNone
}

// fetchLive pulls from the live source with rate limiting and validation.
func (f *KnowledgeFetcher) fetchLive(ctx context.Context) ([]models.KnowledgeEntry, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	raw, err := f.source.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]models.KnowledgeEntry, 0, len(raw))
	dropped := 0
	for i := range raw {
		entry := raw[i]
		if !entry.Valid() {
			dropped++
			continue
		}
		if entry.Answers == nil {
			entry.Answers = map[string]interface{}{}
		}
		entries = append(entries, entry)
	}
	if dropped > 0 {
		slog.Warn("Dropped invalid entries from live fetch", "dropped", dropped, "kept", len(entries))
	}

	slog.Info("Knowledge base fetched from live source",
		"source", f.source.Name(), "entries", len(entries))
	return entries, nil
}

// TestConnection probes the live source without touching the cache.
// Used by the health endpoint to report source reachability.
func (f *KnowledgeFetcher) TestConnection(ctx context.Context) error {
	if f.source == nil {
		return fmt.Errorf("no live source configured")
	}
	_, err := f.source.FetchAll(ctx)
	return err
}

// HasLiveSource reports whether a live tier is configured.
func (f *KnowledgeFetcher) HasLiveSource() bool {
	return f.source != nil
}
