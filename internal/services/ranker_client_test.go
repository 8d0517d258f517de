package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testSentinel = "No matching data found"

func newTestRanker(t *testing.T, handler http.HandlerFunc) (*RankerClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewRankerClient(server.URL, 5*time.Second, 0.5, testSentinel), server
}

func TestRankAccepted(t *testing.T) {
	client, _ := newTestRanker(t, func(w http.ResponseWriter, r *http.Request) {
		var req rankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Question != "what is go" || len(req.DatasetQuestions) != 2 {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"match": "what is golang",
			"score": 0.9,
		})
	})

	verdict, err := client.Rank(context.Background(), "what is go", []string{"what is golang", "what is rust"})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if !verdict.Matched || verdict.Question != "what is golang" {
		t.Errorf("unexpected verdict: %+v", verdict)
	}
}

func TestRankResultFieldVariant(t *testing.T) {
	client, _ := newTestRanker(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": "what is golang",
			"score":  0.8,
		})
	})

	verdict, err := client.Rank(context.Background(), "q", []string{"what is golang"})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if !verdict.Matched {
		t.Error("result-shaped response should be accepted like match-shaped")
	}
}

func TestRankSentinelIsNoMatch(t *testing.T) {
	client, _ := newTestRanker(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"match": testSentinel,
			"score": 0.95,
		})
	})

	verdict, err := client.Rank(context.Background(), "q", []string{"a"})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if verdict.Matched {
		t.Error("sentinel pick must be treated as no-match")
	}
}

func TestRankLowScoreRejected(t *testing.T) {
	client, _ := newTestRanker(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"match": "a",
			"score": 0.3,
		})
	})

	verdict, err := client.Rank(context.Background(), "q", []string{"a"})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if verdict.Matched {
		t.Error("pick below the confidence threshold must be rejected")
	}
	if verdict.Score != 0.3 {
		t.Errorf("score = %v, want 0.3", verdict.Score)
	}
}

func TestRankHallucinatedPickRejected(t *testing.T) {
	client, _ := newTestRanker(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"match": "a question nobody sent",
			"score": 0.99,
		})
	})

	verdict, err := client.Rank(context.Background(), "q", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if verdict.Matched {
		t.Error("pick outside the candidate list must be rejected")
	}
}

func TestRank404IsNoMatchNotError(t *testing.T) {
	client, _ := newTestRanker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	verdict, err := client.Rank(context.Background(), "q", []string{"a"})
	if err != nil {
		t.Fatalf("404 must not be an error, got: %v", err)
	}
	if verdict.Matched {
		t.Error("404 means no confident match")
	}
}

func TestRankServerErrorIsError(t *testing.T) {
	client, _ := newTestRanker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := client.Rank(context.Background(), "q", []string{"a"}); err == nil {
		t.Error("5xx must surface as an error so the caller can fall back")
	}
}

func TestRankMalformedPayloadIsError(t *testing.T) {
	client, _ := newTestRanker(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{broken"))
	})

	if _, err := client.Rank(context.Background(), "q", []string{"a"}); err == nil {
		t.Error("malformed payload must surface as an error")
	}
}

func TestRankTransportFailureIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewRankerClient(server.URL, 2*time.Second, 0.5, testSentinel)
	if _, err := client.Rank(context.Background(), "q", []string{"a"}); err == nil {
		t.Error("connection failure must surface as an error")
	}
}
