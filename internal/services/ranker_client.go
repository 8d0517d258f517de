package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// RankerClient talks to the out-of-process ranking service. The ranker
// receives the question plus every candidate question and replies with
// its pick and a confidence score.
type RankerClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
	confidence float64
	sentinel   string
}

// rankRequest is the wire request to the ranker
type rankRequest struct {
	Question         string   `json:"question"`
	DatasetQuestions []string `json:"datasetQuestions"`
}

// rankResponse is the raw wire response. Older ranker builds put the pick
// under "result" instead of "match"; both are accepted and collapsed into
// one verdict at this boundary.
type rankResponse struct {
	Score  *float64 `json:"score"`
	Match  *string  `json:"match"`
	Result *string  `json:"result"`
}

// RankerVerdict is the decoded outcome of one ranking call. Matched false
// with a nil error is a confident no-match and is final; the engine does
// not fall through to other strategies in that case.
type RankerVerdict struct {
	Matched  bool
	Question string
	Score    float64
}

// NewRankerClient creates a ranker client. confidence is the minimum
// score for a pick to be accepted; sentinel is the ranker's "nothing
// matched" marker string.
func NewRankerClient(baseURL string, timeout time.Duration, confidence float64, sentinel string) *RankerClient {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &RankerClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:     logger,
		confidence: confidence,
		sentinel:   sentinel,
	}
}

// HealthCheck checks if the ranker service is reachable
func (c *RankerClient) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed: status=%d, body=%s", resp.StatusCode, string(body))
	}

	return nil
}

// Rank asks the ranker to pick the best candidate question. A transport
// or protocol failure returns an error so the caller can fall back to
// another strategy. A well-formed reply that does not clear the
// acceptance rules returns Matched=false with no error.
//
// Acceptance requires all of: a pick that is not the sentinel, a score
// at or above the confidence threshold, and the pick appearing verbatim
// in the candidate list that was sent. A pick outside the list means the
// ranker invented a question; it is logged and rejected.
func (c *RankerClient) Rank(ctx context.Context, question string, candidates []string) (*RankerVerdict, error) {
	url := fmt.Sprintf("%s/rank", c.baseURL)

	reqBody := rankRequest{
		Question:         question,
		DatasetQuestions: candidates,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rank request: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"question_length": len(question),
		"candidates":      len(candidates),
	}).Info("Sending rank request")

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create rank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rank request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rank response: %w", err)
	}

	// 404 is the ranker's way of saying "no confident match", not a failure
	if resp.StatusCode == http.StatusNotFound {
		c.logger.Info("Ranker reported no confident match")
		return &RankerVerdict{Matched: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rank failed: status=%d, body=%s", resp.StatusCode, truncate(string(body), 200))
	}

	var raw rankResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse rank response: %w", err)
	}

	verdict := c.evaluate(raw, candidates)
	c.logger.WithFields(logrus.Fields{
		"matched": verdict.Matched,
		"score":   verdict.Score,
	}).Info("Rank request completed")

	return verdict, nil
}

// evaluate collapses the two wire shapes into a verdict and applies the
// acceptance rules.
func (c *RankerClient) evaluate(raw rankResponse, candidates []string) *RankerVerdict {
	pick := raw.Match
	if pick == nil {
		pick = raw.Result
	}

	verdict := &RankerVerdict{}
	if raw.Score != nil {
		verdict.Score = *raw.Score
	}

	if pick == nil || *pick == "" || *pick == c.sentinel {
		return verdict
	}
	if verdict.Score < c.confidence {
		c.logger.WithFields(logrus.Fields{
			"score":     verdict.Score,
			"threshold": c.confidence,
		}).Info("Ranker pick below confidence threshold, rejecting")
		return verdict
	}

	for _, candidate := range candidates {
		if candidate == *pick {
			verdict.Matched = true
			verdict.Question = *pick
			return verdict
		}
	}

	c.logger.WithField("pick", *pick).Warn("Ranker returned a question outside the candidate list, rejecting")
	return &RankerVerdict{Score: verdict.Score}
}
