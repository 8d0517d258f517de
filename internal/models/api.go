package models

// QueryRequest is the body of POST /query
type QueryRequest struct {
	Question  string   `json:"question"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// BatchQueryRequest is the body of POST /query/batch
type BatchQueryRequest struct {
	Questions []string `json:"questions"`
	Threshold *float64 `json:"threshold,omitempty"`
	TopK      int      `json:"top_k,omitempty"`
}

// QueryMatch is one matched entry in an API response
type QueryMatch struct {
	MatchedQuestion string                 `json:"matched_question"`
	Answers         map[string]interface{} `json:"answers"`
	Similarity      float64                `json:"similarity"`
	Strategy        MatchStrategy          `json:"strategy"`
}

// QueryResponse is the success body of POST /query
type QueryResponse struct {
	Question   string     `json:"question"`
	Match      QueryMatch `json:"match"`
	Source     Provenance `json:"source"`
	Threshold  float64    `json:"threshold_used"`
}

// NoMatchResponse is the 404 body when nothing clears the threshold
type NoMatchResponse struct {
	Error          string  `json:"error"`
	Question       string  `json:"question"`
	BestSimilarity float64 `json:"best_similarity"`
	ThresholdUsed  float64 `json:"threshold_used"`
}

// BatchQueryItem is one element of a batch response
type BatchQueryItem struct {
	Question string       `json:"question"`
	Matches  []QueryMatch `json:"matches,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// BatchQueryResponse is the body of POST /query/batch
type BatchQueryResponse struct {
	Results   []BatchQueryItem `json:"results"`
	Count     int              `json:"count"`
	Source    Provenance       `json:"source"`
	Threshold float64          `json:"threshold_used"`
}
