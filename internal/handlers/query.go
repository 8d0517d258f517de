package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"answerhub/internal/models"
	"answerhub/internal/services"
)

// QueryHandler handles question answering requests
type QueryHandler struct {
	queryService *services.QueryService
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(queryService *services.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// HandleQuery answers a single question.
// POST /query
func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req models.QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}

	if strings.TrimSpace(req.Question) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "question is required",
		})
	}

	answer, err := h.queryService.AnswerQuery(c.UserContext(), req.Question, req.Threshold)
	if err != nil {
		return h.mapError(c, err)
	}

	if !answer.Result.Matched() {
		return c.Status(fiber.StatusNotFound).JSON(models.NoMatchResponse{
			Error:          "no matching answer found",
			Question:       req.Question,
			BestSimilarity: answer.Result.Score,
			ThresholdUsed:  answer.Threshold,
		})
	}

	return c.JSON(models.QueryResponse{
		Question:  req.Question,
		Match:     toQueryMatch(answer.Result),
		Source:    answer.Provenance,
		Threshold: answer.Threshold,
	})
}

// HandleBatchQuery answers several questions in one request.
// POST /query/batch
func (h *QueryHandler) HandleBatchQuery(c *fiber.Ctx) error {
	var req models.BatchQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}

	if len(req.Questions) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "questions must be a non-empty array",
		})
	}
	if req.TopK < 0 || req.TopK > services.MaxTopK {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "top_k must be between 1 and 10",
		})
	}

	batch, err := h.queryService.BatchAnswer(c.UserContext(), req.Questions, req.Threshold, req.TopK)
	if err != nil {
		return h.mapError(c, err)
	}

	results := make([]models.BatchQueryItem, len(batch.Items))
	for i, item := range batch.Items {
		out := models.BatchQueryItem{Question: item.Question}
		if item.Err != nil {
			out.Error = item.Err.Error()
		} else {
			for _, r := range item.Results {
				out.Matches = append(out.Matches, toQueryMatch(r))
			}
		}
		results[i] = out
	}

	return c.JSON(models.BatchQueryResponse{
		Results:   results,
		Count:     len(results),
		Source:    batch.Provenance,
		Threshold: batch.Threshold,
	})
}

// mapError translates engine errors onto HTTP status codes
func (h *QueryHandler) mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidThreshold):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, services.ErrSourceUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "knowledge source unavailable, try again later",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error while answering the query",
		})
	}
}

func toQueryMatch(r models.MatchResult) models.QueryMatch {
	return models.QueryMatch{
		MatchedQuestion: r.Entry.Question,
		Answers:         r.Entry.Answers,
		Similarity:      r.Score,
		Strategy:        r.Strategy,
	}
}
