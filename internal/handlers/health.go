package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"answerhub/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	queryService *services.QueryService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(queryService *services.QueryService) *HealthHandler {
	return &HealthHandler{queryService: queryService}
}

// Handle responds with server health status, including live source
// reachability and the cache state.
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	source := "not_configured"
	if h.queryService.HasLiveSource() {
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()

		if err := h.queryService.TestSource(ctx); err != nil {
			source = "unreachable"
		} else {
			source = "ok"
		}
	}

	return c.JSON(fiber.Map{
		"status":    "healthy",
		"source":    source,
		"cache":     h.queryService.CacheInfo(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
