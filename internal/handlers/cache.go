package handlers

import (
	"github.com/gofiber/fiber/v2"

	"answerhub/internal/services"
)

// CacheHandler exposes the knowledge cache for operators
type CacheHandler struct {
	queryService *services.QueryService
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(queryService *services.QueryService) *CacheHandler {
	return &CacheHandler{queryService: queryService}
}

// HandleInfo reports the cache slot state.
// GET /cache/info
func (h *CacheHandler) HandleInfo(c *fiber.Ctx) error {
	return c.JSON(h.queryService.CacheInfo())
}

// HandleClear drops the cache slot so the next query refetches.
// POST /cache/clear
func (h *CacheHandler) HandleClear(c *fiber.Ctx) error {
	h.queryService.ClearCache(c.UserContext())
	return c.JSON(fiber.Map{
		"status": "cache cleared",
	})
}
