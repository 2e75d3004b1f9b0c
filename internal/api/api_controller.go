package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"nidar/preorder/internal/models"
	"nidar/preorder/internal/services"
)

const healthPingTimeout = 2 * time.Second

// APIController exposes the menu, pricing and session state as JSON.
type APIController struct {
	pages *PageController
}

func NewAPIController(pages *PageController) *APIController {
	return &APIController{pages: pages}
}

// Health reports 503 when the Redis session store does not answer a ping.
func (ac *APIController) Health(c *gin.Context) {
	ctx := c.Request.Context()
	store := ac.pages.sessions.Store()

	status, code := "ok", http.StatusOK
	redisStatus := "disabled"
	if pinger, ok := store.(services.Pinger); ok {
		pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
		err := pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Health: Redis ping failed")
			redisStatus = "down"
			status, code = "degraded", http.StatusServiceUnavailable
		} else {
			redisStatus = "ok"
		}
	}

	sessions, err := store.Count(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Health: session count unavailable")
		sessions = -1
	}
	c.JSON(code, gin.H{
		"status":     status,
		"service":    "NIDAR Pre-Order",
		"version":    "1.0.0",
		"redis":      redisStatus,
		"sessions":   sessions,
		"ws_clients": ac.pages.hub.GetClientsCount(),
	})
}

type menuCategoryResponse struct {
	ID       models.Category   `json:"id"`
	Label    string            `json:"label"`
	MinPrice int               `json:"min_price"`
	MaxPrice int               `json:"max_price"`
	Items    []models.MenuItem `json:"items"`
}

func (ac *APIController) GetMenu(c *gin.Context) {
	var categories []menuCategoryResponse
	for _, category := range models.Categories() {
		lo, hi := models.CategoryPriceRange(category)
		categories = append(categories, menuCategoryResponse{
			ID:       category,
			Label:    category.Label(),
			MinPrice: lo,
			MaxPrice: hi,
			Items:    models.MenuItemsByCategory(category),
		})
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (ac *APIController) GetSession(c *gin.Context) {
	var snap services.SessionSnapshot
	_, err := ac.pages.withSession(c, func(s *models.Session) error {
		snap = ac.pages.flow.Snapshot(s)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to load session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

type QuoteRequest struct {
	Items map[string]int `json:"items" binding:"required"`
}

// Quote prices an arbitrary selection without touching the session.
func (ac *APIController) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data", "details": err.Error()})
		return
	}
	for id, qty := range req.Items {
		if !models.IsMenuItem(id) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown menu item", "item_id": id})
			return
		}
		if qty < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must not be negative", "item_id": id})
			return
		}
	}

	lines := services.SummaryLines(req.Items)
	if lines == nil {
		lines = []services.SummaryLine{}
	}
	c.JSON(http.StatusOK, gin.H{
		"lines":       lines,
		"total_price": services.TotalPrice(req.Items),
		"total_items": services.TotalItems(req.Items),
	})
}
