package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/airbot/internal/cache"
	"github.com/Domenick1991/airbot/internal/domain"
)

type AnalyticsSource interface {
	Analytics(ctx context.Context) (*domain.Analytics, error)
}

type StatsSource interface {
	Stats() cache.Stats
}

// AnalyticsHandler reports conversation analytics and cache occupancy.
// Either source may be nil when the backing store isn't configured.
type AnalyticsHandler struct {
	analytics AnalyticsSource
	caches    map[string]StatsSource
}

func NewAnalyticsHandler(analytics AnalyticsSource, caches map[string]StatsSource) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, caches: caches}
}

func (h *AnalyticsHandler) Register(router *gin.RouterGroup) {
	router.GET("/analytics", h.report)
	router.GET("/cache/stats", h.cacheStats)
}

func (h *AnalyticsHandler) report(c *gin.Context) {
	if h.analytics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analytics storage is not configured"})
		return
	}
	report, err := h.analytics.Analytics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AnalyticsHandler) cacheStats(c *gin.Context) {
	out := make(map[string]cache.Stats, len(h.caches))
	for name, src := range h.caches {
		out[name] = src.Stats()
	}
	c.JSON(http.StatusOK, out)
}
