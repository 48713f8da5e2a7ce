package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"smart-lighting-backend/config"
	"smart-lighting-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg *config.ServerConfig, registry *prometheus.Registry) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 10*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/rooms", caching, h.ListRooms)
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms/:room_id", h.GetRoom)
		api.PATCH("/rooms/:room_id", h.UpdateRoom)
		api.DELETE("/rooms/:room_id", h.DeleteRoom)

		api.POST("/rooms/:room_id/detect", h.DetectUpload)
		api.GET("/rooms/:room_id/detections", h.GetDetections)

		api.POST("/rooms/:room_id/monitoring", h.SetMonitoring)
		api.POST("/rooms/:room_id/monitoring/retry", h.RetryMonitoring)
		api.GET("/monitoring", h.GetMonitoring)
		api.POST("/monitoring/stop", h.MasterStop)
		api.GET("/monitoring/stats", h.GetStats)
		api.POST("/monitoring/stats/reset", h.ResetStats)
		api.GET("/monitoring/settings", h.GetSettings)
		api.PUT("/monitoring/settings", h.PutSettings)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		api.GET("/ws", h.ServeWS)
	}

	if registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return r
}
