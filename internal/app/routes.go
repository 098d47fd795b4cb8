package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wikiquiz/server/internal/middleware"
	"github.com/wikiquiz/server/internal/modules/history"
	"github.com/wikiquiz/server/internal/modules/quiz"
	"github.com/wikiquiz/server/internal/modules/system/health"
	"github.com/wikiquiz/server/internal/pkg/response"
)

func (a *App) registerRoutes() {
	r := a.router

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "AI Wiki Quiz Generator API is running!",
			"version": Version,
			"status":  "operational",
			"health":  "/health",
			"uptime":  humanizeDuration(time.Since(processStart)),
		})
	})

	deps := health.Deps{Database: a.svc, Cron: a.sched, Version: Version}
	if a.redis != nil {
		deps.Redis = a.redis
	}
	health.RegisterRoutes(&r.RouterGroup, deps)

	// nil counter disables the limiter
	var counter middleware.WindowCounter
	if a.redis != nil {
		counter = a.redis
	}
	rateLimit := middleware.RateLimit(counter, a.cfg.RateLimit.GeneratePerMinute, a.logger.Named("RateLimit"))

	api := r.Group("/api")
	quiz.NewHandler(a.svc).RegisterRoutes(api, rateLimit)
	history.NewHandler(a.svc).RegisterRoutes(api)

	r.NoRoute(func(c *gin.Context) {
		response.NotFoundMsg(c, "The requested resource was not found")
	})
}
