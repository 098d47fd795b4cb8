package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wikiquiz/server/internal/pkg/cron"
	"github.com/wikiquiz/server/internal/pkg/response"
)

const pingTimeout = 2 * time.Second

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the checks behind /health. Redis and Cron may be nil.
type Deps struct {
	Database Pinger
	Redis    Pinger
	Cron     *cron.Scheduler
	Version  string
}

func RegisterRoutes(rg *gin.RouterGroup, deps Deps) {
	rg.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		defer cancel()

		dbOK := deps.Database != nil && deps.Database.Ping(ctx) == nil

		status := "healthy"
		code := http.StatusOK
		if !dbOK {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		body := gin.H{
			"status":   status,
			"database": dbOK,
			"version":  deps.Version,
			"time":     time.Now().UTC().Format(time.RFC3339),
		}
		// Redis only backs rate limiting; losing it does not degrade the service.
		if deps.Redis != nil {
			body["redis"] = deps.Redis.Ping(ctx) == nil
		}
		c.JSON(code, body)
	})

	rg.GET("/health/cron", func(c *gin.Context) {
		if deps.Cron == nil {
			response.OK(c, []cron.ListItem{})
			return
		}
		response.OK(c, deps.Cron.List())
	})

	rg.POST("/health/cron/run/:name", func(c *gin.Context) {
		if deps.Cron == nil {
			response.NotFoundMsg(c, "No scheduled jobs")
			return
		}
		if err := deps.Cron.Run(c.Request.Context(), c.Param("name")); err != nil {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.OK(c, gin.H{"message": "job triggered"})
	})
}
