package main

import (
	"context"
	"net/http"

	"telehealth-calls/internal/auth"
	"telehealth-calls/internal/httpapi"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	// Ping reports database health for /healthz.
	Ping     func(ctx context.Context) error
	Tokens   *auth.Manager
	Handlers httpapi.Handlers
	Limit    gin.HandlerFunc
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if d.Ping != nil {
			if err := d.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "db": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(auth.RequireAccessToken(d.Tokens), httpapi.ClientIP())
	httpapi.RegisterCallRoutes(api, d.Handlers, d.Limit)
}
