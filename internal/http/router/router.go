// Package router assembles the Gin engine from the application modules.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	apphttp "vocero/internal/http"
	"vocero/internal/http/middleware"
)

// New builds the HTTP engine: shared middleware, health endpoint and every
// module's routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(app.Logger))

	if app.Config.GetCORSAllowAll() || len(app.Config.GetCORSOrigins()) > 0 {
		corsCfg := cors.DefaultConfig()
		if app.Config.GetCORSAllowAll() {
			corsCfg.AllowAllOrigins = true
		} else {
			corsCfg.AllowOrigins = app.Config.GetCORSOrigins()
		}
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-Request-ID")
		engine.Use(cors.New(corsCfg))
	}

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := app.Health.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	rc := &apphttp.RouterContext{
		Engine: engine,
		API:    engine.Group("/api"),
		Config: app.Config,
	}
	for _, m := range app.Modules {
		m.RegisterRoutes(rc)
		app.Logger.Info("registered module routes", "module", m.Name())
	}

	return engine
}
