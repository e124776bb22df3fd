// Package http provides HTTP server infrastructure including the Module
// interface that transport-facing modules implement for route
// registration.
package http

import (
	"github.com/gin-gonic/gin"

	"vocero/platform/config"
)

// Module represents a transport-facing module that can register its HTTP
// routes, keeping the router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router
	// context.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route
// registration.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level
	// access.
	Engine *gin.Engine
	// API is the /api route group every machine webhook mounts under.
	API *gin.RouterGroup
	// Config is the webhook validation configuration (scoped access).
	Config config.WebhookConfig
}
