// Package webhook terminates the inbound machine webhooks: the carrier's
// chat and call-status callbacks and the voice engine's post-call
// notification.
package webhook

import (
	"vocero/internal/conversation"
	apphttp "vocero/internal/http"
	"vocero/platform/logger"
)

// Module is the webhook transport module implementing http.Module.
type Module struct {
	handler *Handler
	log     *logger.Logger
}

// NewModule creates the webhook module around the orchestrator.
func NewModule(svc *conversation.Service, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(svc, log),
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the signed webhook endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	carrier := TwilioSignature(ctx.Config, m.log)
	ctx.API.POST("/whatsapp", carrier, m.handler.HandleWhatsApp)
	ctx.API.POST("/call-status", carrier, m.handler.HandleCallStatus)
	ctx.API.POST("/engine/callback", EngineSignature(ctx.Config, m.log), m.handler.HandleEngineCallback)
}

var _ apphttp.Module = (*Module)(nil)
