package webhook

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vocero/internal/conversation"
	"vocero/platform/logger"
	"vocero/platform/phone"
)

// Handler terminates the inbound machine webhooks and feeds the
// orchestrator. Every endpoint acknowledges fast; orchestration runs in
// the background.
type Handler struct {
	svc *conversation.Service
	log *logger.Logger
}

// NewHandler creates the webhook handler.
func NewHandler(svc *conversation.Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// HandleWhatsApp receives inbound chat messages from the carrier.
// Redeliveries are dropped by message id before any state is touched.
func (h *Handler) HandleWhatsApp(c *gin.Context) {
	var form whatsappForm
	if err := c.ShouldBind(&form); err != nil || form.From == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	if form.Body == "" && form.NumMedia == "0" {
		c.Status(http.StatusNoContent)
		return
	}
	if h.svc.Guard().SeenMessage(form.MessageSid) {
		c.Status(http.StatusOK)
		return
	}

	msg := conversation.InboundMessage{
		UserID:           phone.NormalizeE164(strings.TrimPrefix(form.From, "whatsapp:")),
		Body:             form.Body,
		MessageSID:       form.MessageSid,
		ProfileName:      form.ProfileName,
		MediaURL:         form.MediaURL0,
		MediaContentType: form.MediaContentType,
	}

	// Call placement can outlive the webhook by far; the carrier only
	// needs the ack.
	ctx := context.WithoutCancel(c.Request.Context())
	go h.svc.HandleMessage(ctx, msg)

	c.Status(http.StatusNoContent)
}

// HandleCallStatus receives the carrier's call lifecycle callbacks and
// forwards terminal ones to the correlator.
func (h *Handler) HandleCallStatus(c *gin.Context) {
	var form callStatusForm
	if err := c.ShouldBind(&form); err != nil || form.CallSid == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	outcome, terminal := carrierOutcome(form.CallStatus)
	if !terminal {
		c.Status(http.StatusNoContent)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	go h.svc.HandleCompletion(ctx, form.CallSid, outcome)

	c.Status(http.StatusNoContent)
}

// HandleEngineCallback receives the voice engine's post-call webhook,
// which carries the conversation id once the transcript is final.
func (h *Handler) HandleEngineCallback(c *gin.Context) {
	var payload engineCallback
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if payload.Data.ConversationID == "" {
		c.Status(http.StatusNoContent)
		return
	}
	if payload.Type != "" && payload.Type != "post_call_transcription" {
		c.Status(http.StatusNoContent)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	go h.svc.HandleCompletion(ctx, payload.Data.ConversationID, conversation.OutcomeCompleted)

	c.Status(http.StatusNoContent)
}

// carrierOutcome maps the carrier's status vocabulary onto terminal
// outcomes. Non-terminal progress statuses report false.
func carrierOutcome(status string) (conversation.Outcome, bool) {
	switch status {
	case "completed":
		return conversation.OutcomeCompleted, true
	case "busy":
		return conversation.OutcomeBusy, true
	case "no-answer":
		return conversation.OutcomeNoAnswer, true
	case "failed", "canceled":
		return conversation.OutcomeFailed, true
	default:
		return "", false
	}
}
