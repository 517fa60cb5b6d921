package webhook

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rodrigofdzr/TARdesk/internal/ingest"
	"github.com/rodrigofdzr/TARdesk/internal/metrics"
	"github.com/rodrigofdzr/TARdesk/internal/models"
)

// maxBodyBytes caps webhook bodies; inline attachments arrive base64 encoded.
const maxBodyBytes = 25 << 20

type emailProcessor interface {
	Process(ctx context.Context, email *models.InboundEmail) (ingest.Result, error)
}

// Handler receives provider webhook deliveries and drives the ingestion
// pipeline: signature check, normalization, processing.
type Handler struct {
	verifier   *Verifier
	normalizer *Normalizer
	processor  emailProcessor
	metrics    *metrics.Ingestion
	logger     *log.Logger
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger overrides the logger.
func WithHandlerLogger(logger *log.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHandlerMetrics wires the ingestion collectors.
func WithHandlerMetrics(m *metrics.Ingestion) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler builds the webhook handler.
func NewHandler(verifier *Verifier, normalizer *Normalizer, processor emailProcessor, opts ...HandlerOption) *Handler {
	h := &Handler{
		verifier:   verifier,
		normalizer: normalizer,
		processor:  processor,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register mounts the webhook route on router.
func (h *Handler) Register(router gin.IRoutes) {
	router.POST("/webhooks/mail", h.HandleInbound)
}

// HandleInbound processes one webhook delivery. Providers retry non-2xx
// responses, so deliberate non-ingestion (filtered mail, echoes) still
// answers 200, with ok:false. Redeliveries answer ok:true and point at the
// ticket the message was already recorded on.
func (h *Handler) HandleInbound(c *gin.Context) {
	start := time.Now()
	h.metrics.Received()

	rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		h.metrics.Rejected("body_read")
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unreadable body"})
		return
	}

	// Providers probe endpoints with empty (sometimes whitespace-only)
	// bodies during setup.
	if len(bytes.TrimSpace(rawBody)) == 0 {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if !h.verifier.Verify(rawBody, h.signatureHeader(c)) {
		h.metrics.Rejected("signature")
		h.logger.Printf("webhook: rejected delivery from %s, bad signature", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid signature"})
		return
	}

	email, err := h.normalizer.Normalize(rawBody)
	if err != nil {
		h.metrics.Rejected("payload")
		h.logger.Printf("webhook: unparseable delivery from %s: %v", c.ClientIP(), err)
		if errors.Is(err, ErrNoSender) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "payload has no sender"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unparseable payload"})
		return
	}

	result, err := h.processor.Process(c.Request.Context(), email)
	if err != nil {
		h.metrics.Processed("error")
		h.logger.Printf("webhook: processing %s failed: %v", email.MessageID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "processing failed"})
		return
	}

	h.metrics.Processed(result.Action)
	h.metrics.ObserveDuration(time.Since(start).Seconds())

	if !result.Ingested() {
		c.JSON(http.StatusOK, gin.H{"ok": false, "action": result.Action})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"action":        result.Action,
		"ticket_id":     result.Ticket.ID,
		"ticket_number": result.Ticket.TicketNumber,
	})
}

// signatureHeader returns the first populated signature header; providers
// have shipped it under several names over time.
func (h *Handler) signatureHeader(c *gin.Context) string {
	for _, name := range SignatureHeaderCandidates {
		if value := c.GetHeader(name); value != "" {
			return value
		}
	}
	return ""
}
