package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	"github.com/realtravo/realtravo-sub000/internal/modules/payouts"
)

type WebhookHandler struct {
	logger *slog.Logger
	client *paystack.Client
	svc    *payouts.WebhookService
}

func NewWebhookHandler(logger *slog.Logger, client *paystack.Client, svc *payouts.WebhookService) *WebhookHandler {
	return &WebhookHandler{logger: logger, client: client, svc: svc}
}

// POST /webhooks/paystack
// Raw body signature check first; a mismatch is 401 and nothing is stored.
func (h *WebhookHandler) Paystack(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"received": false, "error": "invalid body"})
		return
	}

	if !h.client.VerifySignature(c.GetHeader("x-paystack-signature"), body) {
		h.logger.Warn("paystack webhook signature mismatch", "client_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"received": false, "error": "invalid signature"})
		return
	}

	var ev paystack.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"received": false, "error": "invalid payload"})
		return
	}

	if err := h.svc.Handle(c.Request.Context(), ev, body); err != nil {
		// 500 so Paystack redelivers
		h.logger.Error("paystack webhook apply failed",
			"event", ev.Event, "reference", ev.Data.Reference, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"received": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
