package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/realtravo/realtravo-sub000/internal/gateway/mpesa"
	"github.com/realtravo/realtravo-sub000/internal/http/middleware"
	"github.com/realtravo/realtravo-sub000/internal/http/validation"
	"github.com/realtravo/realtravo-sub000/internal/modules/payments"
	"github.com/realtravo/realtravo-sub000/internal/shared/apperr"
)

// CallbackHandlers receives gateway-to-server payment confirmations: the
// Daraja STK callback and the client-triggered card verify.
type CallbackHandlers struct {
	logger  *slog.Logger
	confirm *payments.ConfirmService
}

func NewCallbackHandlers(logger *slog.Logger, confirm *payments.ConfirmService) *CallbackHandlers {
	return &CallbackHandlers{logger: logger, confirm: confirm}
}

// POST /api/payments/mpesa/callback
// Daraja retries on non-200, so the response is 200 for every handled
// outcome, including failed charges and unknown references. Only a
// persistence error returns 500.
func (h *CallbackHandlers) MpesaCallback(c *gin.Context) {
	var env mpesa.CallbackEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		// Unparseable body: acknowledge so Daraja stops retrying garbage.
		h.logger.Warn("mpesa callback unparseable", "err", err)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	cb := env.Body.StkCallback
	res, err := h.confirm.HandleMpesaCallback(c.Request.Context(), cb)
	if err != nil {
		h.logger.Error("mpesa callback apply failed",
			"checkout_request_id", cb.CheckoutRequestID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		return
	}

	if res.Outcome == payments.OutcomeUnknown {
		h.logger.Warn("mpesa callback for unknown reference",
			"checkout_request_id", cb.CheckoutRequestID)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type cardVerifyInput struct {
	Reference string `json:"reference" binding:"required"`
}

// POST /api/payments/card/verify
func (h *CallbackHandlers) VerifyCard(c *gin.Context) {
	var in cardVerifyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		errs := validation.FromBindError(err, &in)
		middleware.Fail(c, apperr.InvalidErr("Invalid request body.", errs))
		return
	}

	res, err := h.confirm.VerifyCard(c.Request.Context(), in.Reference)
	if err != nil {
		middleware.Fail(c, mapPaymentErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": res.IsSuccessful, "data": res})
}
