package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	"github.com/realtravo/realtravo-sub000/internal/http/middleware"
	"github.com/realtravo/realtravo-sub000/internal/http/validation"
	"github.com/realtravo/realtravo-sub000/internal/modules/payouts"
	"github.com/realtravo/realtravo-sub000/internal/shared/apperr"
)

// PayoutHandlers fronts the payout processor, manual withdrawals, and the
// stuck-transfer reconciler.
type PayoutHandlers struct {
	processor  *payouts.Processor
	withdraw   *payouts.WithdrawService
	reconciler *payouts.Reconciler
}

func NewPayoutHandlers(processor *payouts.Processor, withdraw *payouts.WithdrawService, reconciler *payouts.Reconciler) *PayoutHandlers {
	return &PayoutHandlers{processor: processor, withdraw: withdraw, reconciler: reconciler}
}

type payoutActionInput struct {
	Action string `json:"action" binding:"required,oneof=process_scheduled withdraw"`

	// withdraw fields
	Amount     int64  `json:"amount"`
	PayoutType string `json:"payout_type"`
}

// POST /api/payouts
// Dispatches on action: process_scheduled runs the batch (admin/cron);
// withdraw moves the caller's available balance out synchronously.
func (h *PayoutHandlers) Action(c *gin.Context) {
	var in payoutActionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		errs := validation.FromBindError(err, &in)
		middleware.Fail(c, apperr.InvalidErr("Invalid request body.", errs))
		return
	}

	switch in.Action {
	case "process_scheduled":
		h.processScheduled(c)
	case "withdraw":
		h.doWithdraw(c, in)
	}
}

func (h *PayoutHandlers) processScheduled(c *gin.Context) {
	if middleware.CurrentRole(c) != "admin" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":      "forbidden",
			"request_id": middleware.GetRequestID(c),
		})
		return
	}

	res, err := h.processor.ProcessScheduled(c.Request.Context())
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": res.Processed,
		"results":   res.Results,
	})
}

func (h *PayoutHandlers) doWithdraw(c *gin.Context, in payoutActionInput) {
	userID, _ := middleware.CurrentUser(c)

	res, err := h.withdraw.Withdraw(c.Request.Context(), payouts.WithdrawInput{
		UserID:     userID,
		Amount:     in.Amount,
		PayoutType: in.PayoutType,
	})
	if err != nil {
		middleware.Fail(c, mapPayoutErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Withdrawal initiated.",
		"reference":     res.Reference,
		"transfer_code": res.TransferCode,
	})
}

// GET /api/payouts/balance?type=host|referrer
func (h *PayoutHandlers) Balance(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	payoutType := c.DefaultQuery("type", payouts.RecipientHost)
	balance, err := h.withdraw.AvailableBalance(c.Request.Context(), userID, payoutType)
	if err != nil {
		middleware.Fail(c, mapPayoutErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"type": payoutType, "available": balance})
}

// POST /api/payouts/reconcile
func (h *PayoutHandlers) Reconcile(c *gin.Context) {
	res, err := h.reconciler.Run(c.Request.Context())
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checked":   res.Checked,
		"completed": res.Completed,
		"failed":    res.Failed,
	})
}

func mapPayoutErr(err error) error {
	switch {
	case errors.Is(err, payouts.ErrInsufficientBalance):
		return apperr.InvalidErr("Requested amount exceeds your available balance.", nil)
	case errors.Is(err, payouts.ErrNoVerifiedBankDetails):
		return apperr.InvalidErr("Add and verify bank details before withdrawing.", nil)
	case errors.Is(err, payouts.ErrInvalidWithdrawalType):
		return apperr.InvalidErr("payout_type must be host or referrer.", nil)
	case errors.Is(err, paystack.ErrRateLimited):
		return apperr.RateLimitedErr("The transfer provider is busy. Try again shortly.")
	case errors.Is(err, paystack.ErrUnavailable):
		return apperr.UnavailableErr("The transfer provider is unavailable.", err)
	default:
		return apperr.Wrap(err)
	}
}
