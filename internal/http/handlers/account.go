package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/http/middleware"
	"github.com/realtravo/realtravo-sub000/internal/http/validation"
	"github.com/realtravo/realtravo-sub000/internal/modules/payouts"
	"github.com/realtravo/realtravo-sub000/internal/modules/users"
	"github.com/realtravo/realtravo-sub000/internal/shared/apperr"
)

// AccountHandlers covers the payout-destination endpoints: bank details
// self-service plus the admin verification action.
type AccountHandlers struct {
	logger    *slog.Logger
	users     *users.Service
	scheduler *payouts.Scheduler
}

func NewAccountHandlers(logger *slog.Logger, usersSvc *users.Service, scheduler *payouts.Scheduler) *AccountHandlers {
	return &AccountHandlers{logger: logger, users: usersSvc, scheduler: scheduler}
}

type bankDetailsInput struct {
	BankName      string `json:"bank_name" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
	AccountName   string `json:"account_name" binding:"required"`
}

// PUT /api/account/bank-details
func (h *AccountHandlers) UpdateBankDetails(c *gin.Context) {
	var in bankDetailsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		errs := validation.FromBindError(err, &in)
		middleware.Fail(c, apperr.InvalidErr("Invalid request body.", errs))
		return
	}

	userID, _ := middleware.CurrentUser(c)
	err := h.users.UpdateBankDetails(c.Request.Context(), userID, users.BankDetailsInput{
		BankName:      in.BankName,
		AccountNumber: in.AccountNumber,
		AccountName:   in.AccountName,
	})
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"bank_verified": false})
}

// GET /api/account/me
func (h *AccountHandlers) Me(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)
	u, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            u.ID,
		"email":         u.Email,
		"name":          u.Name,
		"role":          u.Role,
		"referral_code": u.ReferralCode,
		"bank_verified": u.BankVerified,
	})
}

// POST /api/admin/users/:id/verify-bank
// After verification, bookings that settled while details were unverified get
// their payout rows backfilled.
func (h *AccountHandlers) VerifyBank(c *gin.Context) {
	userID := c.Param("id")

	if err := h.users.VerifyBankDetails(c.Request.Context(), userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("User not found or bank details missing."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	created, err := h.scheduler.ReconcileMissingPayouts(c.Request.Context(), userID)
	if err != nil {
		// Verification already committed; the backfill can rerun.
		h.logger.Error("payout backfill after bank verification failed",
			"user_id", userID, "err", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"bank_verified":   true,
		"payouts_created": created,
	})
}
