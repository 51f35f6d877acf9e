package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/http/middleware"
	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
	"github.com/realtravo/realtravo-sub000/internal/shared/apperr"
)

// SettingsHandlers exposes the per-category fee and commission rates.
type SettingsHandlers struct {
	db *gorm.DB
}

func NewSettingsHandlers(db *gorm.DB) *SettingsHandlers {
	return &SettingsHandlers{db: db}
}

// GET /api/admin/referral-settings
func (h *SettingsHandlers) Get(c *gin.Context) {
	s := bookings.LoadSettings(c.Request.Context(), h.db)
	c.JSON(http.StatusOK, s)
}

// PUT /api/admin/referral-settings
// New rates apply to future bookings only; existing bookings keep the split
// computed at materialization.
func (h *SettingsHandlers) Update(c *gin.Context) {
	var in bookings.ReferralSettings
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid request body.", nil))
		return
	}

	if err := bookings.SaveSettings(c.Request.Context(), h.db, in); err != nil {
		if errors.Is(err, bookings.ErrCommissionExceedsFee) {
			middleware.Fail(c, apperr.InvalidErr("Commission rate must not exceed the service fee rate.", nil))
			return
		}
		middleware.Fail(c, mapSettingsErr(err))
		return
	}

	c.JSON(http.StatusOK, bookings.LoadSettings(c.Request.Context(), h.db))
}

func mapSettingsErr(err error) error {
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, bookings.ErrRateOutOfRange) {
		return apperr.InvalidErr("Rates must be between 0 and 100.", nil)
	}
	return apperr.Wrap(err)
}
