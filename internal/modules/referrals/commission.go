package referrals

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
	"github.com/realtravo/realtravo-sub000/internal/modules/users"
	"github.com/realtravo/realtravo-sub000/internal/shared/dbx"
)

// CommissionHandler consumes BookingConfirmed events and credits the
// referrer. The original system did this with a database trigger; the handler
// runs inside the materializer's transaction, which keeps the credit atomic
// with the booking.
type CommissionHandler struct {
	logger *slog.Logger
}

func NewCommissionHandler() *CommissionHandler {
	return &CommissionHandler{logger: slog.Default()}
}

func (h *CommissionHandler) SetLogger(l *slog.Logger) { h.logger = l }

// OnBookingConfirmed computes
// commission = total * serviceFee% * commissionRate% and inserts the ledger
// row as immediately payable. Idempotent per booking.
func (h *CommissionHandler) OnBookingConfirmed(ctx context.Context, tx *gorm.DB, ev bookings.BookingConfirmed) error {
	if ev.ReferralTrackingID == nil || *ev.ReferralTrackingID == "" {
		return nil
	}

	var referrer users.User
	err := tx.WithContext(ctx).
		First(&referrer, "referral_code = ?", *ev.ReferralTrackingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.WarnContext(ctx, "referral tracking id matches no user",
				"tracking_id", *ev.ReferralTrackingID, "booking_id", ev.BookingID)
			return nil
		}
		return err
	}

	// Self-referral earns nothing.
	if referrer.ID == ev.HostID {
		return nil
	}

	amount := bookings.Commission(ev.TotalAmount, ev.ServiceFeePct, ev.CommissionPct)
	if amount <= 0 {
		return nil
	}

	now := time.Now()
	c := Commission{
		ID:         uuid.NewString(),
		ReferrerID: referrer.ID,
		BookingID:  ev.BookingID,
		TrackingID: *ev.ReferralTrackingID,
		Amount:     amount,
		Status:     StatusPaid,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(&c).Error; err != nil {
		if dbx.IsDuplicate(err) {
			return nil
		}
		return err
	}

	h.logger.InfoContext(ctx, "referral commission credited",
		"booking_id", ev.BookingID, "referrer_id", referrer.ID, "amount", amount)
	return nil
}
