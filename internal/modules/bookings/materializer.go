package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/modules/listings"
	"github.com/realtravo/realtravo-sub000/internal/modules/payments"
	"github.com/realtravo/realtravo-sub000/internal/modules/users"
	"github.com/realtravo/realtravo-sub000/internal/shared/dbx"
)

// payoutLeadTime is how far ahead of the visit the host payout is scheduled.
const payoutLeadTime = 48 * time.Hour

// PayoutScheduler creates the scheduled Payout row for a freshly materialized
// booking. Implemented by the payouts module.
type PayoutScheduler interface {
	ScheduleForBooking(ctx context.Context, tx *gorm.DB, b Booking) error
}

// Materializer converts confirmed payments into bookings. It is invoked only
// with a PendingPayment that the gateway has already confirmed; the amount on
// the record is the gateway-confirmed charge, which is authoritative.
type Materializer struct {
	scheduler  PayoutScheduler
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewMaterializer(scheduler PayoutScheduler, dispatcher *Dispatcher) *Materializer {
	return &Materializer{scheduler: scheduler, dispatcher: dispatcher, logger: slog.Default()}
}

func (m *Materializer) SetLogger(l *slog.Logger) { m.logger = l }

// MaterializeFromPayment creates the booking for a confirmed payment, exactly
// once per checkout reference. Duplicate deliveries return the existing
// booking id. Runs inside the caller's transaction.
func (m *Materializer) MaterializeFromPayment(ctx context.Context, tx *gorm.DB, pp payments.PendingPayment) (string, error) {
	// Insert-then-catch-conflict would also work, but the read is needed
	// anyway to return the existing id on redelivery.
	var existing Booking
	err := tx.WithContext(ctx).First(&existing, "checkout_ref = ?", pp.CheckoutRef).Error
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	payload, err := pp.Payload()
	if err != nil {
		return "", err
	}

	hostID, err := listings.HostOf(ctx, tx, payload.ItemType, payload.ItemID)
	if err != nil {
		return "", err
	}

	settings := LoadSettings(ctx, tx)
	feePct, commissionPct := settings.RatesFor(payload.ItemType)

	total := pp.Amount
	serviceFee, hostPayout := SplitFee(total, feePct)

	now := time.Now()
	scheduledAt := now
	if payload.VisitDate != nil && payload.VisitDate.After(now) {
		if t := payload.VisitDate.Add(-payoutLeadTime); t.After(now) {
			scheduledAt = t
		}
	}

	slots := payload.Slots
	if slots < 1 {
		slots = 1
	}

	paymentStatus := PaymentCompleted
	if pp.Gateway == payments.GatewayFree {
		paymentStatus = PaymentPaid
	}

	b := Booking{
		ID:                 uuid.NewString(),
		ItemID:             payload.ItemID,
		ItemType:           payload.ItemType,
		UserID:             payload.UserID,
		GuestName:          payload.GuestName,
		GuestEmail:         payload.GuestEmail,
		GuestPhone:         payload.GuestPhone,
		VisitDate:          payload.VisitDate,
		Slots:              slots,
		TotalAmount:        total,
		ServiceFeeAmount:   serviceFee,
		HostPayoutAmount:   hostPayout,
		Status:             StatusConfirmed,
		PaymentStatus:      paymentStatus,
		PaymentMethod:      payload.PaymentMethod,
		CheckoutRef:        pp.CheckoutRef,
		HostID:             hostID,
		PayoutStatus:       PayoutScheduled,
		PayoutScheduledAt:  &scheduledAt,
		ReferralTrackingID: payload.ReferralTrackingID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if len(payload.Details) > 0 {
		if raw, err := json.Marshal(payload.Details); err == nil {
			b.Details = datatypes.JSON(raw)
		}
	}

	if err := tx.WithContext(ctx).Create(&b).Error; err != nil {
		if dbx.IsDuplicate(err) {
			// Concurrent delivery won the race; converge on its booking.
			var winner Booking
			if ferr := tx.WithContext(ctx).First(&winner, "checkout_ref = ?", pp.CheckoutRef).Error; ferr == nil {
				return winner.ID, nil
			}
		}
		return "", err
	}

	// A Payout row is only created when the host has verified bank details;
	// otherwise the booking stays payout_status=scheduled until verification
	// triggers the reconciliation pass.
	var host users.User
	if err := tx.WithContext(ctx).First(&host, "id = ?", hostID).Error; err == nil && host.HasVerifiedBankDetails() {
		if err := m.scheduler.ScheduleForBooking(ctx, tx, b); err != nil {
			return "", err
		}
	} else {
		m.logger.InfoContext(ctx, "host has no verified bank details, payout deferred",
			"booking_id", b.ID, "host_id", hostID)
	}

	ev := BookingConfirmed{
		BookingID:          b.ID,
		ItemType:           b.ItemType,
		TotalAmount:        b.TotalAmount,
		ServiceFeePct:      feePct,
		CommissionPct:      commissionPct,
		HostID:             hostID,
		GuestName:          b.GuestName,
		GuestEmail:         b.GuestEmail,
		ReferralTrackingID: b.ReferralTrackingID,
	}
	if err := m.dispatcher.Dispatch(ctx, tx, ev); err != nil {
		return "", err
	}

	return b.ID, nil
}
