package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
	"github.com/realtravo/realtravo-sub000/internal/modules/users"
)

// Scheduler creates scheduled Payout rows. It implements
// bookings.PayoutScheduler.
type Scheduler struct{ db *gorm.DB }

func NewScheduler(db *gorm.DB) *Scheduler { return &Scheduler{db: db} }

// ScheduleForBooking creates the host payout for a new booking, inside the
// materializer's transaction. The materializer only calls this when the host
// has verified bank details.
func (s *Scheduler) ScheduleForBooking(ctx context.Context, tx *gorm.DB, b bookings.Booking) error {
	var host users.User
	if err := tx.WithContext(ctx).First(&host, "id = ?", b.HostID).Error; err != nil {
		return err
	}

	scheduledFor := time.Now()
	if b.PayoutScheduledAt != nil {
		scheduledFor = *b.PayoutScheduledAt
	}

	now := time.Now()
	bookingID := b.ID
	p := Payout{
		ID:            uuid.NewString(),
		RecipientID:   b.HostID,
		RecipientType: RecipientHost,
		BookingID:     &bookingID,
		Amount:        b.HostPayoutAmount,
		Status:        StatusScheduled,
		ScheduledFor:  scheduledFor,
		BankName:      deref(host.BankName),
		BankCode:      paystack.BankCode(deref(host.BankName)),
		AccountNumber: deref(host.AccountNumber),
		AccountName:   deref(host.AccountName),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return tx.WithContext(ctx).Create(&p).Error
}

// ReconcileMissingPayouts creates Payout rows for a host's bookings that were
// settled while bank details were unverified. Run after an admin verifies the
// details; without it those bookings would sit payout_status=scheduled
// forever.
func (s *Scheduler) ReconcileMissingPayouts(ctx context.Context, hostID string) (int, error) {
	var host users.User
	if err := s.db.WithContext(ctx).First(&host, "id = ?", hostID).Error; err != nil {
		return 0, err
	}
	if !host.HasVerifiedBankDetails() {
		return 0, ErrNoVerifiedBankDetails
	}

	var orphaned []bookings.Booking
	err := s.db.WithContext(ctx).
		Where("host_id = ? AND payout_status = ?", hostID, bookings.PayoutScheduled).
		Where("id NOT IN (?)", s.db.Model(&Payout{}).Select("booking_id").Where("booking_id IS NOT NULL")).
		Find(&orphaned).Error
	if err != nil {
		return 0, err
	}

	created := 0
	for _, b := range orphaned {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.ScheduleForBooking(ctx, tx, b)
		})
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
