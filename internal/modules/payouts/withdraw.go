package payouts

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
	"github.com/realtravo/realtravo-sub000/internal/modules/listings"
	"github.com/realtravo/realtravo-sub000/internal/modules/referrals"
	"github.com/realtravo/realtravo-sub000/internal/modules/users"
	"github.com/realtravo/realtravo-sub000/internal/shared/dbx"
)

// WithdrawService handles manual withdrawals: the synchronous variant of the
// recipient+transfer flow, gated by a balance check. The available balance is
// a ledger: credits (ready bookings or paid commissions) minus debits (prior
// non-failed manual payouts). Balance check and payout insert happen in one
// transaction under a lock on the user row, closing the concurrent-withdrawal
// race.
type WithdrawService struct {
	db        *gorm.DB
	processor *Processor
	logger    *slog.Logger
}

func NewWithdrawService(db *gorm.DB, processor *Processor) *WithdrawService {
	return &WithdrawService{db: db, processor: processor, logger: slog.Default()}
}

func (s *WithdrawService) SetLogger(l *slog.Logger) { s.logger = l }

type WithdrawInput struct {
	UserID     string
	Amount     int64
	PayoutType string // host | referrer
}

type WithdrawResult struct {
	PayoutID     string
	Reference    string
	TransferCode string
}

func (s *WithdrawService) Withdraw(ctx context.Context, in WithdrawInput) (WithdrawResult, error) {
	if in.PayoutType != RecipientHost && in.PayoutType != RecipientReferrer {
		return WithdrawResult{}, ErrInvalidWithdrawalType
	}
	if in.Amount <= 0 {
		return WithdrawResult{}, ErrInsufficientBalance
	}

	// Phase 1: reserve the balance by inserting the payout row while holding
	// the user row lock. No gateway call happens unless this commits.
	var payout Payout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u users.User
		if err := dbx.LockForUpdate(tx.WithContext(ctx)).First(&u, "id = ?", in.UserID).Error; err != nil {
			return err
		}
		if !u.HasVerifiedBankDetails() {
			return ErrNoVerifiedBankDetails
		}

		available, err := s.availableBalance(ctx, tx, u.ID, in.PayoutType)
		if err != nil {
			return err
		}
		if in.Amount > available {
			return ErrInsufficientBalance
		}

		now := time.Now()
		payout = Payout{
			ID:            uuid.NewString(),
			RecipientID:   u.ID,
			RecipientType: in.PayoutType,
			Amount:        in.Amount,
			Status:        StatusProcessing,
			ScheduledFor:  now,
			BankName:      deref(u.BankName),
			BankCode:      paystack.BankCode(deref(u.BankName)),
			AccountNumber: deref(u.AccountNumber),
			AccountName:   deref(u.AccountName),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.WithContext(ctx).Create(&payout).Error
	})
	if err != nil {
		return WithdrawResult{}, err
	}

	// Phase 2: recipient + transfer, outside the transaction.
	res := s.processor.processOne(ctx, payout)
	if res.Error != "" && res.Status == StatusFailed {
		// The failed payout row drops out of the debit sum, releasing the
		// reserved balance.
		return WithdrawResult{}, paystack.ErrUnavailable
	}

	s.logger.InfoContext(ctx, "withdrawal initiated",
		"payout_id", payout.ID, "type", in.PayoutType, "amount", in.Amount)
	return WithdrawResult{
		PayoutID:     payout.ID,
		Reference:    "po_" + payout.ID,
		TransferCode: res.TransferCode,
	}, nil
}

// AvailableBalance is the read-only variant used by account endpoints.
func (s *WithdrawService) AvailableBalance(ctx context.Context, userID, payoutType string) (int64, error) {
	return s.availableBalance(ctx, s.db, userID, payoutType)
}

func (s *WithdrawService) availableBalance(ctx context.Context, db *gorm.DB, userID, payoutType string) (int64, error) {
	var credits int64
	switch payoutType {
	case RecipientReferrer:
		// Paid, unwithdrawn commissions.
		err := db.WithContext(ctx).Model(&referrals.Commission{}).
			Where("referrer_id = ? AND status = ?", userID, referrals.StatusPaid).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&credits).Error
		if err != nil {
			return 0, err
		}
	case RecipientHost:
		// Ready bookings across every listing category the caller hosts.
		itemIDs := make([]string, 0)
		for _, t := range listings.AllTypes() {
			ids, err := listings.HostedItemIDs(ctx, db, t, userID)
			if err != nil {
				return 0, err
			}
			itemIDs = append(itemIDs, ids...)
		}
		if len(itemIDs) == 0 {
			return 0, nil
		}
		err := db.WithContext(ctx).Model(&bookings.Booking{}).
			Where("item_id IN ? AND payout_status = ?", itemIDs, bookings.PayoutReady).
			Select("COALESCE(SUM(host_payout_amount), 0)").
			Scan(&credits).Error
		if err != nil {
			return 0, err
		}
	default:
		return 0, ErrInvalidWithdrawalType
	}

	// Debits: manual withdrawals already taken (failed ones return funds).
	var debits int64
	err := db.WithContext(ctx).Model(&Payout{}).
		Where("recipient_id = ? AND recipient_type = ? AND booking_id IS NULL AND status <> ?",
			userID, payoutType, StatusFailed).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&debits).Error
	if err != nil {
		return 0, err
	}

	return credits - debits, nil
}
