package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/gateway/mpesa"
	"github.com/realtravo/realtravo-sub000/internal/shared/dbx"
)

// ConfirmOutcome classifies what a confirmation delivery did.
type ConfirmOutcome string

const (
	OutcomeCompleted ConfirmOutcome = "completed"
	OutcomeFailed    ConfirmOutcome = "failed"
	OutcomeDuplicate ConfirmOutcome = "duplicate" // terminal already; treated as success
	OutcomeUnknown   ConfirmOutcome = "unknown"   // no PendingPayment for the reference
)

type ConfirmResult struct {
	Outcome   ConfirmOutcome
	BookingID string
	Receipt   string
}

// ConfirmService applies gateway-sourced confirmations to pending payments
// and materializes bookings. Every path is idempotent: redelivery of a
// byte-identical notification must not create a second booking.
type ConfirmService struct {
	db           *gorm.DB
	card         CardGateway
	materializer Materializer
	logger       *slog.Logger
}

func NewConfirmService(db *gorm.DB, card CardGateway, m Materializer) *ConfirmService {
	return &ConfirmService{db: db, card: card, materializer: m, logger: slog.Default()}
}

func (s *ConfirmService) SetLogger(l *slog.Logger) { s.logger = l }

// HandleMpesaCallback processes a Daraja STK callback. ResultCode 0 means the
// charge succeeded. The handler responds 200 even for failed charges; only a
// persistence error propagates (and becomes a 500 so Daraja redelivers).
func (s *ConfirmService) HandleMpesaCallback(ctx context.Context, cb mpesa.StkCallback) (ConfirmResult, error) {
	ref := cb.CheckoutRequestID
	if ref == "" {
		return ConfirmResult{Outcome: OutcomeUnknown}, nil
	}

	code := strconv.Itoa(cb.ResultCode)
	if cb.ResultCode == 0 {
		receipt := cb.ReceiptNumber()
		confirmedAmount := cb.Amount()
		res, err := s.applySuccess(ctx, ref, code, cb.ResultDesc, receipt, confirmedAmount)
		if err != nil {
			return ConfirmResult{}, err
		}
		res.Receipt = receipt
		return res, nil
	}
	return s.applyFailure(ctx, ref, code, cb.ResultDesc)
}

// VerifyCard re-queries Paystack for the charge outcome and settles the
// pending payment accordingly. The client-side popup "success" event is never
// trusted; this call is the authority.
func (s *ConfirmService) VerifyCard(ctx context.Context, reference string) (CardVerifyResult, error) {
	data, err := s.card.VerifyTransaction(ctx, reference)
	if err != nil {
		return CardVerifyResult{}, err
	}

	out := CardVerifyResult{
		Status:    data.Status,
		Reference: data.Reference,
		Amount:    data.Amount / 100, // minor units from the gateway
		PaidAt:    data.PaidAt,
		Channel:   data.Channel,
		Currency:  data.Currency,
	}

	if data.Status == "success" {
		res, err := s.applySuccess(ctx, reference, "0", data.GatewayResponse, "", data.Amount/100)
		if err != nil {
			return CardVerifyResult{}, err
		}
		out.IsSuccessful = true
		out.BookingID = res.BookingID
	} else {
		if _, err := s.applyFailure(ctx, reference, data.Status, data.GatewayResponse); err != nil {
			return CardVerifyResult{}, err
		}
	}

	s.fillEcho(ctx, reference, &out)
	return out, nil
}

// CardVerifyResult is the verify response contract: gateway fields plus echo
// fields from the stored booking payload.
type CardVerifyResult struct {
	Status       string `json:"status"`
	Reference    string `json:"reference"`
	Amount       int64  `json:"amount"`
	PaidAt       string `json:"paid_at,omitempty"`
	Channel      string `json:"channel,omitempty"`
	Currency     string `json:"currency,omitempty"`
	IsSuccessful bool   `json:"isSuccessful"`
	BookingID    string `json:"bookingId,omitempty"`

	GuestName  string `json:"guestName,omitempty"`
	GuestEmail string `json:"guestEmail,omitempty"`
	ItemID     string `json:"itemId,omitempty"`
	ItemType   string `json:"itemType,omitempty"`
}

func (s *ConfirmService) fillEcho(ctx context.Context, reference string, out *CardVerifyResult) {
	var pp PendingPayment
	if err := s.db.WithContext(ctx).First(&pp, "checkout_ref = ?", reference).Error; err != nil {
		return
	}
	payload, err := pp.Payload()
	if err != nil {
		return
	}
	out.GuestName = payload.GuestName
	out.GuestEmail = payload.GuestEmail
	out.ItemID = payload.ItemID
	out.ItemType = payload.ItemType
}

// applySuccess transitions pending -> completed and materializes the booking
// in the same transaction. A terminal row or an existing booking for the
// reference short-circuits as success.
func (s *ConfirmService) applySuccess(ctx context.Context, ref, resultCode, resultDesc, receipt string, confirmedAmount int64) (ConfirmResult, error) {
	var result ConfirmResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pp PendingPayment
		if err := dbx.LockForUpdate(tx.WithContext(ctx)).
			First(&pp, "checkout_ref = ?", ref).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result = ConfirmResult{Outcome: OutcomeUnknown}
				return nil
			}
			return err
		}

		if pp.Status == StatusFailed {
			// Terminal; a late success signal for a failed row is logged and
			// dropped rather than resurrecting the record.
			s.logger.WarnContext(ctx, "success signal for failed payment ignored",
				"checkout_ref", ref)
			result = ConfirmResult{Outcome: OutcomeDuplicate}
			return nil
		}

		if pp.Status == StatusCompleted {
			// Redelivery. Look up the booking it already produced.
			id, err := s.materializer.MaterializeFromPayment(ctx, tx, pp)
			if err != nil {
				return err
			}
			result = ConfirmResult{Outcome: OutcomeDuplicate, BookingID: id}
			return nil
		}

		now := time.Now()
		updates := map[string]any{
			"status":      StatusCompleted,
			"result_code": resultCode,
			"result_desc": truncate(resultDesc, 250),
			"updated_at":  now,
		}
		if receipt != "" {
			updates["receipt_number"] = receipt
		}
		// The gateway-reported amount is authoritative at settlement time.
		if confirmedAmount > 0 {
			updates["amount"] = confirmedAmount
			pp.Amount = confirmedAmount
		}
		if err := tx.WithContext(ctx).Model(&PendingPayment{}).
			Where("id = ?", pp.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		pp.Status = StatusCompleted
		if receipt != "" {
			r := receipt
			pp.ReceiptNumber = &r
		}

		id, err := s.materializer.MaterializeFromPayment(ctx, tx, pp)
		if err != nil {
			return fmt.Errorf("materialize booking: %w", err)
		}
		result = ConfirmResult{Outcome: OutcomeCompleted, BookingID: id}
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	return result, nil
}

func (s *ConfirmService) applyFailure(ctx context.Context, ref, resultCode, resultDesc string) (ConfirmResult, error) {
	var result ConfirmResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pp PendingPayment
		if err := dbx.LockForUpdate(tx.WithContext(ctx)).
			First(&pp, "checkout_ref = ?", ref).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result = ConfirmResult{Outcome: OutcomeUnknown}
				return nil
			}
			return err
		}

		if pp.Terminal() {
			result = ConfirmResult{Outcome: OutcomeDuplicate}
			return nil
		}

		if err := tx.WithContext(ctx).Model(&PendingPayment{}).
			Where("id = ?", pp.ID).
			Updates(map[string]any{
				"status":      StatusFailed,
				"result_code": resultCode,
				"result_desc": truncate(resultDesc, 250),
				"updated_at":  time.Now(),
			}).Error; err != nil {
			return err
		}
		result = ConfirmResult{Outcome: OutcomeFailed}
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	return result, nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
