package payouts

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
	"github.com/realtravo/realtravo-sub000/internal/modules/users"
	"github.com/realtravo/realtravo-sub000/internal/shared/dbx"
)

// PayoutNotifier announces a completed transfer to its recipient. Best-effort;
// implementations must not fail the caller.
type PayoutNotifier interface {
	SendPayoutCompleted(ctx context.Context, email, name string, amount int64, reference string)
}

// WebhookService applies Paystack transfer events. The handler has already
// verified the x-paystack-signature header; this service deduplicates and
// applies. The audit row is committed before the apply so a failed apply
// keeps its process_error; redeliveries retry any event whose processed_at
// is still unset, and terminal payouts never regress.
type WebhookService struct {
	db       *gorm.DB
	notifier PayoutNotifier
	logger   *slog.Logger
}

func NewWebhookService(db *gorm.DB) *WebhookService {
	return &WebhookService{db: db, logger: slog.Default()}
}

func (s *WebhookService) SetLogger(l *slog.Logger) { s.logger = l }
func (s *WebhookService) SetNotifier(n PayoutNotifier) { s.notifier = n }

func (s *WebhookService) Handle(ctx context.Context, ev paystack.WebhookEvent, rawBody []byte) error {
	// Paystack events carry no event id; event type + transfer reference is
	// stable across redeliveries of the same event.
	eventID := ev.Event + ":" + ev.Data.Reference
	if ev.Data.Reference == "" {
		eventID = ev.Event + ":" + ev.Data.TransferCode
	}

	ge := GatewayEvent{
		ID:          uuid.NewString(),
		Gateway:     "paystack",
		EventID:     eventID,
		EventType:   ev.Event,
		PayloadJSON: datatypes.JSON(rawBody),
		ReceivedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&ge).Error; err != nil {
		if !dbx.IsDuplicate(err) {
			return err
		}
		var existing GatewayEvent
		if err := s.db.WithContext(ctx).
			First(&existing, "gateway = ? AND event_id = ?", "paystack", eventID).Error; err != nil {
			return err
		}
		if existing.ProcessedAt != nil {
			s.logger.InfoContext(ctx, "webhook event deduplicated",
				"event_id", eventID, "type", ev.Event)
			return nil
		}
		// Earlier delivery failed to apply; this redelivery retries it.
		ge = existing
	}

	var completed *Payout
	applyErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		switch ev.Event {
		case "transfer.success":
			completed, err = s.applyTransferResult(ctx, tx, ev, StatusCompleted, "")
		case "transfer.failed":
			_, err = s.applyTransferResult(ctx, tx, ev, StatusFailed, "transfer failed")
		case "transfer.reversed":
			_, err = s.applyTransferResult(ctx, tx, ev, StatusFailed, "transfer reversed")
		case "charge.success":
			// Charges settle through the verify endpoint; nothing to do here.
		default:
			s.logger.InfoContext(ctx, "ignoring webhook event", "type", ev.Event)
		}
		return err
	})

	if applyErr != nil {
		// Outside the rolled-back apply transaction so the error survives.
		msg := truncate(applyErr.Error(), 250)
		if err := s.db.WithContext(ctx).Model(&GatewayEvent{}).
			Where("id = ?", ge.ID).
			Updates(map[string]any{"process_error": msg}).Error; err != nil {
			s.logger.ErrorContext(ctx, "recording webhook error failed",
				"event_id", eventID, "err", err)
		}
		s.logger.ErrorContext(ctx, "webhook apply failed",
			"event_id", eventID, "type", ev.Event, "err", msg)
		return applyErr
	}

	processed := time.Now()
	if err := s.db.WithContext(ctx).Model(&GatewayEvent{}).
		Where("id = ?", ge.ID).
		Updates(map[string]any{"processed_at": &processed, "process_error": nil}).Error; err != nil {
		return err
	}

	if completed != nil {
		s.notifyCompleted(ctx, *completed)
	}
	return nil
}

// applyTransferResult finalizes the payout a transfer event refers to. The
// returned payout is non-nil only when this call moved it to completed.
func (s *WebhookService) applyTransferResult(ctx context.Context, tx *gorm.DB, ev paystack.WebhookEvent, status, reason string) (*Payout, error) {
	var p Payout
	q := dbx.LockForUpdate(tx.WithContext(ctx))
	err := q.First(&p, "transfer_code = ? OR transfer_ref = ?", ev.Data.TransferCode, ev.Data.Reference).Error
	if err != nil {
		// Unknown transfer: record the event but don't fail delivery; a
		// transfer initiated outside this system is none of our business.
		s.logger.WarnContext(ctx, "webhook for unknown transfer",
			"transfer_code", ev.Data.TransferCode, "reference", ev.Data.Reference)
		return nil, nil
	}

	if p.Terminal() {
		return nil, nil
	}

	updates := map[string]any{"status": status, "updated_at": time.Now()}
	if reason != "" {
		r := reason
		if ev.Data.Reason != "" {
			r = ev.Data.Reason
		}
		updates["failure_reason"] = truncate(r, 250)
	}
	if err := tx.WithContext(ctx).Model(&Payout{}).
		Where("id = ?", p.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}

	if p.BookingID != nil {
		bookingStatus := bookings.PayoutCompleted
		if status == StatusFailed {
			bookingStatus = bookings.PayoutFailed
		}
		if err := tx.WithContext(ctx).Model(&bookings.Booking{}).
			Where("id = ?", *p.BookingID).
			Updates(map[string]any{"payout_status": bookingStatus, "updated_at": time.Now()}).Error; err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "payout finalized by webhook",
		"payout_id", p.ID, "status", status)
	if status == StatusCompleted {
		return &p, nil
	}
	return nil, nil
}

// notifyCompleted emails the recipient after the finalization committed.
func (s *WebhookService) notifyCompleted(ctx context.Context, p Payout) {
	if s.notifier == nil {
		return
	}
	var u users.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", p.RecipientID).Error; err != nil {
		s.logger.WarnContext(ctx, "payout recipient lookup failed",
			"payout_id", p.ID, "err", err)
		return
	}
	s.notifier.SendPayoutCompleted(ctx, u.Email, u.Name, p.Amount, "po_"+p.ID)
}
