package payouts

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
)

// PayoutGateway is the slice of the Paystack client this module uses.
type PayoutGateway interface {
	CreateTransferRecipient(ctx context.Context, in paystack.RecipientRequest) (paystack.RecipientData, error)
	InitiateTransfer(ctx context.Context, in paystack.TransferRequest) (paystack.TransferData, error)
	FetchTransfer(ctx context.Context, transferCode string) (paystack.TransferData, error)
}

type Processor struct {
	db        *gorm.DB
	gateway   PayoutGateway
	batchSize int
	logger    *slog.Logger
}

func NewProcessor(db *gorm.DB, gw PayoutGateway, batchSize int) *Processor {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Processor{db: db, gateway: gw, batchSize: batchSize, logger: slog.Default()}
}

func (p *Processor) SetLogger(l *slog.Logger) { p.logger = l }

type ItemResult struct {
	PayoutID     string `json:"payout_id"`
	Status       string `json:"status"`
	TransferCode string `json:"transfer_code,omitempty"`
	Error        string `json:"error,omitempty"`
}

type ProcessResult struct {
	Processed int          `json:"processed"`
	Results   []ItemResult `json:"results"`
}

// ProcessScheduled runs one batch: claim due payouts, register recipients,
// initiate transfers. Each payout is independent; one gateway failure marks
// that payout failed and the batch continues. The transfer code is persisted
// immediately after a successful initiate, before any webhook can land.
func (p *Processor) ProcessScheduled(ctx context.Context) (ProcessResult, error) {
	now := time.Now()

	var due []Payout
	err := p.db.WithContext(ctx).
		Where("status IN ? AND scheduled_for <= ?", []string{StatusScheduled, StatusPending}, now).
		Order("scheduled_for ASC").
		Limit(p.batchSize).
		Find(&due).Error
	if err != nil {
		return ProcessResult{}, err
	}

	out := ProcessResult{Results: make([]ItemResult, 0, len(due))}
	for _, payout := range due {
		// Claim: only one concurrent run may move the row to processing.
		claim := p.db.WithContext(ctx).Model(&Payout{}).
			Where("id = ? AND status IN ?", payout.ID, []string{StatusScheduled, StatusPending}).
			Updates(map[string]any{"status": StatusProcessing, "updated_at": time.Now()})
		if claim.Error != nil {
			return out, claim.Error
		}
		if claim.RowsAffected == 0 {
			continue
		}

		res := p.processOne(ctx, payout)
		out.Results = append(out.Results, res)
		out.Processed++
	}

	if err := p.markReadyBookings(ctx, now); err != nil {
		p.logger.ErrorContext(ctx, "marking ready bookings failed", "err", err)
	}

	return out, nil
}

func (p *Processor) processOne(ctx context.Context, payout Payout) ItemResult {
	recipientCode, err := p.ensureRecipient(ctx, payout)
	if err != nil {
		p.fail(ctx, payout, "create recipient: "+err.Error())
		return ItemResult{PayoutID: payout.ID, Status: StatusFailed, Error: err.Error()}
	}

	transfer, err := p.gateway.InitiateTransfer(ctx, paystack.TransferRequest{
		Amount:    payout.Amount * 100, // minor units
		Recipient: recipientCode,
		Reason:    "Realtravo payout",
		Reference: "po_" + payout.ID,
	})
	if err != nil {
		p.fail(ctx, payout, "initiate transfer: "+err.Error())
		return ItemResult{PayoutID: payout.ID, Status: StatusFailed, Error: err.Error()}
	}

	updates := map[string]any{
		"transfer_code": transfer.TransferCode,
		"transfer_ref":  transfer.Reference,
		"updated_at":    time.Now(),
	}
	if err := p.db.WithContext(ctx).Model(&Payout{}).
		Where("id = ?", payout.ID).
		Updates(updates).Error; err != nil {
		p.logger.ErrorContext(ctx, "persisting transfer code failed",
			"payout_id", payout.ID, "transfer_code", transfer.TransferCode, "err", err)
		return ItemResult{PayoutID: payout.ID, Status: StatusProcessing, Error: err.Error()}
	}

	if payout.BookingID != nil {
		p.setBookingPayoutStatus(ctx, *payout.BookingID, bookings.PayoutProcessing)
	}

	p.logger.InfoContext(ctx, "payout transfer initiated",
		"payout_id", payout.ID, "transfer_code", transfer.TransferCode, "amount", payout.Amount)
	return ItemResult{PayoutID: payout.ID, Status: StatusProcessing, TransferCode: transfer.TransferCode}
}

// ensureRecipient returns a cached gateway recipient code for the payout's
// destination, registering one when the cache misses or the destination
// changed.
func (p *Processor) ensureRecipient(ctx context.Context, payout Payout) (string, error) {
	var cached TransferRecipient
	err := p.db.WithContext(ctx).
		First(&cached, "user_id = ?", payout.RecipientID).Error
	if err == nil && cached.BankCode == payout.BankCode && cached.AccountNumber == payout.AccountNumber {
		return cached.RecipientCode, nil
	}

	recipientType := "nuban"
	if payout.BankCode == "MPESA" {
		recipientType = "mobile_money"
	}

	data, gerr := p.gateway.CreateTransferRecipient(ctx, paystack.RecipientRequest{
		Type:          recipientType,
		Name:          payout.AccountName,
		AccountNumber: payout.AccountNumber,
		BankCode:      payout.BankCode,
		Currency:      "KES",
	})
	if gerr != nil {
		return "", gerr
	}

	now := time.Now()
	if err == nil {
		// Destination changed; refresh the cache row.
		p.db.WithContext(ctx).Model(&TransferRecipient{}).
			Where("id = ?", cached.ID).
			Updates(map[string]any{
				"recipient_code": data.RecipientCode,
				"bank_code":      payout.BankCode,
				"account_number": payout.AccountNumber,
				"updated_at":     now,
			})
	} else {
		p.db.WithContext(ctx).Create(&TransferRecipient{
			ID:            uuid.NewString(),
			UserID:        payout.RecipientID,
			RecipientCode: data.RecipientCode,
			BankCode:      payout.BankCode,
			AccountNumber: payout.AccountNumber,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return data.RecipientCode, nil
}

func (p *Processor) fail(ctx context.Context, payout Payout, reason string) {
	if err := p.db.WithContext(ctx).Model(&Payout{}).
		Where("id = ? AND status NOT IN ?", payout.ID, []string{StatusCompleted, StatusFailed}).
		Updates(map[string]any{
			"status":         StatusFailed,
			"failure_reason": truncate(reason, 250),
			"updated_at":     time.Now(),
		}).Error; err != nil {
		p.logger.ErrorContext(ctx, "marking payout failed errored", "payout_id", payout.ID, "err", err)
		return
	}
	if payout.BookingID != nil {
		p.setBookingPayoutStatus(ctx, *payout.BookingID, bookings.PayoutFailed)
	}
	p.logger.WarnContext(ctx, "payout failed", "payout_id", payout.ID, "reason", reason)
}

func (p *Processor) setBookingPayoutStatus(ctx context.Context, bookingID, status string) {
	if err := p.db.WithContext(ctx).Model(&bookings.Booking{}).
		Where("id = ?", bookingID).
		Updates(map[string]any{"payout_status": status, "updated_at": time.Now()}).Error; err != nil {
		p.logger.ErrorContext(ctx, "updating booking payout status failed",
			"booking_id", bookingID, "status", status, "err", err)
	}
}

// markReadyBookings flips due bookings that never got a Payout row (host bank
// details unverified at settlement) to ready, making the funds withdrawable
// manually.
func (p *Processor) markReadyBookings(ctx context.Context, now time.Time) error {
	return p.db.WithContext(ctx).Model(&bookings.Booking{}).
		Where("payout_status = ? AND payout_scheduled_at <= ?", bookings.PayoutScheduled, now).
		Where("id NOT IN (?)", p.db.Model(&Payout{}).Select("booking_id").Where("booking_id IS NOT NULL")).
		Updates(map[string]any{"payout_status": bookings.PayoutReady, "updated_at": now}).Error
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
