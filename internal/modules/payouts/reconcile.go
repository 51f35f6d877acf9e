package payouts

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
	"github.com/realtravo/realtravo-sub000/internal/modules/users"
)

// Reconciler sweeps payouts stuck in processing: transfers whose terminal
// webhook never arrived, and claimed rows whose initiate call died before a
// transfer code was persisted. The former are re-queried against the gateway
// and finalized from the fetched status; the latter have no transfer to query
// and are failed outright after the threshold.
type Reconciler struct {
	db         *gorm.DB
	gateway    PayoutGateway
	stuckAfter time.Duration
	notifier   PayoutNotifier
	logger     *slog.Logger
}

func NewReconciler(db *gorm.DB, gw PayoutGateway, stuckAfter time.Duration) *Reconciler {
	if stuckAfter <= 0 {
		stuckAfter = 30 * time.Minute
	}
	return &Reconciler{db: db, gateway: gw, stuckAfter: stuckAfter, logger: slog.Default()}
}

func (r *Reconciler) SetLogger(l *slog.Logger) { r.logger = l }
func (r *Reconciler) SetNotifier(n PayoutNotifier) { r.notifier = n }

type ReconcileResult struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

func (r *Reconciler) Run(ctx context.Context) (ReconcileResult, error) {
	cutoff := time.Now().Add(-r.stuckAfter)

	var stuck []Payout
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", StatusProcessing, cutoff).
		Find(&stuck).Error
	if err != nil {
		return ReconcileResult{}, err
	}

	var out ReconcileResult
	for _, p := range stuck {
		out.Checked++

		if p.TransferCode == nil {
			// Claimed, but the initiate call never got far enough to persist
			// a transfer code. No money can have moved; fail the row so the
			// reserved balance is released.
			r.finalize(ctx, p, StatusFailed, "transfer never initiated (reconciled)")
			out.Failed++
			continue
		}

		transfer, err := r.gateway.FetchTransfer(ctx, *p.TransferCode)
		if err != nil {
			r.logger.WarnContext(ctx, "reconcile fetch failed",
				"payout_id", p.ID, "transfer_code", *p.TransferCode, "err", err)
			continue
		}

		switch transfer.Status {
		case "success":
			r.finalize(ctx, p, StatusCompleted, "")
			out.Completed++
		case "failed", "reversed":
			r.finalize(ctx, p, StatusFailed, "transfer "+transfer.Status+" (reconciled)")
			out.Failed++
		default:
			// Still in flight at the gateway; leave it for the next sweep.
		}
	}
	return out, nil
}

func (r *Reconciler) finalize(ctx context.Context, p Payout, status, reason string) {
	updates := map[string]any{"status": status, "updated_at": time.Now()}
	if reason != "" {
		updates["failure_reason"] = truncate(reason, 250)
	}
	res := r.db.WithContext(ctx).Model(&Payout{}).
		Where("id = ? AND status = ?", p.ID, StatusProcessing).
		Updates(updates)
	if res.Error != nil || res.RowsAffected == 0 {
		return
	}

	if p.BookingID != nil {
		bookingStatus := bookings.PayoutCompleted
		if status == StatusFailed {
			bookingStatus = bookings.PayoutFailed
		}
		r.db.WithContext(ctx).Model(&bookings.Booking{}).
			Where("id = ?", *p.BookingID).
			Updates(map[string]any{"payout_status": bookingStatus, "updated_at": time.Now()})
	}
	r.logger.InfoContext(ctx, "payout reconciled", "payout_id", p.ID, "status", status)

	if status == StatusCompleted && r.notifier != nil {
		var u users.User
		if err := r.db.WithContext(ctx).First(&u, "id = ?", p.RecipientID).Error; err != nil {
			r.logger.WarnContext(ctx, "payout recipient lookup failed",
				"payout_id", p.ID, "err", err)
			return
		}
		r.notifier.SendPayoutCompleted(ctx, u.Email, u.Name, p.Amount, "po_"+p.ID)
	}
}
