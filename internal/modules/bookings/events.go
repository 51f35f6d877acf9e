package bookings

import (
	"context"
	"log/slog"

	"gorm.io/gorm"
)

// BookingConfirmed is emitted by the materializer once per new booking. The
// original system did this with a database trigger; handlers here run inside
// the materializer's transaction, which keeps the same atomicity.
type BookingConfirmed struct {
	BookingID          string
	ItemType           string
	TotalAmount        int64
	ServiceFeePct      int
	CommissionPct      int
	HostID             string
	GuestName          string
	GuestEmail         string
	ReferralTrackingID *string
}

// ConfirmedHandler consumes BookingConfirmed events. tx is the open
// materializer transaction; handlers that touch external systems (email)
// should do so best-effort and never fail the booking.
type ConfirmedHandler interface {
	OnBookingConfirmed(ctx context.Context, tx *gorm.DB, ev BookingConfirmed) error
}

// Dispatcher fans a BookingConfirmed event out to registered handlers.
type Dispatcher struct {
	handlers []ConfirmedHandler
	logger   *slog.Logger
}

func NewDispatcher(handlers ...ConfirmedHandler) *Dispatcher {
	return &Dispatcher{handlers: handlers, logger: slog.Default()}
}

func (d *Dispatcher) SetLogger(l *slog.Logger) { d.logger = l }

func (d *Dispatcher) Register(h ConfirmedHandler) { d.handlers = append(d.handlers, h) }

// Dispatch runs every handler. A handler error is logged but does not stop
// the others; only the commission handler participates in the transaction's
// fate via the returned error.
func (d *Dispatcher) Dispatch(ctx context.Context, tx *gorm.DB, ev BookingConfirmed) error {
	var firstErr error
	for _, h := range d.handlers {
		if err := h.OnBookingConfirmed(ctx, tx, ev); err != nil {
			d.logger.ErrorContext(ctx, "booking confirmed handler failed",
				"booking_id", ev.BookingID, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
