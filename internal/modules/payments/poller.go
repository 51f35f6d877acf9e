package payments

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/gateway/mpesa"
)

// PollOutcome distinguishes "we stopped waiting" from "the payment failed"
// and from "the gateway throttled us"; the caller words the user message
// differently for each.
type PollOutcome string

const (
	PollCompleted   PollOutcome = "completed"
	PollFailed      PollOutcome = "failed"
	PollTimeout     PollOutcome = "timeout"
	PollRateLimited PollOutcome = "rate_limited"
)

type PollResult struct {
	Outcome   PollOutcome
	Receipt   string
	BookingID string
}

// Poller watches a pending payment until it leaves the pending state or the
// window elapses. On timeout it makes at most one direct gateway query; that
// path is a paid external API, so queries per reference are spaced out and a
// throttled query surfaces as PollRateLimited rather than a failure.
type Poller struct {
	db       *gorm.DB
	stk      STKGateway
	confirm  *ConfirmService
	interval time.Duration
	timeout  time.Duration

	queryGap  time.Duration
	mu        sync.Mutex
	lastQuery map[string]time.Time
}

func NewPoller(db *gorm.DB, stk STKGateway, confirm *ConfirmService, interval, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Poller{
		db:        db,
		stk:       stk,
		confirm:   confirm,
		interval:  interval,
		timeout:   timeout,
		queryGap:  30 * time.Second,
		lastQuery: make(map[string]time.Time),
	}
}

// Poll blocks until the payment resolves or the window elapses. The timeout is
// a UX cutoff, not a payment cutoff: a callback landing after PollTimeout is
// returned still settles the booking normally.
func (p *Poller) Poll(ctx context.Context, checkoutRef string) (PollResult, error) {
	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()
	tick := time.NewTicker(p.interval)
	defer tick.Stop()

	for {
		res, done, err := p.check(ctx, checkoutRef)
		if err != nil {
			return PollResult{}, err
		}
		if done {
			return res, nil
		}

		select {
		case <-ctx.Done():
			return PollResult{}, ctx.Err()
		case <-deadline.C:
			return p.directQuery(ctx, checkoutRef)
		case <-tick.C:
		}
	}
}

// check reads the stored status once. It never mutates the row.
func (p *Poller) check(ctx context.Context, checkoutRef string) (PollResult, bool, error) {
	var pp PendingPayment
	err := p.db.WithContext(ctx).First(&pp, "checkout_ref = ?", checkoutRef).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PollResult{}, false, ErrUnknownReference
		}
		return PollResult{}, false, err
	}

	switch pp.Status {
	case StatusCompleted:
		res := PollResult{Outcome: PollCompleted}
		if pp.ReceiptNumber != nil {
			res.Receipt = *pp.ReceiptNumber
		}
		return res, true, nil
	case StatusFailed:
		return PollResult{Outcome: PollFailed}, true, nil
	}
	return PollResult{}, false, nil
}

// directQuery is the single timeout fallback against the gateway. The result
// (if any) converges the stored row through the same confirmation paths the
// callback uses; both derive from the same upstream truth.
func (p *Poller) directQuery(ctx context.Context, checkoutRef string) (PollResult, error) {
	if !p.allowQuery(checkoutRef) {
		return PollResult{Outcome: PollRateLimited}, nil
	}

	q, err := p.stk.STKQuery(ctx, checkoutRef)
	if err != nil {
		if errors.Is(err, mpesa.ErrRateLimited) {
			return PollResult{Outcome: PollRateLimited}, nil
		}
		// Gateway unreachable: the payment may still complete out-of-band, so
		// this is a timeout, not a failure, and the row stays untouched.
		return PollResult{Outcome: PollTimeout}, nil
	}

	switch {
	case q.ResultCode == "0":
		res, err := p.confirm.applySuccess(ctx, checkoutRef, q.ResultCode, q.ResultDesc, "", 0)
		if err != nil {
			return PollResult{}, err
		}
		return PollResult{Outcome: PollCompleted, BookingID: res.BookingID}, nil
	case q.ResultCode != "":
		if _, err := p.confirm.applyFailure(ctx, checkoutRef, q.ResultCode, q.ResultDesc); err != nil {
			return PollResult{}, err
		}
		return PollResult{Outcome: PollFailed}, nil
	}

	// Gateway still has no verdict.
	return PollResult{Outcome: PollTimeout}, nil
}

func (p *Poller) allowQuery(checkoutRef string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()

	// Entries outside the gap can never throttle again; drop them so the map
	// doesn't grow with one entry per reference ever polled.
	for ref, last := range p.lastQuery {
		if now.Sub(last) >= p.queryGap {
			delete(p.lastQuery, ref)
		}
	}

	if last, ok := p.lastQuery[checkoutRef]; ok && now.Sub(last) < p.queryGap {
		return false
	}
	p.lastQuery[checkoutRef] = now
	return true
}
