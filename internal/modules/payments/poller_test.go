package payments_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtravo/realtravo-sub000/internal/gateway/mpesa"
	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
	"github.com/realtravo/realtravo-sub000/internal/modules/payments"
)

const (
	pollInterval = 5 * time.Millisecond
	pollTimeout  = 30 * time.Millisecond
)

func TestPollReturnsCompletedOnceCallbackLands(t *testing.T) {
	e := newEnv(t)
	confirm := payments.NewConfirmService(e.db, &fakeCard{}, e.materializer)
	poller := payments.NewPoller(e.db, &fakeSTK{}, confirm, pollInterval, time.Second)
	ctx := context.Background()

	e.pendingMpesa(t, "ws_CO_poll1", 1500)

	// Callback lands while the poller is watching.
	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = confirm.HandleMpesaCallback(ctx, successCallback("ws_CO_poll1", 1500, "QGH7XYZ12"))
	}()

	res, err := poller.Poll(ctx, "ws_CO_poll1")
	require.NoError(t, err)
	assert.Equal(t, payments.PollCompleted, res.Outcome)
	assert.Equal(t, "QGH7XYZ12", res.Receipt)
}

func TestPollTimeoutLeavesRowPending(t *testing.T) {
	e := newEnv(t)
	confirm := payments.NewConfirmService(e.db, &fakeCard{}, e.materializer)
	stk := &fakeSTK{queryErr: errors.New("connection refused")}
	poller := payments.NewPoller(e.db, stk, confirm, pollInterval, pollTimeout)
	ctx := context.Background()

	e.pendingMpesa(t, "ws_CO_poll2", 1500)

	res, err := poller.Poll(ctx, "ws_CO_poll2")
	require.NoError(t, err)
	assert.Equal(t, payments.PollTimeout, res.Outcome)
	assert.Equal(t, 1, stk.queries, "exactly one direct query on timeout")

	// Timeout is a UX verdict, not a payment verdict: nothing was mutated.
	var pp payments.PendingPayment
	require.NoError(t, e.db.First(&pp, "checkout_ref = ?", "ws_CO_poll2").Error)
	assert.Equal(t, payments.StatusPending, pp.Status)

	var count int64
	require.NoError(t, e.db.Model(&bookings.Booking{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPollDirectQuerySettlesFailure(t *testing.T) {
	e := newEnv(t)
	confirm := payments.NewConfirmService(e.db, &fakeCard{}, e.materializer)
	stk := &fakeSTK{queryResp: mpesa.STKQueryResponse{
		ResultCode: "1032",
		ResultDesc: "Request cancelled by user",
	}}
	poller := payments.NewPoller(e.db, stk, confirm, pollInterval, pollTimeout)

	e.pendingMpesa(t, "ws_CO_poll3", 1500)

	res, err := poller.Poll(context.Background(), "ws_CO_poll3")
	require.NoError(t, err)
	assert.Equal(t, payments.PollFailed, res.Outcome)

	var pp payments.PendingPayment
	require.NoError(t, e.db.First(&pp, "checkout_ref = ?", "ws_CO_poll3").Error)
	assert.Equal(t, payments.StatusFailed, pp.Status)
}

func TestPollDirectQueryIsRateLimitedPerReference(t *testing.T) {
	e := newEnv(t)
	confirm := payments.NewConfirmService(e.db, &fakeCard{}, e.materializer)
	stk := &fakeSTK{queryErr: errors.New("connection refused")}
	poller := payments.NewPoller(e.db, stk, confirm, pollInterval, pollTimeout)
	ctx := context.Background()

	e.pendingMpesa(t, "ws_CO_poll4", 1500)

	first, err := poller.Poll(ctx, "ws_CO_poll4")
	require.NoError(t, err)
	assert.Equal(t, payments.PollTimeout, first.Outcome)

	// Second poll within the query gap: no second paid query goes out.
	second, err := poller.Poll(ctx, "ws_CO_poll4")
	require.NoError(t, err)
	assert.Equal(t, payments.PollRateLimited, second.Outcome)
	assert.Equal(t, 1, stk.queries)
}

func TestPollUnknownReference(t *testing.T) {
	e := newEnv(t)
	confirm := payments.NewConfirmService(e.db, &fakeCard{}, e.materializer)
	poller := payments.NewPoller(e.db, &fakeSTK{}, confirm, pollInterval, pollTimeout)

	_, err := poller.Poll(context.Background(), "ws_CO_missing")
	assert.ErrorIs(t, err, payments.ErrUnknownReference)
}
