package payouts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
	"github.com/realtravo/realtravo-sub000/internal/modules/listings"
	"github.com/realtravo/realtravo-sub000/internal/modules/payouts"
	"github.com/realtravo/realtravo-sub000/internal/modules/referrals"
	"github.com/realtravo/realtravo-sub000/internal/modules/users"
)

// seedReadyEarnings gives the host a trip and a confirmed booking whose payout
// already reached ready, i.e. withdrawable balance.
func seedReadyEarnings(t *testing.T, db *gorm.DB, host users.User, hostAmount int64) bookings.Booking {
	t.Helper()
	now := time.Now()
	trip := listings.Trip{
		ID:        uuid.NewString(),
		Title:     "Maasai Mara Weekend",
		CreatedBy: host.ID,
		Price:     hostAmount + hostAmount/4,
		Approved:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, db.Create(&trip).Error)

	b := bookings.Booking{
		ID:               uuid.NewString(),
		ItemID:           trip.ID,
		ItemType:         listings.TypeTrip,
		GuestName:        "Guest",
		Slots:            1,
		TotalAmount:      hostAmount + hostAmount/4,
		ServiceFeeAmount: hostAmount / 4,
		HostPayoutAmount: hostAmount,
		Status:           bookings.StatusConfirmed,
		PaymentStatus:    bookings.PaymentCompleted,
		PaymentMethod:    "mpesa",
		CheckoutRef:      "ws_CO_" + uuid.NewString(),
		HostID:           host.ID,
		PayoutStatus:     bookings.PayoutReady,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, db.Create(&b).Error)
	return b
}

func seedPaidCommission(t *testing.T, db *gorm.DB, referrerID string, amount int64) {
	t.Helper()
	now := time.Now()
	c := referrals.Commission{
		ID:         uuid.NewString(),
		ReferrerID: referrerID,
		BookingID:  uuid.NewString(),
		TrackingID: "RTTRACK1",
		Amount:     amount,
		Status:     referrals.StatusPaid,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, db.Create(&c).Error)
}

func newWithdrawService(db *gorm.DB, gw *fakeTransferGateway) *payouts.WithdrawService {
	return payouts.NewWithdrawService(db, payouts.NewProcessor(db, gw, 50))
}

func TestWithdrawHostHappyPath(t *testing.T) {
	db := testDB(t)
	gw := &fakeTransferGateway{}
	svc := newWithdrawService(db, gw)
	ctx := context.Background()

	host := seedHost(t, db, true)
	seedReadyEarnings(t, db, host, 1200)

	res, err := svc.Withdraw(ctx, payouts.WithdrawInput{
		UserID:     host.ID,
		Amount:     1000,
		PayoutType: payouts.RecipientHost,
	})
	require.NoError(t, err)
	assert.Equal(t, "po_"+res.PayoutID, res.Reference)
	assert.Equal(t, "TRF_po_"+res.PayoutID, res.TransferCode)

	var p payouts.Payout
	require.NoError(t, db.First(&p, "id = ?", res.PayoutID).Error)
	assert.Equal(t, payouts.StatusProcessing, p.Status)
	assert.Nil(t, p.BookingID, "manual withdrawals are not tied to a booking")
	assert.Equal(t, int64(1000), p.Amount)

	// Wire amount in minor units.
	require.Len(t, gw.transfers, 1)
	assert.Equal(t, int64(100000), gw.transfers[0].Amount)

	// The processing payout now debits the ledger.
	balance, err := svc.AvailableBalance(ctx, host.ID, payouts.RecipientHost)
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance)
}

func TestWithdrawRequiresVerifiedBankDetails(t *testing.T) {
	db := testDB(t)
	svc := newWithdrawService(db, &fakeTransferGateway{})

	host := seedHost(t, db, false)
	seedReadyEarnings(t, db, host, 1200)

	_, err := svc.Withdraw(context.Background(), payouts.WithdrawInput{
		UserID:     host.ID,
		Amount:     100,
		PayoutType: payouts.RecipientHost,
	})
	assert.ErrorIs(t, err, payouts.ErrNoVerifiedBankDetails)
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	db := testDB(t)
	svc := newWithdrawService(db, &fakeTransferGateway{})
	ctx := context.Background()

	host := seedHost(t, db, true)
	seedReadyEarnings(t, db, host, 500)

	_, err := svc.Withdraw(ctx, payouts.WithdrawInput{
		UserID:     host.ID,
		Amount:     501,
		PayoutType: payouts.RecipientHost,
	})
	assert.ErrorIs(t, err, payouts.ErrInsufficientBalance)

	// Nothing reserved on a rejected withdrawal.
	var count int64
	require.NoError(t, db.Model(&payouts.Payout{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWithdrawRejectsNonPositiveAmount(t *testing.T) {
	db := testDB(t)
	svc := newWithdrawService(db, &fakeTransferGateway{})

	host := seedHost(t, db, true)
	_, err := svc.Withdraw(context.Background(), payouts.WithdrawInput{
		UserID:     host.ID,
		Amount:     0,
		PayoutType: payouts.RecipientHost,
	})
	assert.ErrorIs(t, err, payouts.ErrInsufficientBalance)
}

func TestWithdrawInvalidType(t *testing.T) {
	db := testDB(t)
	svc := newWithdrawService(db, &fakeTransferGateway{})

	_, err := svc.Withdraw(context.Background(), payouts.WithdrawInput{
		UserID:     uuid.NewString(),
		Amount:     100,
		PayoutType: "affiliate",
	})
	assert.ErrorIs(t, err, payouts.ErrInvalidWithdrawalType)
}

func TestWithdrawReferrerBalanceFromPaidCommissions(t *testing.T) {
	db := testDB(t)
	gw := &fakeTransferGateway{}
	svc := newWithdrawService(db, gw)
	ctx := context.Background()

	referrer := seedHost(t, db, true)
	seedPaidCommission(t, db, referrer.ID, 60)
	seedPaidCommission(t, db, referrer.ID, 40)

	// Pending commissions do not count.
	pending := referrals.Commission{
		ID:         uuid.NewString(),
		ReferrerID: referrer.ID,
		BookingID:  uuid.NewString(),
		TrackingID: "RTTRACK2",
		Amount:     500,
		Status:     referrals.StatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, db.Create(&pending).Error)

	balance, err := svc.AvailableBalance(ctx, referrer.ID, payouts.RecipientReferrer)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	res, err := svc.Withdraw(ctx, payouts.WithdrawInput{
		UserID:     referrer.ID,
		Amount:     100,
		PayoutType: payouts.RecipientReferrer,
	})
	require.NoError(t, err)

	var p payouts.Payout
	require.NoError(t, db.First(&p, "id = ?", res.PayoutID).Error)
	assert.Equal(t, payouts.RecipientReferrer, p.RecipientType)

	balance, err = svc.AvailableBalance(ctx, referrer.ID, payouts.RecipientReferrer)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestWithdrawFailedTransferReleasesReservation(t *testing.T) {
	db := testDB(t)
	gw := &fakeTransferGateway{transferErr: map[string]error{}}
	svc := newWithdrawService(db, gw)
	ctx := context.Background()

	host := seedHost(t, db, true)
	seedReadyEarnings(t, db, host, 1200)

	// Every transfer attempt fails at the gateway.
	gwDown := errors.New("paystack: 503")
	gw.recipientErr = gwDown

	_, err := svc.Withdraw(ctx, payouts.WithdrawInput{
		UserID:     host.ID,
		Amount:     1000,
		PayoutType: payouts.RecipientHost,
	})
	assert.ErrorIs(t, err, paystack.ErrUnavailable)

	// The reserved row failed, so the balance is intact.
	var p payouts.Payout
	require.NoError(t, db.First(&p, "recipient_id = ?", host.ID).Error)
	assert.Equal(t, payouts.StatusFailed, p.Status)

	balance, err := svc.AvailableBalance(ctx, host.ID, payouts.RecipientHost)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), balance)

	// A retry after recovery succeeds.
	gw.recipientErr = nil
	res, err := svc.Withdraw(ctx, payouts.WithdrawInput{
		UserID:     host.ID,
		Amount:     1000,
		PayoutType: payouts.RecipientHost,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.TransferCode)
}
