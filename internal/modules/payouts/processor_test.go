package payouts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
	"github.com/realtravo/realtravo-sub000/internal/modules/listings"
	"github.com/realtravo/realtravo-sub000/internal/modules/payments"
	"github.com/realtravo/realtravo-sub000/internal/modules/payouts"
	"github.com/realtravo/realtravo-sub000/internal/modules/referrals"
	"github.com/realtravo/realtravo-sub000/internal/modules/users"
)

type fakeTransferGateway struct {
	recipientErr error
	transferErr  map[string]error // keyed by reference, nil entry means success
	fetchResp    map[string]paystack.TransferData

	recipients int
	transfers  []paystack.TransferRequest
}

func (f *fakeTransferGateway) CreateTransferRecipient(ctx context.Context, in paystack.RecipientRequest) (paystack.RecipientData, error) {
	if f.recipientErr != nil {
		return paystack.RecipientData{}, f.recipientErr
	}
	f.recipients++
	return paystack.RecipientData{RecipientCode: "RCP_test1"}, nil
}

func (f *fakeTransferGateway) InitiateTransfer(ctx context.Context, in paystack.TransferRequest) (paystack.TransferData, error) {
	f.transfers = append(f.transfers, in)
	if err := f.transferErr[in.Reference]; err != nil {
		return paystack.TransferData{}, err
	}
	return paystack.TransferData{
		TransferCode: "TRF_" + in.Reference,
		Reference:    in.Reference,
		Status:       "pending",
	}, nil
}

func (f *fakeTransferGateway) FetchTransfer(ctx context.Context, transferCode string) (paystack.TransferData, error) {
	if d, ok := f.fetchResp[transferCode]; ok {
		return d, nil
	}
	return paystack.TransferData{}, errors.New("transfer not found")
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&users.User{},
		&listings.Trip{},
		&listings.Event{},
		&listings.Hotel{},
		&listings.AdventurePlace{},
		&listings.Attraction{},
		&payments.PendingPayment{},
		&bookings.Booking{},
		&bookings.ReferralSettings{},
		&payouts.Payout{},
		&payouts.TransferRecipient{},
		&payouts.GatewayEvent{},
		&referrals.Commission{},
	))
	return db
}

func seedHost(t *testing.T, db *gorm.DB, verified bool) users.User {
	t.Helper()
	bank := "Equity Bank"
	acct := "0123456789"
	name := "Jane Host"
	code := "RT" + uuid.NewString()[:10]
	u := users.User{
		ID:            uuid.NewString(),
		Email:         uuid.NewString() + "@example.com",
		PasswordHash:  []byte("x"),
		Name:          name,
		Role:          users.RoleHost,
		ReferralCode:  &code,
		BankName:      &bank,
		AccountNumber: &acct,
		AccountName:   &name,
		BankVerified:  verified,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedBookingWithPayout(t *testing.T, db *gorm.DB, host users.User, amount int64, scheduledFor time.Time) (bookings.Booking, payouts.Payout) {
	t.Helper()
	now := time.Now()
	b := bookings.Booking{
		ID:                uuid.NewString(),
		ItemID:            uuid.NewString(),
		ItemType:          listings.TypeTrip,
		GuestName:         "Guest",
		Slots:             1,
		TotalAmount:       amount + amount/4,
		ServiceFeeAmount:  amount / 4,
		HostPayoutAmount:  amount,
		Status:            bookings.StatusConfirmed,
		PaymentStatus:     bookings.PaymentCompleted,
		PaymentMethod:     "mpesa",
		CheckoutRef:       "ws_CO_" + uuid.NewString(),
		HostID:            host.ID,
		PayoutStatus:      bookings.PayoutScheduled,
		PayoutScheduledAt: &scheduledFor,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, db.Create(&b).Error)

	bookingID := b.ID
	p := payouts.Payout{
		ID:            uuid.NewString(),
		RecipientID:   host.ID,
		RecipientType: payouts.RecipientHost,
		BookingID:     &bookingID,
		Amount:        amount,
		Status:        payouts.StatusScheduled,
		ScheduledFor:  scheduledFor,
		BankName:      *host.BankName,
		BankCode:      paystack.BankCode(*host.BankName),
		AccountNumber: *host.AccountNumber,
		AccountName:   *host.AccountName,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, db.Create(&p).Error)
	return b, p
}

func TestProcessScheduledInitiatesDueTransfers(t *testing.T) {
	db := testDB(t)
	host := seedHost(t, db, true)
	gw := &fakeTransferGateway{}
	processor := payouts.NewProcessor(db, gw, 50)
	ctx := context.Background()

	due, duePayout := seedBookingWithPayout(t, db, host, 1200, time.Now().Add(-time.Hour))
	future, _ := seedBookingWithPayout(t, db, host, 800, time.Now().Add(48*time.Hour))

	res, err := processor.ProcessScheduled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	require.Len(t, res.Results, 1)
	assert.Equal(t, duePayout.ID, res.Results[0].PayoutID)
	assert.Equal(t, payouts.StatusProcessing, res.Results[0].Status)

	// Transfer code persisted before any webhook can land.
	var p payouts.Payout
	require.NoError(t, db.First(&p, "id = ?", duePayout.ID).Error)
	assert.Equal(t, payouts.StatusProcessing, p.Status)
	require.NotNil(t, p.TransferCode)
	assert.Equal(t, "TRF_po_"+duePayout.ID, *p.TransferCode)

	// Minor units on the wire.
	require.Len(t, gw.transfers, 1)
	assert.Equal(t, int64(120000), gw.transfers[0].Amount)

	var b bookings.Booking
	require.NoError(t, db.First(&b, "id = ?", due.ID).Error)
	assert.Equal(t, bookings.PayoutProcessing, b.PayoutStatus)

	// The future payout was not touched.
	require.NoError(t, db.First(&b, "id = ?", future.ID).Error)
	assert.Equal(t, bookings.PayoutScheduled, b.PayoutStatus)
}

func TestProcessScheduledContinuesPastFailures(t *testing.T) {
	db := testDB(t)
	host := seedHost(t, db, true)
	ctx := context.Background()

	bad, badPayout := seedBookingWithPayout(t, db, host, 500, time.Now().Add(-2*time.Hour))
	good, goodPayout := seedBookingWithPayout(t, db, host, 700, time.Now().Add(-time.Hour))

	gw := &fakeTransferGateway{
		transferErr: map[string]error{"po_" + badPayout.ID: paystack.ErrUnavailable},
	}
	processor := payouts.NewProcessor(db, gw, 50)

	res, err := processor.ProcessScheduled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)

	var p payouts.Payout
	require.NoError(t, db.First(&p, "id = ?", badPayout.ID).Error)
	assert.Equal(t, payouts.StatusFailed, p.Status)
	require.NotNil(t, p.FailureReason)

	require.NoError(t, db.First(&p, "id = ?", goodPayout.ID).Error)
	assert.Equal(t, payouts.StatusProcessing, p.Status)

	var b bookings.Booking
	require.NoError(t, db.First(&b, "id = ?", bad.ID).Error)
	assert.Equal(t, bookings.PayoutFailed, b.PayoutStatus)
	require.NoError(t, db.First(&b, "id = ?", good.ID).Error)
	assert.Equal(t, bookings.PayoutProcessing, b.PayoutStatus)
}

func TestProcessScheduledIsIdempotentPerRun(t *testing.T) {
	db := testDB(t)
	host := seedHost(t, db, true)
	gw := &fakeTransferGateway{}
	processor := payouts.NewProcessor(db, gw, 50)
	ctx := context.Background()

	seedBookingWithPayout(t, db, host, 1000, time.Now().Add(-time.Hour))

	first, err := processor.ProcessScheduled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Processed)

	// Row is processing now; a second run claims nothing.
	second, err := processor.ProcessScheduled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)
	assert.Len(t, gw.transfers, 1)
}

func TestRecipientCacheReused(t *testing.T) {
	db := testDB(t)
	host := seedHost(t, db, true)
	gw := &fakeTransferGateway{}
	processor := payouts.NewProcessor(db, gw, 50)
	ctx := context.Background()

	seedBookingWithPayout(t, db, host, 500, time.Now().Add(-2*time.Hour))
	seedBookingWithPayout(t, db, host, 600, time.Now().Add(-time.Hour))

	_, err := processor.ProcessScheduled(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, gw.recipients, "second payout reuses the cached recipient")
	assert.Len(t, gw.transfers, 2)
}

func TestMarkReadyBookings(t *testing.T) {
	db := testDB(t)
	host := seedHost(t, db, false) // no verified bank details, no payout row
	gw := &fakeTransferGateway{}
	processor := payouts.NewProcessor(db, gw, 50)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(48 * time.Hour)
	now := time.Now()

	dueBooking := bookings.Booking{
		ID: uuid.NewString(), ItemID: uuid.NewString(), ItemType: listings.TypeTrip,
		Slots: 1, TotalAmount: 1000, ServiceFeeAmount: 200, HostPayoutAmount: 800,
		Status: bookings.StatusConfirmed, PaymentStatus: bookings.PaymentCompleted,
		PaymentMethod: "mpesa", CheckoutRef: "ws_CO_ready1", HostID: host.ID,
		PayoutStatus: bookings.PayoutScheduled, PayoutScheduledAt: &past,
		CreatedAt: now, UpdatedAt: now,
	}
	futureBooking := bookings.Booking{
		ID: uuid.NewString(), ItemID: uuid.NewString(), ItemType: listings.TypeTrip,
		Slots: 1, TotalAmount: 1000, ServiceFeeAmount: 200, HostPayoutAmount: 800,
		Status: bookings.StatusConfirmed, PaymentStatus: bookings.PaymentCompleted,
		PaymentMethod: "mpesa", CheckoutRef: "ws_CO_ready2", HostID: host.ID,
		PayoutStatus: bookings.PayoutScheduled, PayoutScheduledAt: &future,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.Create(&dueBooking).Error)
	require.NoError(t, db.Create(&futureBooking).Error)

	_, err := processor.ProcessScheduled(context.Background())
	require.NoError(t, err)

	var b bookings.Booking
	require.NoError(t, db.First(&b, "id = ?", dueBooking.ID).Error)
	assert.Equal(t, bookings.PayoutReady, b.PayoutStatus)

	require.NoError(t, db.First(&b, "id = ?", futureBooking.ID).Error)
	assert.Equal(t, bookings.PayoutScheduled, b.PayoutStatus)
}
