package payments_test

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/gateway/mpesa"
	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
	"github.com/realtravo/realtravo-sub000/internal/modules/listings"
	"github.com/realtravo/realtravo-sub000/internal/modules/payments"
	"github.com/realtravo/realtravo-sub000/internal/modules/payouts"
	"github.com/realtravo/realtravo-sub000/internal/modules/referrals"
	"github.com/realtravo/realtravo-sub000/internal/modules/users"
)

type fakeSTK struct {
	pushResp  mpesa.STKPushResponse
	pushErr   error
	queryResp mpesa.STKQueryResponse
	queryErr  error
	queries   int
}

func (f *fakeSTK) STKPush(ctx context.Context, in mpesa.STKPushRequest) (mpesa.STKPushResponse, error) {
	return f.pushResp, f.pushErr
}

func (f *fakeSTK) STKQuery(ctx context.Context, checkoutRequestID string) (mpesa.STKQueryResponse, error) {
	f.queries++
	return f.queryResp, f.queryErr
}

type fakeCard struct {
	initResp   paystack.InitializeData
	initErr    error
	verifyResp paystack.VerifyData
	verifyErr  error
}

func (f *fakeCard) InitializeTransaction(ctx context.Context, in paystack.InitializeRequest) (paystack.InitializeData, error) {
	return f.initResp, f.initErr
}

func (f *fakeCard) VerifyTransaction(ctx context.Context, reference string) (paystack.VerifyData, error) {
	return f.verifyResp, f.verifyErr
}

type env struct {
	db           *gorm.DB
	materializer *bookings.Materializer
	hostID       string
	tripID       string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&users.User{},
		&listings.Trip{},
		&payments.PendingPayment{},
		&bookings.Booking{},
		&bookings.ReferralSettings{},
		&payouts.Payout{},
		&payouts.TransferRecipient{},
		&payouts.GatewayEvent{},
		&referrals.Commission{},
	))

	bank := "Equity Bank"
	acct := "0123456789"
	name := "Jane Host"
	code := "RTHOST00001"
	host := users.User{
		ID:            uuid.NewString(),
		Email:         "host@example.com",
		PasswordHash:  []byte("x"),
		Name:          name,
		Role:          users.RoleHost,
		ReferralCode:  &code,
		BankName:      &bank,
		AccountNumber: &acct,
		AccountName:   &name,
		BankVerified:  true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, db.Create(&host).Error)

	trip := listings.Trip{
		ID:        uuid.NewString(),
		Title:     "Maasai Mara Safari",
		CreatedBy: host.ID,
		Price:     1500,
		Approved:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, db.Create(&trip).Error)

	dispatcher := bookings.NewDispatcher(referrals.NewCommissionHandler())
	materializer := bookings.NewMaterializer(payouts.NewScheduler(db), dispatcher)

	return &env{db: db, materializer: materializer, hostID: host.ID, tripID: trip.ID}
}

func (e *env) pendingMpesa(t *testing.T, ref string, amount int64) payments.PendingPayment {
	t.Helper()
	payload := payments.BookingPayload{
		ItemID:        e.tripID,
		ItemType:      listings.TypeTrip,
		GuestName:     "John Guest",
		GuestEmail:    "guest@example.com",
		GuestPhone:    "254712345678",
		Slots:         2,
		PaymentMethod: "mpesa",
	}
	raw, err := payload.Marshal()
	require.NoError(t, err)

	now := time.Now()
	pp := payments.PendingPayment{
		ID:          uuid.NewString(),
		CheckoutRef: ref,
		Gateway:     payments.GatewayMpesa,
		Amount:      amount,
		Status:      payments.StatusPending,
		PayloadJSON: raw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, e.db.Create(&pp).Error)
	return pp
}

func successCallback(ref string, amount int64, receipt string) mpesa.StkCallback {
	var cb mpesa.StkCallback
	cb.CheckoutRequestID = ref
	cb.ResultCode = 0
	cb.ResultDesc = "The service request is processed successfully."
	cb.CallbackMetadata.Item = []mpesa.CallbackItem{
		{Name: "Amount", Value: float64(amount)},
		{Name: "MpesaReceiptNumber", Value: receipt},
		{Name: "PhoneNumber", Value: float64(254712345678)},
	}
	return cb
}

func TestMpesaCallbackConfirmsAndMaterializes(t *testing.T) {
	e := newEnv(t)
	svc := payments.NewConfirmService(e.db, &fakeCard{}, e.materializer)
	ctx := context.Background()

	e.pendingMpesa(t, "ws_CO_1001", 1500)

	res, err := svc.HandleMpesaCallback(ctx, successCallback("ws_CO_1001", 1500, "QGH7XYZ12"))
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeCompleted, res.Outcome)
	assert.Equal(t, "QGH7XYZ12", res.Receipt)
	require.NotEmpty(t, res.BookingID)

	var pp payments.PendingPayment
	require.NoError(t, e.db.First(&pp, "checkout_ref = ?", "ws_CO_1001").Error)
	assert.Equal(t, payments.StatusCompleted, pp.Status)
	require.NotNil(t, pp.ReceiptNumber)
	assert.Equal(t, "QGH7XYZ12", *pp.ReceiptNumber)

	var b bookings.Booking
	require.NoError(t, e.db.First(&b, "id = ?", res.BookingID).Error)
	assert.Equal(t, int64(1500), b.TotalAmount)
	assert.Equal(t, int64(300), b.ServiceFeeAmount) // 20% default
	assert.Equal(t, int64(1200), b.HostPayoutAmount)
	assert.Equal(t, e.hostID, b.HostID)
	assert.Equal(t, bookings.StatusConfirmed, b.Status)
	assert.Equal(t, bookings.PayoutScheduled, b.PayoutStatus)

	// Host has verified bank details, so a payout row exists already.
	var payout payouts.Payout
	require.NoError(t, e.db.First(&payout, "booking_id = ?", b.ID).Error)
	assert.Equal(t, payouts.StatusScheduled, payout.Status)
	assert.Equal(t, int64(1200), payout.Amount)
	assert.Equal(t, e.hostID, payout.RecipientID)
}

func TestMpesaCallbackRedeliveryIsIdempotent(t *testing.T) {
	e := newEnv(t)
	svc := payments.NewConfirmService(e.db, &fakeCard{}, e.materializer)
	ctx := context.Background()

	e.pendingMpesa(t, "ws_CO_1002", 1500)
	cb := successCallback("ws_CO_1002", 1500, "QGH7XYZ12")

	first, err := svc.HandleMpesaCallback(ctx, cb)
	require.NoError(t, err)
	second, err := svc.HandleMpesaCallback(ctx, cb)
	require.NoError(t, err)

	assert.Equal(t, payments.OutcomeDuplicate, second.Outcome)
	assert.Equal(t, first.BookingID, second.BookingID)

	var count int64
	require.NoError(t, e.db.Model(&bookings.Booking{}).
		Where("checkout_ref = ?", "ws_CO_1002").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMpesaCallbackFailureKeepsNoBooking(t *testing.T) {
	e := newEnv(t)
	svc := payments.NewConfirmService(e.db, &fakeCard{}, e.materializer)
	ctx := context.Background()

	e.pendingMpesa(t, "ws_CO_1003", 1500)

	var cb mpesa.StkCallback
	cb.CheckoutRequestID = "ws_CO_1003"
	cb.ResultCode = 1032
	cb.ResultDesc = "Request cancelled by user"

	res, err := svc.HandleMpesaCallback(ctx, cb)
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeFailed, res.Outcome)

	var pp payments.PendingPayment
	require.NoError(t, e.db.First(&pp, "checkout_ref = ?", "ws_CO_1003").Error)
	assert.Equal(t, payments.StatusFailed, pp.Status)
	require.NotNil(t, pp.ResultCode)
	assert.Equal(t, "1032", *pp.ResultCode)

	var count int64
	require.NoError(t, e.db.Model(&bookings.Booking{}).Count(&count).Error)
	assert.Zero(t, count)

	// A late success signal for the failed row is dropped, not applied.
	late, err := svc.HandleMpesaCallback(ctx, successCallback("ws_CO_1003", 1500, "QGH7XYZ12"))
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeDuplicate, late.Outcome)

	require.NoError(t, e.db.First(&pp, "checkout_ref = ?", "ws_CO_1003").Error)
	assert.Equal(t, payments.StatusFailed, pp.Status)
}

func TestMpesaCallbackUnknownReference(t *testing.T) {
	e := newEnv(t)
	svc := payments.NewConfirmService(e.db, &fakeCard{}, e.materializer)

	res, err := svc.HandleMpesaCallback(context.Background(),
		successCallback("ws_CO_nope", 500, "RECEIPT"))
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeUnknown, res.Outcome)
}

func TestMpesaCallbackGatewayAmountWins(t *testing.T) {
	e := newEnv(t)
	svc := payments.NewConfirmService(e.db, &fakeCard{}, e.materializer)
	ctx := context.Background()

	// Initiated for 1500, gateway confirms 1000.
	e.pendingMpesa(t, "ws_CO_1004", 1500)

	res, err := svc.HandleMpesaCallback(ctx, successCallback("ws_CO_1004", 1000, "QAB1CDE99"))
	require.NoError(t, err)
	require.Equal(t, payments.OutcomeCompleted, res.Outcome)

	var b bookings.Booking
	require.NoError(t, e.db.First(&b, "id = ?", res.BookingID).Error)
	assert.Equal(t, int64(1000), b.TotalAmount)
	assert.Equal(t, int64(200), b.ServiceFeeAmount)
	assert.Equal(t, int64(800), b.HostPayoutAmount)
}

func TestVerifyCardFailedCharge(t *testing.T) {
	e := newEnv(t)
	card := &fakeCard{
		verifyResp: paystack.VerifyData{
			Status:          "failed",
			Reference:       "rt_card1",
			Amount:          150000, // minor units
			GatewayResponse: "Declined",
		},
	}
	svc := payments.NewConfirmService(e.db, card, e.materializer)
	ctx := context.Background()

	payload := payments.BookingPayload{
		ItemID:        e.tripID,
		ItemType:      listings.TypeTrip,
		GuestName:     "Card Guest",
		GuestEmail:    "card@example.com",
		PaymentMethod: "paystack",
	}
	raw, err := payload.Marshal()
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, e.db.Create(&payments.PendingPayment{
		ID:          uuid.NewString(),
		CheckoutRef: "rt_card1",
		Gateway:     payments.GatewayPaystack,
		Amount:      1500,
		Status:      payments.StatusPending,
		PayloadJSON: raw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}).Error)

	out, err := svc.VerifyCard(ctx, "rt_card1")
	require.NoError(t, err)
	assert.False(t, out.IsSuccessful)
	assert.Equal(t, "failed", out.Status)
	assert.Equal(t, int64(1500), out.Amount)
	assert.Equal(t, "Card Guest", out.GuestName)

	var pp payments.PendingPayment
	require.NoError(t, e.db.First(&pp, "checkout_ref = ?", "rt_card1").Error)
	assert.Equal(t, payments.StatusFailed, pp.Status)

	var count int64
	require.NoError(t, e.db.Model(&bookings.Booking{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestVerifyCardSuccess(t *testing.T) {
	e := newEnv(t)
	card := &fakeCard{
		verifyResp: paystack.VerifyData{
			Status:          "success",
			Reference:       "rt_card2",
			Amount:          150000,
			Channel:         "card",
			Currency:        "KES",
			GatewayResponse: "Successful",
		},
	}
	svc := payments.NewConfirmService(e.db, card, e.materializer)
	ctx := context.Background()

	payload := payments.BookingPayload{
		ItemID:        e.tripID,
		ItemType:      listings.TypeTrip,
		GuestName:     "Card Guest",
		GuestEmail:    "card@example.com",
		PaymentMethod: "paystack",
	}
	raw, err := payload.Marshal()
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, e.db.Create(&payments.PendingPayment{
		ID:          uuid.NewString(),
		CheckoutRef: "rt_card2",
		Gateway:     payments.GatewayPaystack,
		Amount:      1500,
		Status:      payments.StatusPending,
		PayloadJSON: raw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}).Error)

	out, err := svc.VerifyCard(ctx, "rt_card2")
	require.NoError(t, err)
	assert.True(t, out.IsSuccessful)
	require.NotEmpty(t, out.BookingID)

	var b bookings.Booking
	require.NoError(t, e.db.First(&b, "id = ?", out.BookingID).Error)
	assert.Equal(t, int64(1500), b.TotalAmount)
	assert.Equal(t, "paystack", b.PaymentMethod)
}

func TestFreeBookingMaterializesImmediately(t *testing.T) {
	e := newEnv(t)
	svc := payments.NewService(e.db, &fakeSTK{}, &fakeCard{}, e.materializer)

	res, err := svc.CreateFreeBooking(context.Background(), payments.BookingPayload{
		ItemID:     e.tripID,
		ItemType:   listings.TypeTrip,
		GuestName:  "Freeloader",
		GuestEmail: "free@example.com",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.BookingID)

	var b bookings.Booking
	require.NoError(t, e.db.First(&b, "id = ?", res.BookingID).Error)
	assert.Equal(t, int64(0), b.TotalAmount)
	assert.Equal(t, bookings.PaymentPaid, b.PaymentStatus)
	assert.Equal(t, "free", b.PaymentMethod)
}
