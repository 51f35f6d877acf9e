package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	"github.com/realtravo/realtravo-sub000/internal/modules/payments"
)

type cardGatewayStub struct {
	verifyResp paystack.VerifyData
	verifyErr  error
}

func (s *cardGatewayStub) InitializeTransaction(ctx context.Context, in paystack.InitializeRequest) (paystack.InitializeData, error) {
	return paystack.InitializeData{}, nil
}

func (s *cardGatewayStub) VerifyTransaction(ctx context.Context, reference string) (paystack.VerifyData, error) {
	return s.verifyResp, s.verifyErr
}

type materializerStub struct{ bookingID string }

func (m materializerStub) MaterializeFromPayment(ctx context.Context, tx *gorm.DB, pp payments.PendingPayment) (string, error) {
	return m.bookingID, nil
}

func cardVerifyRouter(t *testing.T, card *cardGatewayStub) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&payments.PendingPayment{}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	confirm := payments.NewConfirmService(db, card, materializerStub{bookingID: "bk_1"})
	confirm.SetLogger(logger)
	h := NewCallbackHandlers(logger, confirm)

	r := gin.New()
	r.POST("/api/payments/card/verify", h.VerifyCard)
	return r, db
}

func seedCardPayment(t *testing.T, db *gorm.DB, reference string, amount int64) {
	t.Helper()
	payload, err := payments.BookingPayload{
		ItemID:        uuid.NewString(),
		ItemType:      "trip",
		GuestName:     "Guest",
		GuestEmail:    "guest@example.com",
		Slots:         1,
		PaymentMethod: "paystack",
	}.Marshal()
	require.NoError(t, err)

	email := "guest@example.com"
	pp := payments.PendingPayment{
		ID:          uuid.NewString(),
		CheckoutRef: reference,
		Gateway:     payments.GatewayPaystack,
		PayerEmail:  &email,
		Amount:      amount,
		Status:      payments.StatusPending,
		PayloadJSON: payload,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, db.Create(&pp).Error)
}

func postVerify(r *gin.Engine, reference string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(gin.H{"reference": reference})
	req := httptest.NewRequest(http.MethodPost, "/api/payments/card/verify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVerifyCardSuccessEnvelope(t *testing.T) {
	card := &cardGatewayStub{verifyResp: paystack.VerifyData{
		Status:    "success",
		Reference: "rt_env1",
		Amount:    150000,
		Channel:   "card",
		Currency:  "KES",
	}}
	r, db := cardVerifyRouter(t, card)
	seedCardPayment(t, db, "rt_env1", 1500)

	w := postVerify(r, "rt_env1")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Status       string `json:"status"`
			Reference    string `json:"reference"`
			Amount       int64  `json:"amount"`
			IsSuccessful bool   `json:"isSuccessful"`
			BookingID    string `json:"bookingId"`
			GuestName    string `json:"guestName"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "success", body.Data.Status)
	assert.Equal(t, "rt_env1", body.Data.Reference)
	assert.Equal(t, int64(1500), body.Data.Amount)
	assert.True(t, body.Data.IsSuccessful)
	assert.Equal(t, "bk_1", body.Data.BookingID)
	assert.Equal(t, "Guest", body.Data.GuestName)
}

func TestVerifyCardFailedEnvelope(t *testing.T) {
	card := &cardGatewayStub{verifyResp: paystack.VerifyData{
		Status:          "failed",
		Reference:       "rt_env2",
		Amount:          150000,
		GatewayResponse: "Declined",
	}}
	r, db := cardVerifyRouter(t, card)
	seedCardPayment(t, db, "rt_env2", 1500)

	w := postVerify(r, "rt_env2")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Status       string `json:"status"`
			IsSuccessful bool   `json:"isSuccessful"`
			BookingID    string `json:"bookingId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "failed", body.Data.Status)
	assert.False(t, body.Data.IsSuccessful)
	assert.Empty(t, body.Data.BookingID)
}
