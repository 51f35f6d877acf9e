package handlers

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	"github.com/realtravo/realtravo-sub000/internal/modules/payouts"
)

const webhookSecret = "sk_test_webhook"

func webhookRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&payouts.Payout{}, &payouts.GatewayEvent{}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewWebhookHandler(logger, paystack.NewClient("https://api.paystack.co", webhookSecret), payouts.NewWebhookService(db))

	r := gin.New()
	r.POST("/webhooks/paystack", h.Paystack)
	return r, db
}

func postWebhook(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("x-paystack-signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPaystackWebhookRejectsBadSignature(t *testing.T) {
	r, db := webhookRouter(t)
	body := []byte(`{"event":"transfer.success","data":{"reference":"po_x1"}}`)

	w := postWebhook(r, body, "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWebhook(r, body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Nothing stored on rejection.
	var count int64
	require.NoError(t, db.Model(&payouts.GatewayEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPaystackWebhookAcceptsSignedEvent(t *testing.T) {
	r, db := webhookRouter(t)
	body := []byte(`{"event":"charge.success","data":{"reference":"rt_abc1"}}`)

	w := postWebhook(r, body, paystack.Signature(webhookSecret, body))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	var ge payouts.GatewayEvent
	require.NoError(t, db.First(&ge).Error)
	assert.Equal(t, "charge.success", ge.EventType)
	assert.Equal(t, "charge.success:rt_abc1", ge.EventID)
}

func TestPaystackWebhookRejectsMalformedJSON(t *testing.T) {
	r, db := webhookRouter(t)
	body := []byte(`{not json`)

	w := postWebhook(r, body, paystack.Signature(webhookSecret, body))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	require.NoError(t, db.Model(&payouts.GatewayEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}
