package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/gateway/mpesa"
	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	"github.com/realtravo/realtravo-sub000/internal/http/middleware"
	"github.com/realtravo/realtravo-sub000/internal/http/validation"
	"github.com/realtravo/realtravo-sub000/internal/modules/payments"
	"github.com/realtravo/realtravo-sub000/internal/shared/apperr"
)

// PaymentHandlers owns the initiation and status endpoints.
type PaymentHandlers struct {
	svc    *payments.Service
	poller *payments.Poller
}

func NewPaymentHandlers(svc *payments.Service, poller *payments.Poller) *PaymentHandlers {
	return &PaymentHandlers{svc: svc, poller: poller}
}

type bookingInput struct {
	ItemID   string `json:"item_id" binding:"required"`
	ItemType string `json:"item_type" binding:"required"`

	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email" binding:"omitempty,email"`
	GuestPhone string `json:"guest_phone"`

	VisitDate *time.Time     `json:"visit_date"`
	Slots     int            `json:"slots"`
	Details   map[string]any `json:"details"`

	ReferralTrackingID *string `json:"referral_tracking_id"`
}

func (in bookingInput) payload(c *gin.Context) payments.BookingPayload {
	p := payments.BookingPayload{
		ItemID:             in.ItemID,
		ItemType:           in.ItemType,
		GuestName:          in.GuestName,
		GuestEmail:         in.GuestEmail,
		GuestPhone:         in.GuestPhone,
		VisitDate:          in.VisitDate,
		Slots:              in.Slots,
		Details:            in.Details,
		ReferralTrackingID: in.ReferralTrackingID,
	}
	if uid, ok := middleware.CurrentUser(c); ok {
		p.UserID = &uid
	}
	return p
}

type initiateSTKInput struct {
	Phone  string `json:"phone" binding:"required"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
	bookingInput
}

// POST /api/payments/mpesa/initiate
func (h *PaymentHandlers) InitiateSTK(c *gin.Context) {
	var in initiateSTKInput
	if err := c.ShouldBindJSON(&in); err != nil {
		errs := validation.FromBindError(err, &in)
		middleware.Fail(c, apperr.InvalidErr("Invalid request body.", errs))
		return
	}

	res, err := h.svc.InitiateSTK(c.Request.Context(), payments.InitiateSTKInput{
		Phone:   in.Phone,
		Amount:  in.Amount,
		Payload: in.payload(c),
	})
	if err != nil {
		middleware.Fail(c, mapPaymentErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checkout_request_id": res.CheckoutRequestID,
		"merchant_request_id": res.MerchantRequestID,
		"customer_message":    res.CustomerMessage,
	})
}

type initiateCardInput struct {
	Email  string `json:"email" binding:"required,email"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
	bookingInput
}

// POST /api/payments/card/initiate
func (h *PaymentHandlers) InitiateCard(c *gin.Context) {
	var in initiateCardInput
	if err := c.ShouldBindJSON(&in); err != nil {
		errs := validation.FromBindError(err, &in)
		middleware.Fail(c, apperr.InvalidErr("Invalid request body.", errs))
		return
	}

	res, err := h.svc.InitiateCard(c.Request.Context(), payments.InitiateCardInput{
		Email:   in.Email,
		Amount:  in.Amount,
		Payload: in.payload(c),
	})
	if err != nil {
		middleware.Fail(c, mapPaymentErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reference":         res.Reference,
		"access_code":       res.AccessCode,
		"authorization_url": res.AuthorizationURL,
	})
}

// POST /api/payments/free
func (h *PaymentHandlers) CreateFree(c *gin.Context) {
	var in bookingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		errs := validation.FromBindError(err, &in)
		middleware.Fail(c, apperr.InvalidErr("Invalid request body.", errs))
		return
	}

	res, err := h.svc.CreateFreeBooking(c.Request.Context(), in.payload(c))
	if err != nil {
		middleware.Fail(c, mapPaymentErr(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"booking_id":   res.BookingID,
		"checkout_ref": res.CheckoutRef,
	})
}

// GET /api/payments/:reference/status
// Long-polls until the payment resolves or the poll window elapses.
func (h *PaymentHandlers) Status(c *gin.Context) {
	reference := c.Param("reference")

	if _, err := h.svc.Get(c.Request.Context(), reference); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Unknown payment reference."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	res, err := h.poller.Poll(c.Request.Context(), reference)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	out := gin.H{"status": string(res.Outcome)}
	if res.Receipt != "" {
		out["receipt"] = res.Receipt
	}
	if res.BookingID != "" {
		out["booking_id"] = res.BookingID
	}
	c.JSON(http.StatusOK, out)
}

func mapPaymentErr(err error) error {
	switch {
	case errors.Is(err, payments.ErrInvalidAmount):
		return apperr.InvalidErr("Amount must be greater than zero.", nil)
	case errors.Is(err, payments.ErrItemTypeInvalid):
		return apperr.InvalidErr("Unknown item type.", nil)
	case errors.Is(err, mpesa.ErrRateLimited), errors.Is(err, paystack.ErrRateLimited):
		return apperr.RateLimitedErr("The payment provider is busy. Try again shortly.")
	case errors.Is(err, mpesa.ErrUnavailable), errors.Is(err, paystack.ErrUnavailable):
		return apperr.UnavailableErr("The payment provider is unavailable.", err)
	default:
		return apperr.Wrap(err)
	}
}
