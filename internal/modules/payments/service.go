package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/gateway/mpesa"
	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	"github.com/realtravo/realtravo-sub000/internal/modules/listings"
)

// Service initiates charges. It never retries internally: a failed initiation
// surfaces to the caller, and a caller retry produces a new PendingPayment
// under a new reference (idempotency is reference-scoped, not payload-scoped).
type Service struct {
	db           *gorm.DB
	stk          STKGateway
	card         CardGateway
	materializer Materializer
}

func NewService(db *gorm.DB, stk STKGateway, card CardGateway, m Materializer) *Service {
	return &Service{db: db, stk: stk, card: card, materializer: m}
}

type InitiateSTKInput struct {
	Phone   string
	Amount  int64
	Payload BookingPayload
}

type InitiateSTKResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	CustomerMessage   string
}

// InitiateSTK pushes a PIN prompt to the payer's phone and records the
// pending payment under the gateway-issued CheckoutRequestID. The row exists
// before this returns; confirmation arrives later on the callback endpoint.
func (s *Service) InitiateSTK(ctx context.Context, in InitiateSTKInput) (InitiateSTKResult, error) {
	if in.Amount <= 0 {
		return InitiateSTKResult{}, ErrInvalidAmount
	}
	if !listings.ValidType(in.Payload.ItemType) {
		return InitiateSTKResult{}, ErrItemTypeInvalid
	}

	phone := mpesa.NormalizePhone(in.Phone)
	resp, err := s.stk.STKPush(ctx, mpesa.STKPushRequest{
		Phone:            phone,
		Amount:           in.Amount,
		AccountReference: "REALTRAVO",
		Description:      "Realtravo booking",
	})
	if err != nil {
		return InitiateSTKResult{}, err
	}

	payload := in.Payload
	payload.PaymentMethod = "mpesa"
	raw, err := payload.Marshal()
	if err != nil {
		return InitiateSTKResult{}, err
	}

	now := time.Now()
	pp := PendingPayment{
		ID:          uuid.NewString(),
		CheckoutRef: resp.CheckoutRequestID,
		Gateway:     GatewayMpesa,
		PayerPhone:  &phone,
		Amount:      in.Amount,
		Status:      StatusPending,
		PayloadJSON: raw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&pp).Error; err != nil {
		return InitiateSTKResult{}, err
	}

	return InitiateSTKResult{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

type InitiateCardInput struct {
	Email   string
	Amount  int64
	Payload BookingPayload
}

type InitiateCardResult struct {
	Reference        string
	AccessCode       string
	AuthorizationURL string
}

// InitiateCard records a pending payment under a locally generated reference,
// then obtains a Paystack access code for the inline popup. The popup outcome
// is advisory; settlement happens on server-side verify.
func (s *Service) InitiateCard(ctx context.Context, in InitiateCardInput) (InitiateCardResult, error) {
	if in.Amount <= 0 {
		return InitiateCardResult{}, ErrInvalidAmount
	}
	if !listings.ValidType(in.Payload.ItemType) {
		return InitiateCardResult{}, ErrItemTypeInvalid
	}

	payload := in.Payload
	payload.PaymentMethod = "card"
	raw, err := payload.Marshal()
	if err != nil {
		return InitiateCardResult{}, err
	}

	reference := "rt_" + uuid.NewString()
	now := time.Now()
	pp := PendingPayment{
		ID:          uuid.NewString(),
		CheckoutRef: reference,
		Gateway:     GatewayPaystack,
		PayerEmail:  &in.Email,
		Amount:      in.Amount,
		Status:      StatusPending,
		PayloadJSON: raw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&pp).Error; err != nil {
		return InitiateCardResult{}, err
	}

	data, err := s.card.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:     in.Email,
		Amount:    in.Amount * 100, // Paystack wants minor units
		Reference: reference,
		Currency:  "KES",
	})
	if err != nil {
		// The row stays pending as an audit trail; the caller retries with a
		// fresh reference.
		return InitiateCardResult{}, err
	}

	return InitiateCardResult{
		Reference:        data.Reference,
		AccessCode:       data.AccessCode,
		AuthorizationURL: data.AuthorizationURL,
	}, nil
}

type FreeBookingResult struct {
	BookingID   string
	CheckoutRef string
}

// CreateFreeBooking materializes a zero-amount booking immediately, bypassing
// both gateways. A synthetic completed PendingPayment keeps the audit trail
// uniform.
func (s *Service) CreateFreeBooking(ctx context.Context, payload BookingPayload) (FreeBookingResult, error) {
	if !listings.ValidType(payload.ItemType) {
		return FreeBookingResult{}, ErrItemTypeInvalid
	}

	payload.PaymentMethod = "free"
	raw, err := payload.Marshal()
	if err != nil {
		return FreeBookingResult{}, err
	}

	reference := "free_" + uuid.NewString()
	now := time.Now()
	pp := PendingPayment{
		ID:          uuid.NewString(),
		CheckoutRef: reference,
		Gateway:     GatewayFree,
		Amount:      0,
		Status:      StatusCompleted,
		PayloadJSON: raw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var bookingID string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&pp).Error; err != nil {
			return err
		}
		id, err := s.materializer.MaterializeFromPayment(ctx, tx, pp)
		if err != nil {
			return err
		}
		bookingID = id
		return nil
	})
	if err != nil {
		return FreeBookingResult{}, err
	}

	return FreeBookingResult{BookingID: bookingID, CheckoutRef: reference}, nil
}

// Get returns a pending payment by checkout reference.
func (s *Service) Get(ctx context.Context, checkoutRef string) (PendingPayment, error) {
	var pp PendingPayment
	err := s.db.WithContext(ctx).First(&pp, "checkout_ref = ?", checkoutRef).Error
	return pp, err
}
