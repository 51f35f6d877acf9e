package payments

import (
	"context"

	"github.com/realtravo/realtravo-sub000/internal/gateway/mpesa"
	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	"gorm.io/gorm"
)

// STKGateway is the slice of the Daraja client this module uses.
type STKGateway interface {
	STKPush(ctx context.Context, in mpesa.STKPushRequest) (mpesa.STKPushResponse, error)
	STKQuery(ctx context.Context, checkoutRequestID string) (mpesa.STKQueryResponse, error)
}

// CardGateway is the slice of the Paystack client this module uses.
type CardGateway interface {
	InitializeTransaction(ctx context.Context, in paystack.InitializeRequest) (paystack.InitializeData, error)
	VerifyTransaction(ctx context.Context, reference string) (paystack.VerifyData, error)
}

// Materializer turns a confirmed PendingPayment into a Booking. Implemented by
// the bookings module; runs inside the caller's transaction so the payment
// update and the booking insert commit together. Must be idempotent per
// checkout reference and return the existing booking id on duplicates.
type Materializer interface {
	MaterializeFromPayment(ctx context.Context, tx *gorm.DB, pp PendingPayment) (bookingID string, err error)
}
