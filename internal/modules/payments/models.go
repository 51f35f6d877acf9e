package payments

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	GatewayMpesa    = "mpesa"
	GatewayPaystack = "paystack"
	GatewayFree     = "free"
)

// PendingPayment is the durable record keyed by the gateway checkout
// reference. It is created at initiation, mutated only by the confirmation
// receiver (or the poller's direct-query fallback), and never deleted.
type PendingPayment struct {
	ID          string  `gorm:"type:char(36);primaryKey"`
	CheckoutRef string  `gorm:"type:varchar(128);not null;uniqueIndex:ux_pending_payments_checkout_ref"`
	Gateway     string  `gorm:"type:varchar(32);not null"`
	PayerPhone  *string `gorm:"type:varchar(32)"`
	PayerEmail  *string `gorm:"type:varchar(255)"`
	Amount      int64   `gorm:"not null"`
	Status      string  `gorm:"type:varchar(16);not null;index:ix_pending_payments_status"`

	PayloadJSON datatypes.JSON `gorm:"type:json;not null"`

	ResultCode    *string `gorm:"type:varchar(16)"`
	ResultDesc    *string `gorm:"type:varchar(255)"`
	ReceiptNumber *string `gorm:"type:varchar(64)"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (PendingPayment) TableName() string { return "pending_payments" }

// Terminal reports whether the payment has left the pending state. Terminal
// states are never exited.
func (p PendingPayment) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

// BookingPayload is the full booking request serialized into the
// PendingPayment at initiation and materialized once the gateway confirms.
// The amount used at settlement is the gateway-confirmed one, never this.
type BookingPayload struct {
	ItemID   string `json:"item_id"`
	ItemType string `json:"item_type"`

	UserID     *string `json:"user_id,omitempty"`
	GuestName  string  `json:"guest_name,omitempty"`
	GuestEmail string  `json:"guest_email,omitempty"`
	GuestPhone string  `json:"guest_phone,omitempty"`

	VisitDate *time.Time     `json:"visit_date,omitempty"`
	Slots     int            `json:"slots,omitempty"`
	Details   map[string]any `json:"details,omitempty"`

	PaymentMethod      string  `json:"payment_method"`
	ReferralTrackingID *string `json:"referral_tracking_id,omitempty"`
}

func (p BookingPayload) Marshal() (datatypes.JSON, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func (pp PendingPayment) Payload() (BookingPayload, error) {
	var out BookingPayload
	err := json.Unmarshal(pp.PayloadJSON, &out)
	return out, err
}
