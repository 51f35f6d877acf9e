package bookings

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentPaid      = "paid"
)

const (
	PayoutNone       = "none"
	PayoutScheduled  = "scheduled"
	PayoutProcessing = "processing"
	PayoutReady      = "ready"
	PayoutCompleted  = "completed"
	PayoutFailed     = "failed"
)

// Booking is created only by the materializer once a payment is confirmed
// (or immediately for free bookings). The fee split is derived once at
// creation: ServiceFeeAmount + HostPayoutAmount == TotalAmount, always.
// Payout processing mutates only the payout fields; everything else is
// immutable after creation.
type Booking struct {
	ID       string `gorm:"type:char(36);primaryKey"`
	ItemID   string `gorm:"type:char(36);not null;index:ix_bookings_item_id"`
	ItemType string `gorm:"type:varchar(32);not null"`

	UserID     *string `gorm:"type:char(36);index:ix_bookings_user_id"`
	GuestName  string  `gorm:"type:varchar(255)"`
	GuestEmail string  `gorm:"type:varchar(255)"`
	GuestPhone string  `gorm:"type:varchar(32)"`

	VisitDate *time.Time `gorm:"type:datetime(3)"`
	Slots     int        `gorm:"not null;default:1"`

	TotalAmount      int64 `gorm:"not null"`
	ServiceFeeAmount int64 `gorm:"not null"`
	HostPayoutAmount int64 `gorm:"not null"`

	Details datatypes.JSON `gorm:"type:json"`

	Status        string `gorm:"type:varchar(16);not null"`
	PaymentStatus string `gorm:"type:varchar(16);not null"`
	PaymentMethod string `gorm:"type:varchar(16);not null"`

	// One booking per confirmed payment, enforced by the storage layer.
	CheckoutRef string `gorm:"type:varchar(128);not null;uniqueIndex:ux_bookings_checkout_ref"`

	HostID            string     `gorm:"type:char(36);not null;index:ix_bookings_host_id"`
	PayoutStatus      string     `gorm:"type:varchar(16);not null;index:ix_bookings_payout_status"`
	PayoutScheduledAt *time.Time `gorm:"type:datetime(3)"`

	ReferralTrackingID *string `gorm:"type:varchar(64)"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Booking) TableName() string { return "bookings" }
