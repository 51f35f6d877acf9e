package referrals

import "time"

const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusWithdrawn = "withdrawn"
)

// Commission is one ledger entry in the referrer's payable balance: a
// percentage of the platform's service fee on a tracked booking. At most one
// commission per booking, enforced by the unique index.
type Commission struct {
	ID         string `gorm:"type:char(36);primaryKey"`
	ReferrerID string `gorm:"type:char(36);not null;index:ix_referral_commissions_referrer_id"`
	BookingID  string `gorm:"type:char(36);not null;uniqueIndex:ux_referral_commissions_booking_id"`
	TrackingID string `gorm:"type:varchar(64);not null"`
	Amount     int64  `gorm:"not null"`
	Status     string `gorm:"type:varchar(16);not null"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Commission) TableName() string { return "referral_commissions" }
