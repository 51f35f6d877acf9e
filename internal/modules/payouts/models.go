package payouts

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending    = "pending"
	StatusScheduled  = "scheduled"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	RecipientHost     = "host"
	RecipientReferrer = "referrer"
)

// Payout is a transfer owed to a host or referrer. Scheduled rows are created
// by the booking materializer (scheduled_for = visit − 48h); manual
// withdrawals create one with scheduled_for = now and no booking id.
// completed and failed are terminal.
type Payout struct {
	ID            string  `gorm:"type:char(36);primaryKey"`
	RecipientID   string  `gorm:"type:char(36);not null;index:ix_payouts_recipient_id"`
	RecipientType string  `gorm:"type:varchar(16);not null"`
	BookingID     *string `gorm:"type:char(36);index:ix_payouts_booking_id"`

	Amount int64  `gorm:"not null"`
	Status string `gorm:"type:varchar(16);not null;index:ix_payouts_status"`

	ScheduledFor time.Time `gorm:"type:datetime(3);not null;index:ix_payouts_scheduled_for"`

	BankName      string `gorm:"type:varchar(128);not null"`
	BankCode      string `gorm:"type:varchar(32);not null"`
	AccountNumber string `gorm:"type:varchar(64);not null"`
	AccountName   string `gorm:"type:varchar(255);not null"`

	// Set right after a successful initiate call, before any webhook.
	TransferCode *string `gorm:"type:varchar(128);index:ix_payouts_transfer_code"`
	TransferRef  *string `gorm:"type:varchar(128)"`

	FailureReason *string `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Payout) TableName() string { return "payouts" }

func (p Payout) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

// TransferRecipient caches the gateway-side recipient code per user so a
// recipient is registered at most once.
type TransferRecipient struct {
	ID            string    `gorm:"type:char(36);primaryKey"`
	UserID        string    `gorm:"type:char(36);not null;uniqueIndex:ux_transfer_recipients_user_id"`
	RecipientCode string    `gorm:"type:varchar(128);not null"`
	BankCode      string    `gorm:"type:varchar(32);not null"`
	AccountNumber string    `gorm:"type:varchar(64);not null"`
	CreatedAt     time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt     time.Time `gorm:"type:datetime(3);not null"`
}

func (TransferRecipient) TableName() string { return "transfer_recipients" }

// GatewayEvent is the webhook dedupe/audit record: one row per delivered
// event, unique on (gateway, event_id).
type GatewayEvent struct {
	ID          string         `gorm:"type:char(36);primaryKey"`
	Gateway     string         `gorm:"type:varchar(32);not null;uniqueIndex:ux_gateway_events_gateway_event,priority:1"`
	EventID     string         `gorm:"type:varchar(191);not null;uniqueIndex:ux_gateway_events_gateway_event,priority:2"`
	EventType   string         `gorm:"type:varchar(64);not null"`
	PayloadJSON datatypes.JSON `gorm:"type:json;not null"`

	ReceivedAt   time.Time  `gorm:"type:datetime(3);not null"`
	ProcessedAt  *time.Time `gorm:"type:datetime(3)"`
	ProcessError *string    `gorm:"type:varchar(255)"`
}

func (GatewayEvent) TableName() string { return "gateway_events" }
