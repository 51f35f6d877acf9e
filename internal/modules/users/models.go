package users

import "time"

const (
	RoleUser  = "user"
	RoleHost  = "host"
	RoleAdmin = "admin"
)

type User struct {
	ID           string  `gorm:"type:char(36);primaryKey"`
	Email        string  `gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash []byte  `gorm:"type:varbinary(72);not null"`
	Name         string  `gorm:"type:varchar(255);not null"`
	Phone        *string `gorm:"type:varchar(32)"`
	Role         string  `gorm:"type:varchar(16);not null;default:user"`
	ReferralCode *string `gorm:"type:varchar(20);uniqueIndex:ux_users_referral_code"`

	// Payout destination. Transfers are only attempted once an admin has
	// verified these details.
	BankName      *string `gorm:"type:varchar(128)"`
	AccountNumber *string `gorm:"type:varchar(64)"`
	AccountName   *string `gorm:"type:varchar(255)"`
	BankVerified  bool    `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (User) TableName() string { return "users" }

// HasVerifiedBankDetails reports whether transfers can be sent to this user.
func (u User) HasVerifiedBankDetails() bool {
	return u.BankVerified &&
		u.BankName != nil && *u.BankName != "" &&
		u.AccountNumber != nil && *u.AccountNumber != "" &&
		u.AccountName != nil && *u.AccountName != ""
}
