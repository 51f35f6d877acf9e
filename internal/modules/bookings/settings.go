package bookings

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/modules/listings"
)

// Defaults used when no settings row exists.
const (
	DefaultServiceFeePct = 20
	DefaultCommissionPct = 5
)

var (
	ErrCommissionExceedsFee = errors.New("commission rate must not exceed service fee rate")
	ErrRateOutOfRange       = errors.New("rates must be between 0 and 100")
)

// ReferralSettings is a singleton row of per-category service-fee and
// commission percentages. Admin-editable; commission never exceeds the
// service fee for a category, so a referrer's cut never eats into the host's
// payout.
type ReferralSettings struct {
	ID int `gorm:"primaryKey"`

	TripServiceFee     int `gorm:"not null;default:20" json:"trip_service_fee"`
	TripCommissionRate int `gorm:"not null;default:5" json:"trip_commission_rate"`

	EventServiceFee     int `gorm:"not null;default:20" json:"event_service_fee"`
	EventCommissionRate int `gorm:"not null;default:5" json:"event_commission_rate"`

	HotelServiceFee     int `gorm:"not null;default:20" json:"hotel_service_fee"`
	HotelCommissionRate int `gorm:"not null;default:5" json:"hotel_commission_rate"`

	AdventureServiceFee     int `gorm:"not null;default:20" json:"adventure_service_fee"`
	AdventureCommissionRate int `gorm:"not null;default:5" json:"adventure_commission_rate"`

	AttractionServiceFee     int `gorm:"not null;default:20" json:"attraction_service_fee"`
	AttractionCommissionRate int `gorm:"not null;default:5" json:"attraction_commission_rate"`

	UpdatedAt time.Time `gorm:"type:datetime(3);not null" json:"updated_at"`
}

func (ReferralSettings) TableName() string { return "referral_settings" }

// RatesFor returns (serviceFeePct, commissionPct) for an item category.
func (s ReferralSettings) RatesFor(itemType string) (int, int) {
	switch itemType {
	case listings.TypeTrip:
		return s.TripServiceFee, s.TripCommissionRate
	case listings.TypeEvent:
		return s.EventServiceFee, s.EventCommissionRate
	case listings.TypeHotel:
		return s.HotelServiceFee, s.HotelCommissionRate
	case listings.TypeAdventurePlace:
		return s.AdventureServiceFee, s.AdventureCommissionRate
	case listings.TypeAttraction:
		return s.AttractionServiceFee, s.AttractionCommissionRate
	}
	return DefaultServiceFeePct, DefaultCommissionPct
}

func (s ReferralSettings) validate() error {
	pairs := [][2]int{
		{s.TripServiceFee, s.TripCommissionRate},
		{s.EventServiceFee, s.EventCommissionRate},
		{s.HotelServiceFee, s.HotelCommissionRate},
		{s.AdventureServiceFee, s.AdventureCommissionRate},
		{s.AttractionServiceFee, s.AttractionCommissionRate},
	}
	for _, p := range pairs {
		if p[0] < 0 || p[0] > 100 || p[1] < 0 || p[1] > 100 {
			return ErrRateOutOfRange
		}
		if p[1] > p[0] {
			return ErrCommissionExceedsFee
		}
	}
	return nil
}

func defaultSettings() ReferralSettings {
	return ReferralSettings{
		ID:                       1,
		TripServiceFee:           DefaultServiceFeePct,
		TripCommissionRate:       DefaultCommissionPct,
		EventServiceFee:          DefaultServiceFeePct,
		EventCommissionRate:      DefaultCommissionPct,
		HotelServiceFee:          DefaultServiceFeePct,
		HotelCommissionRate:      DefaultCommissionPct,
		AdventureServiceFee:      DefaultServiceFeePct,
		AdventureCommissionRate:  DefaultCommissionPct,
		AttractionServiceFee:     DefaultServiceFeePct,
		AttractionCommissionRate: DefaultCommissionPct,
	}
}

// LoadSettings reads the singleton row, falling back to defaults when none
// exists. It is called at the start of each fee computation rather than
// cached, so admin edits apply to subsequent bookings without a restart.
func LoadSettings(ctx context.Context, db *gorm.DB) ReferralSettings {
	var s ReferralSettings
	if err := db.WithContext(ctx).First(&s, "id = 1").Error; err != nil {
		return defaultSettings()
	}
	return s
}

// SaveSettings upserts the singleton row after validating the per-category
// invariant.
func SaveSettings(ctx context.Context, db *gorm.DB, s ReferralSettings) error {
	if err := s.validate(); err != nil {
		return err
	}
	s.ID = 1
	s.UpdatedAt = time.Now()
	return db.WithContext(ctx).Save(&s).Error
}

// SplitFee computes round-half-up(total * feePct / 100) and the host
// remainder. The two always sum to total exactly.
func SplitFee(total int64, feePct int) (serviceFee, hostPayout int64) {
	serviceFee = (total*int64(feePct) + 50) / 100
	return serviceFee, total - serviceFee
}

// Commission computes the referrer's cut: total * feePct/100 * commissionPct/100,
// rounded half-up at the end.
func Commission(total int64, feePct, commissionPct int) int64 {
	return (total*int64(feePct)*int64(commissionPct) + 5000) / 10000
}
