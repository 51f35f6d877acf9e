package listings

import "time"

// Item categories. These mirror the listing tables a booking can reference.
const (
	TypeTrip           = "trip"
	TypeEvent          = "event"
	TypeHotel          = "hotel"
	TypeAdventurePlace = "adventure_place"
	TypeAttraction     = "attraction"
)

// ValidType reports whether t names a known listing category.
func ValidType(t string) bool {
	switch t {
	case TypeTrip, TypeEvent, TypeHotel, TypeAdventurePlace, TypeAttraction:
		return true
	}
	return false
}

type Trip struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Title     string    `gorm:"type:varchar(255);not null"`
	CreatedBy string    `gorm:"type:char(36);not null;index:ix_trips_created_by"`
	Price     int64     `gorm:"not null"`
	Approved  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Trip) TableName() string { return "trips" }

type Event struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Title     string    `gorm:"type:varchar(255);not null"`
	CreatedBy string    `gorm:"type:char(36);not null;index:ix_events_created_by"`
	Price     int64     `gorm:"not null"`
	Approved  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Event) TableName() string { return "events" }

type Hotel struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Title     string    `gorm:"type:varchar(255);not null"`
	CreatedBy string    `gorm:"type:char(36);not null;index:ix_hotels_created_by"`
	Price     int64     `gorm:"not null"`
	Approved  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Hotel) TableName() string { return "hotels" }

type AdventurePlace struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Title     string    `gorm:"type:varchar(255);not null"`
	CreatedBy string    `gorm:"type:char(36);not null;index:ix_adventure_places_created_by"`
	Price     int64     `gorm:"not null"`
	Approved  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (AdventurePlace) TableName() string { return "adventure_places" }

type Attraction struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Title     string    `gorm:"type:varchar(255);not null"`
	CreatedBy string    `gorm:"type:char(36);not null;index:ix_attractions_created_by"`
	Price     int64     `gorm:"not null"`
	Approved  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Attraction) TableName() string { return "attractions" }
