package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
	"github.com/realtravo/realtravo-sub000/internal/modules/listings"
	"github.com/realtravo/realtravo-sub000/internal/modules/payments"
	"github.com/realtravo/realtravo-sub000/internal/modules/payouts"
	"github.com/realtravo/realtravo-sub000/internal/modules/referrals"
	"github.com/realtravo/realtravo-sub000/internal/modules/users"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
		&users.User{},
		&listings.Trip{},
		&listings.Event{},
		&listings.Hotel{},
		&listings.AdventurePlace{},
		&listings.Attraction{},
		&payments.PendingPayment{},
		&bookings.Booking{},
		&bookings.ReferralSettings{},
		&payouts.Payout{},
		&payouts.TransferRecipient{},
		&payouts.GatewayEvent{},
		&referrals.Commission{},
	)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	fmt.Println("✓ Schema migrated successfully!")
}
