package bookings

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/modules/listings"
)

func TestSplitFee(t *testing.T) {
	tests := []struct {
		total   int64
		feePct  int
		wantFee int64
	}{
		{1000, 20, 200},
		{1500, 20, 300},
		{999, 20, 200},   // 199.8 rounds up
		{997, 20, 199},   // 199.4 rounds down
		{1, 20, 0},       // 0.2 rounds down
		{3, 50, 2},       // 1.5 rounds up
		{1000, 0, 0},
		{1000, 100, 1000},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%d_at_%d", tc.total, tc.feePct), func(t *testing.T) {
			fee, host := SplitFee(tc.total, tc.feePct)
			assert.Equal(t, tc.wantFee, fee)
			assert.Equal(t, tc.total, fee+host, "split must sum to total exactly")
		})
	}
}

func TestCommission(t *testing.T) {
	// 5% of the 20% fee on 1000 = 10
	assert.Equal(t, int64(10), Commission(1000, 20, 5))
	// 5% of the 20% fee on 1500 = 15
	assert.Equal(t, int64(15), Commission(1500, 20, 5))
	// round-half-up on the fractional case: 999*20*5 = 99900, /10000 = 9.99 -> 10
	assert.Equal(t, int64(10), Commission(999, 20, 5))
	assert.Equal(t, int64(0), Commission(1000, 20, 0))
}

func TestSettingsValidation(t *testing.T) {
	db := settingsTestDB(t)
	ctx := context.Background()

	s := defaultSettings()
	s.TripCommissionRate = 25 // above the 20% fee
	err := SaveSettings(ctx, db, s)
	assert.ErrorIs(t, err, ErrCommissionExceedsFee)

	s = defaultSettings()
	s.HotelServiceFee = 101
	err = SaveSettings(ctx, db, s)
	assert.ErrorIs(t, err, ErrRateOutOfRange)

	s = defaultSettings()
	s.EventServiceFee = 30
	s.EventCommissionRate = 30 // equal is allowed
	require.NoError(t, SaveSettings(ctx, db, s))

	loaded := LoadSettings(ctx, db)
	assert.Equal(t, 30, loaded.EventServiceFee)
	assert.Equal(t, 30, loaded.EventCommissionRate)
}

func TestLoadSettingsDefaults(t *testing.T) {
	db := settingsTestDB(t)

	s := LoadSettings(context.Background(), db)
	fee, commission := s.RatesFor(listings.TypeTrip)
	assert.Equal(t, DefaultServiceFeePct, fee)
	assert.Equal(t, DefaultCommissionPct, commission)

	// Unknown category falls back to the defaults too.
	fee, commission = s.RatesFor("submarine")
	assert.Equal(t, DefaultServiceFeePct, fee)
	assert.Equal(t, DefaultCommissionPct, commission)
}

func settingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&ReferralSettings{}))
	return db
}
