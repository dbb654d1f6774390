package clsettings

import (
	"qrcommerce/internal/models/clconfig"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, testDB.AutoMigrate(&Setting{}))
	return testDB
}

func testDefaults() Settings {
	cfg := &clconfig.Config{}
	cfg.Tracking.Enabled = true
	cfg.Cleanup.GDPRCompliance = true
	clconfig.ApplyDefaults(cfg)
	return Defaults(cfg)
}

func TestDefaults(t *testing.T) {
	d := testDefaults()
	assert.Equal(t, 300, d.DefaultSize)
	assert.Equal(t, "H", d.DefaultQuality)
	assert.True(t, d.EnableTracking)
	assert.True(t, d.EnableAnalytics)
	assert.Equal(t, 3600, d.CacheDuration)
	assert.Equal(t, 30, d.AutoCleanupDays)
	assert.Equal(t, 100, d.RateLimit)
	assert.True(t, d.GDPRCompliance)
}

func TestSanitize(t *testing.T) {
	got := Sanitize(Settings{
		DefaultSize:      5,
		DefaultQuality:   "Z",
		DefaultColorDark: "blue",
		CacheDuration:    10,
		AutoCleanupDays:  1000,
		RateLimit:        5000,
	})
	assert.Equal(t, 100, got.DefaultSize)
	assert.Equal(t, "H", got.DefaultQuality)
	assert.Equal(t, "#000000", got.DefaultColorDark)
	assert.Equal(t, "#ffffff", got.DefaultColorLight)
	assert.Equal(t, 300, got.CacheDuration)
	assert.Equal(t, 365, got.AutoCleanupDays)
	assert.Equal(t, 1000, got.RateLimit)
}

func TestServiceGetUpdate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, testDefaults())

	assert.True(t, svc.TrackingEnabled())

	var notified Settings
	svc.OnChange(func(s Settings) { notified = s })

	in := svc.Get()
	in.EnableTracking = false
	in.DefaultSize = 450
	saved, err := svc.Update(in)
	require.NoError(t, err)
	assert.Equal(t, 450, saved.DefaultSize)
	assert.Equal(t, saved, notified)
	assert.False(t, svc.TrackingEnabled())

	// second enregistrement, la ligne est remplacée
	in.DefaultQuality = "m"
	_, err = svc.Update(in)
	require.NoError(t, err)

	var count int64
	db.Model(&Setting{}).Count(&count)
	assert.Equal(t, int64(1), count)

	// un nouveau service relit la base
	fresh := NewService(db, testDefaults())
	got := fresh.Get()
	assert.Equal(t, 450, got.DefaultSize)
	assert.Equal(t, "M", got.DefaultQuality)
	assert.False(t, got.EnableTracking)
}
