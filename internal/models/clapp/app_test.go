package clapp

import (
	"path/filepath"
	"qrcommerce/internal/models/clconfig"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *clconfig.Config {
	dir := t.TempDir()
	conf := &clconfig.Config{
		Database: clconfig.DatabaseConfig{Db: "sqlite", Path: filepath.Join(dir, "qr.db")},
		Site:     clconfig.SiteConfig{Name: "Boutique", URL: "https://shop.example.com"},
		QRCode:   clconfig.QRCodeConfig{UploadsPath: filepath.Join(dir, "uploads")},
		Tracking: clconfig.TrackingConfig{Enabled: true},
	}
	clconfig.ApplyDefaults(conf)
	return conf
}

func TestOpenDatabase(t *testing.T) {
	conf := testConfig(t)
	db, err := OpenDatabase(conf)
	require.NoError(t, err)

	for _, table := range []string{"products", "orders", "qr_codes", "qr_scans", "qr_conversions", "qr_error_logs", "settings"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	conf.Database.Db = "postgres"
	_, err = OpenDatabase(conf)
	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	conf := testConfig(t)
	app, err := Init(conf, "1.2.3", "abc")
	require.NoError(t, err)
	defer app.Close()

	assert.Same(t, app, GetInstance())
	assert.Equal(t, "1.2.3", app.Version)
	assert.Equal(t, "memory", app.Store.Backend())

	// catalogue de démonstration
	products, err := app.Catalog.ListProducts("", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, products)

	qr, err := app.QRCodes.CreateProductQRCode(products[0].ID, app.Images.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 300, qr.Options().Size)
}

func TestSettingsChangePropagates(t *testing.T) {
	conf := testConfig(t)
	db, err := OpenDatabase(conf)
	require.NoError(t, err)
	app, err := New(conf, db, nil)
	require.NoError(t, err)

	s := app.Settings.Get()
	s.DefaultSize = 500
	s.DefaultColorDark = "#112233"
	s.CacheDuration = 600
	s.RateLimit = 30
	_, err = app.Settings.Update(s)
	require.NoError(t, err)

	assert.Equal(t, 500, app.Images.Defaults().Size)
	assert.Equal(t, "#112233", app.Images.Defaults().ColorDark)
	assert.Equal(t, 600*time.Second, app.Cache.Duration())

	_, lctx, err := app.Limiter.Allow(t.Context(), "test", "10.0.0.1")
	require.NoError(t, err)
	assert.EqualValues(t, 30, lctx.Limit)
}

func TestStartDisabled(t *testing.T) {
	conf := testConfig(t)
	db, err := OpenDatabase(conf)
	require.NoError(t, err)
	app, err := New(conf, db, nil)
	require.NoError(t, err)

	assert.NoError(t, app.Start())
	conf.Cleanup.Enabled = true
	assert.NoError(t, app.Start())
	app.Close()
}
