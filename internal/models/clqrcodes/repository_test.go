package clqrcodes

import (
	"net/url"
	"os"
	"path/filepath"
	"qrcommerce/internal/models/clcatalog"
	"qrcommerce/internal/models/clqrimage"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type trackingOff struct{}

func (trackingOff) TrackingEnabled() bool { return false }

func setupTestDB(t *testing.T) *gorm.DB {
	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// une seule connexion, la base mémoire est propre à chaque connexion
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = testDB.AutoMigrate(&clcatalog.Category{}, &clcatalog.Product{}, &QRCode{}, &Scan{}, &Conversion{})
	require.NoError(t, err)

	return testDB
}

type fixture struct {
	db      *gorm.DB
	repo    *Repository
	catalog *clcatalog.Store
	product *clcatalog.Product
}

func setupFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	catalog := clcatalog.NewStore(db, "https://shop.example.com")
	images, err := clqrimage.NewGenerator(filepath.Join(t.TempDir(), "qr"), "/uploads/qr-codes", clqrimage.Options{})
	require.NoError(t, err)

	cat := &clcatalog.Category{Name: "Mugs"}
	require.NoError(t, catalog.CreateCategory(cat))
	product := &clcatalog.Product{Name: "Mug bleu", CategoryID: &cat.ID, RegularPrice: 12}
	require.NoError(t, catalog.CreateProduct(product))

	return &fixture{
		db:      db,
		repo:    NewRepository(db, catalog, images),
		catalog: catalog,
		product: product,
	}
}

func TestWithQueryArgs(t *testing.T) {
	got := WithQueryArgs("https://shop.example.com/product/mug?color=blue", url.Values{"qr_id": {"7"}, "color": {"red"}})
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "7", u.Query().Get("qr_id"))
	assert.Equal(t, "red", u.Query().Get("color"))
	assert.Equal(t, "/product/mug", u.Path)
}

func TestCreateProductQRCode(t *testing.T) {
	f := setupFixture(t)

	qr, err := f.repo.CreateProductQRCode(f.product.ID, clqrimage.Options{Size: 200})
	require.NoError(t, err)
	assert.Equal(t, TypeProduct, qr.Type)
	assert.Equal(t, StatusActive, qr.Status)
	assert.FileExists(t, qr.FilePath)
	assert.Equal(t, 200, qr.Options().Size)
	require.NotNil(t, qr.CategoryID)

	u, err := url.Parse(qr.Data)
	require.NoError(t, err)
	assert.Equal(t, "/product/mug-bleu", u.Path)
	assert.Equal(t, "product", u.Query().Get("qr_source"))
	assert.Equal(t, "1", u.Query().Get("qr_id"))
	assert.NotEmpty(t, u.Query().Get("qr_timestamp"))

	stored, err := f.repo.Get(qr.ID)
	require.NoError(t, err)
	assert.Equal(t, qr.Data, stored.Data)
	assert.Equal(t, qr.FileURL, stored.FileURL)

	_, err = f.repo.CreateProductQRCode(f.product.ID, clqrimage.Options{})
	assert.True(t, errors.Is(err, ErrDuplicate))

	_, err = f.repo.CreateProductQRCode(999, clqrimage.Options{})
	assert.True(t, errors.Is(err, clcatalog.ErrNotFound))

	_, err = f.repo.CreateProductQRCode(0, clqrimage.Options{})
	assert.Error(t, err)
}

func TestCreateURLQRCode(t *testing.T) {
	f := setupFixture(t)

	qr, err := f.repo.CreateURLQRCode("https://example.org/promo", clqrimage.Options{})
	require.NoError(t, err)
	assert.Equal(t, TypeURL, qr.Type)
	assert.Contains(t, qr.Data, "qr_source=custom")

	_, err = f.repo.CreateURLQRCode("javascript:alert(1)", clqrimage.Options{})
	assert.Error(t, err)

	f.repo.SetTrackingSwitch(trackingOff{})
	qr, err = f.repo.CreateURLQRCode("https://example.org/promo", clqrimage.Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/promo", qr.Data)
}

func TestCreateRemovesRowOnFailure(t *testing.T) {
	f := setupFixture(t)

	_, err := f.repo.Create(NewQRCode{
		Type:    TypeCustom,
		Content: func(id uint) string { return "" },
	})
	assert.Error(t, err)

	count, err := f.repo.CountByStatus("")
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = f.repo.Create(NewQRCode{Type: "poster", Content: func(uint) string { return "x" }})
	assert.Error(t, err)
}

func TestRegenerate(t *testing.T) {
	f := setupFixture(t)

	qr, err := f.repo.CreateProductQRCode(f.product.ID, clqrimage.Options{})
	require.NoError(t, err)
	require.NoError(t, f.repo.IncrementScans(qr.ID))

	regen, err := f.repo.Regenerate(qr.ID)
	require.NoError(t, err)
	assert.Equal(t, qr.ID, regen.ID)
	assert.NotEqual(t, qr.FilePath, regen.FilePath)
	assert.FileExists(t, regen.FilePath)
	_, err = os.Stat(qr.FilePath)
	assert.True(t, os.IsNotExist(err))

	stored, err := f.repo.Get(qr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ScansCount)
	assert.Equal(t, regen.FileURL, stored.FileURL)

	_, err = f.repo.Regenerate(404)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestBulkActions(t *testing.T) {
	f := setupFixture(t)

	a, err := f.repo.CreateProductQRCode(f.product.ID, clqrimage.Options{})
	require.NoError(t, err)
	b, err := f.repo.CreateURLQRCode("https://example.org", clqrimage.Options{})
	require.NoError(t, err)
	ids := []uint{a.ID, b.ID}

	res, err := f.repo.BulkAction(ActionDisable, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Affected)
	_, err = f.repo.GetActive(a.ID)
	assert.True(t, errors.Is(err, ErrInactive))

	res, err = f.repo.BulkAction(ActionEnable, []uint{a.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Affected)

	res, err = f.repo.BulkAction(ActionRegenerate, append(ids, 404))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Affected)
	assert.Equal(t, []uint{404}, res.Failed)

	// scans et conversions supprimés en cascade
	scan := Scan{QRCodeID: a.ID, IPAddress: "1.1.1.1", ScanTime: time.Now()}
	require.NoError(t, f.db.Create(&scan).Error)
	require.NoError(t, f.db.Create(&Conversion{ScanID: scan.ID, QRCodeID: a.ID, OrderID: 1, Revenue: 12, ConversionTime: time.Now()}).Error)

	a, err = f.repo.Get(a.ID)
	require.NoError(t, err)

	res, err = f.repo.BulkAction(ActionDelete, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Affected)

	var scans, conversions int64
	f.db.Model(&Scan{}).Count(&scans)
	f.db.Model(&Conversion{}).Count(&conversions)
	assert.Zero(t, scans)
	assert.Zero(t, conversions)
	_, err = os.Stat(a.FilePath)
	assert.True(t, os.IsNotExist(err))

	_, err = f.repo.BulkAction("archive", ids)
	assert.Error(t, err)
}

func TestCounters(t *testing.T) {
	f := setupFixture(t)
	qr, err := f.repo.CreateProductQRCode(f.product.ID, clqrimage.Options{})
	require.NoError(t, err)

	scan := Scan{QRCodeID: qr.ID, ScanTime: time.Now()}
	require.NoError(t, f.db.Create(&scan).Error)

	require.NoError(t, f.repo.IncrementScans(qr.ID))
	require.NoError(t, f.repo.RecordConversionCounters(qr.ID, scan.ID))

	stored, err := f.repo.Get(qr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ScansCount)
	assert.Equal(t, int64(1), stored.ConversionsCount)

	var got Scan
	require.NoError(t, f.db.First(&got, scan.ID).Error)
	assert.True(t, got.Converted)
}
