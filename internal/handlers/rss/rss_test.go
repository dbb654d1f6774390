package handlers_rss

import (
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"qrcommerce/internal/models/clapp"
	"qrcommerce/internal/models/clcatalog"
	"qrcommerce/internal/models/clconfig"
	"qrcommerce/internal/models/clrss"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRouter(t *testing.T) (*gin.Engine, *clapp.App) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(clapp.Models()...))

	conf := &clconfig.Config{
		Site:   clconfig.SiteConfig{Name: "Boutique", Description: "La **meilleure** boutique", URL: "https://shop.example.com"},
		QRCode: clconfig.QRCodeConfig{UploadsPath: filepath.Join(t.TempDir(), "qr")},
	}
	clconfig.ApplyDefaults(conf)
	app, err := clapp.New(conf, db, nil)
	require.NoError(t, err)
	app.Version = "1.0.0"

	h := NewRssHandler(app)
	r := gin.New()
	r.GET("/feed", h.Feed)
	r.GET("/feed/:category", h.Feed)
	return r, app
}

func TestFeed(t *testing.T) {
	r, app := setupRouter(t)

	cat := &clcatalog.Category{Name: "Papeterie"}
	require.NoError(t, app.Catalog.CreateCategory(cat))
	notebook := &clcatalog.Product{Name: "Carnet", CategoryID: &cat.ID, RegularPrice: 8, Description: "Un carnet *ligné*"}
	require.NoError(t, app.Catalog.CreateProduct(notebook))
	require.NoError(t, app.Catalog.CreateProduct(&clcatalog.Product{Name: "Brouillon", Status: "draft"}))
	require.NoError(t, app.Catalog.CreateProduct(&clcatalog.Product{Name: "Poster", RegularPrice: 20}))
	_, err := app.QRCodes.CreateProductQRCode(notebook.ID, app.Images.Defaults())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/feed", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/rss+xml; charset=utf-8", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "<?xml"))

	var feed clrss.RSS
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &feed))
	assert.Equal(t, "La meilleure boutique", feed.Channel.Description)
	assert.Equal(t, "qrcommerce v1.0.0", feed.Channel.Generator)
	require.Len(t, feed.Channel.Items, 2)

	item := feed.Channel.Items[0]
	assert.Equal(t, "Carnet", item.Title)
	assert.Equal(t, "https://shop.example.com/product/carnet", item.Link)
	assert.Equal(t, "Un carnet ligné", item.Description)
	assert.Equal(t, "Papeterie", item.Category)
	require.NotNil(t, item.Enclosure)
	assert.Equal(t, "image/png", item.Enclosure.Type)
	assert.True(t, strings.HasPrefix(item.Enclosure.URL, "https://shop.example.com/uploads/qr-codes/"))
	assert.Positive(t, item.Enclosure.Length)
	assert.Nil(t, feed.Channel.Items[1].Enclosure)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/feed/papeterie", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var byCategory clrss.RSS
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &byCategory))
	assert.Len(t, byCategory.Channel.Items, 1)
	assert.Equal(t, "Boutique - Papeterie", byCategory.Channel.Title)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/feed/inconnue", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnclosureMissingFile(t *testing.T) {
	assert.Nil(t, clrss.Enclosure(filepath.Join(t.TempDir(), "absent.png"), "/x.png"))
}
