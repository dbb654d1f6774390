package handlers_settings

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"qrcommerce/internal/models/clconfig"
	"qrcommerce/internal/models/clsettings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRouter(t *testing.T) (*gin.Engine, *clsettings.Service) {
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&clsettings.Setting{}))

	conf := &clconfig.Config{}
	clconfig.ApplyDefaults(conf)
	service := clsettings.NewService(db, clsettings.Defaults(conf))

	h := NewSettingsHandler(service)
	r := gin.New()
	r.GET("/settings", h.Get)
	r.PUT("/settings", h.Update)
	return r, service
}

func TestGetSettings(t *testing.T) {
	r, _ := setupRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settings", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var s clsettings.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, 300, s.DefaultSize)
	assert.Equal(t, "H", s.DefaultQuality)
}

func TestUpdateSettings(t *testing.T) {
	r, service := setupRouter(t)

	body := `{"default_size": 5000, "default_quality": "Z", "cache_duration": 120}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	s := service.Get()
	assert.Equal(t, 1000, s.DefaultSize)
	assert.Equal(t, "H", s.DefaultQuality)
	assert.Equal(t, 300, s.CacheDuration)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/settings", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
