package clerrors

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
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
	require.NoError(t, testDB.AutoMigrate(&ErrorLog{}))
	return testDB
}

func TestHandleGenerationError(t *testing.T) {
	h := NewHandler(setupTestDB(t))

	html := h.HandleGenerationError(errors.New("encodage impossible"), RequestInfo{User: "admin", IP: "10.0.0.1", UserAgent: "curl"})
	assert.Equal(t, FallbackHTML, html)

	errs, err := h.RecentErrors(0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].ErrorMessage, "QR Code Generation Error: encodage impossible")
	assert.Equal(t, "admin", errs[0].User)
	assert.Equal(t, "10.0.0.1", errs[0].IPAddress)
}

func TestRecentErrorsOrderAndLimit(t *testing.T) {
	h := NewHandler(setupTestDB(t))
	base := time.Now()

	for i := 0; i < 3; i++ {
		h.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		h.LogError("erreur", RequestInfo{})
	}

	errs, err := h.RecentErrors(2)
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.True(t, errs[0].ErrorTime.After(errs[1].ErrorTime))
}

func TestCleanupOldErrors(t *testing.T) {
	h := NewHandler(setupTestDB(t))

	h.now = func() time.Time { return time.Now().AddDate(0, 0, -40) }
	h.LogError("ancienne", RequestInfo{})
	h.now = time.Now
	h.LogError("récente", RequestInfo{})

	n, err := h.CleanupOldErrors(30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	errs, err := h.RecentErrors(10)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "récente", errs[0].ErrorMessage)
}

func TestInfoFromGin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/admin/api/qrcodes", nil)
	c.Request.Header.Set("User-Agent", "Mozilla/5.0")
	c.Request.Header.Set("X-Real-IP", "203.0.113.5")
	c.Set("username", "admin")

	info := InfoFromGin(c)
	assert.Equal(t, "admin", info.User)
	assert.Equal(t, "203.0.113.5", info.IP)
	assert.Equal(t, "Mozilla/5.0", info.UserAgent)
}
