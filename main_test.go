package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"qrcommerce/internal/clmiddleware"
	"qrcommerce/internal/models/clanalytics"
	"qrcommerce/internal/models/clapp"
	"qrcommerce/internal/models/clconfig"
	"qrcommerce/internal/models/clcatalog"
	"qrcommerce/internal/models/cllog"
	"testing"

	"github.com/andskur/argon2-hashing"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ============= Setup et Teardown =============

func HashPassword(pass string) (string, error) {
	hash, err := argon2.GenerateFromPassword([]byte(pass), argon2.DefaultParams)
	return string(hash), err
}

func setupTestConfig(t *testing.T) *clconfig.Config {
	hash, err := HashPassword("motdepasse")
	require.NoError(t, err)

	c := &clconfig.Config{
		Database: clconfig.DatabaseConfig{
			Db:   "sqlite",
			Path: ":memory:",
		},
		User: clconfig.UserConfig{
			Login: "admin",
			Hash:  hash,
		},
		Production: false,
		Site:       clconfig.SiteConfig{Name: "Test Boutique", URL: "https://shop.example.com"},
		QRCode:     clconfig.QRCodeConfig{UploadsPath: filepath.Join(t.TempDir(), "qr-codes")},
		Tracking:   clconfig.TrackingConfig{Enabled: true},
		Security:   clconfig.SecurityConfig{WebhookSecret: "whsec_main"},
	}
	clconfig.ApplyDefaults(c)
	cllog.InitLogger(c.Logger, false)
	return c
}

func setupTestApp(t *testing.T) *clapp.App {
	gin.SetMode(gin.TestMode)
	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, testDB.AutoMigrate(clapp.Models()...))

	app, err := clapp.New(setupTestConfig(t), testDB, nil)
	require.NoError(t, err)
	return app
}

func setupTestServer(t *testing.T) (*gin.Engine, *clapp.App) {
	app := setupTestApp(t)
	r := newServer(app.Configuration)
	clmiddleware.InitMiddleware(r, app.Configuration.Production)
	setRoutes(r, app)
	return r, app
}

type testClient struct {
	t      *testing.T
	r      *gin.Engine
	cookie string
}

func (tc *testClient) do(method, target string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(tc.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if tc.cookie != "" {
		req.Header.Set("Cookie", tc.cookie)
	}
	w := httptest.NewRecorder()
	tc.r.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == "qrcommerce" {
			tc.cookie = c.Name + "=" + c.Value
		}
	}
	return w
}

func (tc *testClient) login(pass string) *httptest.ResponseRecorder {
	w := tc.do(http.MethodGet, "/files/captcha", nil)
	require.Equal(tc.t, http.StatusOK, w.Code)
	var captcha struct {
		ID     string `json:"captcha_id"`
		Answer string `json:"answer"`
	}
	require.NoError(tc.t, json.Unmarshal(w.Body.Bytes(), &captcha))

	return tc.do(http.MethodPost, "/admin/login", gin.H{
		"username":       "admin",
		"password":       pass,
		"captcha_id":     captcha.ID,
		"captcha_answer": captcha.Answer,
	})
}

// ============= Tests pour la ligne de commande =============

func TestParseCommandLineArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, o options)
	}{
		{"config", []string{"-config", "qr.yaml"}, false, func(t *testing.T, o options) {
			assert.Equal(t, "qr.yaml", o.configFile)
			assert.False(t, o.report)
		}},
		{"rapport", []string{"-config", "qr.yaml", "-report"}, false, func(t *testing.T, o options) {
			assert.True(t, o.report)
		}},
		{"version sans config", []string{"-version"}, false, func(t *testing.T, o options) {
			assert.True(t, o.displayVersion)
		}},
		{"exemple sans config", []string{"-example"}, false, func(t *testing.T, o options) {
			assert.True(t, o.createExample)
		}},
		{"config manquante", []string{}, true, nil},
		{"option inconnue", []string{"-foo"}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseCommandLineArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, o)
		})
	}
}

// ============= Tests pour la configuration =============

func TestCreateExampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qrcommerce.yaml")
	filename, err := clconfig.CreateExampleConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, filename)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var conf clconfig.Config
	require.NoError(t, yaml.Unmarshal(raw, &conf))
	assert.Equal(t, "sqlite", conf.Database.Db)
	assert.Equal(t, 300, conf.QRCode.DefaultSize)

	// le mot de passe en clair est remplacé par son hash
	loaded, err := clconfig.LoadAndValidate(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.User.Pass)
	require.NotEmpty(t, loaded.User.Hash)
	assert.NoError(t, argon2.CompareHashAndPassword([]byte(loaded.User.Hash), []byte("admin1234")))
	assert.Error(t, argon2.CompareHashAndPassword([]byte(loaded.User.Hash), []byte("mauvais1234")))
	assert.Len(t, loaded.Security.WebhookSecret, 32)
}

// ============= Tests pour le rapport =============

func TestPrintReport(t *testing.T) {
	data := &clanalytics.Data{
		DateRange: clanalytics.DateRange{From: "2025-01-01", To: "2025-01-31"},
		Summary:   clanalytics.Summary{TotalScans: 12, TotalConversions: 3, TotalRevenue: 45.5, ConversionRate: 25},
		TopQRCodes: []clanalytics.QRCodeStat{
			{ID: 4, Type: "product", ProductName: "Mug bleu", Scans: 12, Conversions: 3, Revenue: 45.5},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, data))

	out := buf.String()
	assert.Contains(t, out, "2025-01-01")
	assert.Contains(t, out, "Mug bleu")
	assert.Contains(t, out, "45.50")
	assert.Contains(t, out, "25.00%")
}

// ============= Tests d'intégration =============

func TestAdminRequiresLogin(t *testing.T) {
	r, _ := setupTestServer(t)
	tc := &testClient{t: t, r: r}

	w := tc.do(http.MethodGet, "/admin/api/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = tc.login("mauvais")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestQRCodeWorkflow(t *testing.T) {
	r, app := setupTestServer(t)
	tc := &testClient{t: t, r: r}

	product := &clcatalog.Product{Name: "Sac en toile", RegularPrice: 18}
	require.NoError(t, app.Catalog.CreateProduct(product))

	w := tc.login("motdepasse")
	require.Equal(t, http.StatusOK, w.Code)

	// génération du QR code produit
	w = tc.do(http.MethodPost, "/admin/api/qrcodes/product", gin.H{"product_id": product.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		QR struct {
			ID      uint   `json:"id"`
			FileURL string `json:"file_url"`
		} `json:"qr_code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// l'image est servie en statique
	w = tc.do(http.MethodGet, created.QR.FileURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	// scan depuis la page produit puis commande, terminée par l'administrateur
	w = tc.do(http.MethodGet, fmt.Sprintf("/product/sac-en-toile?qr_id=%d", created.QR.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = tc.do(http.MethodPost, "/api/orders", gin.H{
		"items": []gin.H{{"product_id": product.ID, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order struct {
		Order struct {
			ID     uint   `json:"id"`
			Status string `json:"status"`
		} `json:"order"`
		QRTracked bool `json:"qr_tracked"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, "pending", order.Order.Status)
	assert.True(t, order.QRTracked)

	status := fmt.Sprintf("/orders/%d/status", order.Order.ID)
	w = tc.do(http.MethodPut, "/api"+status, gin.H{"status": "completed"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = tc.do(http.MethodPut, "/admin/api"+status, gin.H{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), `"conversion":null`)

	w = tc.do(http.MethodGet, fmt.Sprintf("/embed/analytics/%d?show=table", created.QR.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sac en toile")

	w = tc.do(http.MethodGet, "/admin/api/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dash struct {
		Stats clanalytics.DashboardStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dash))
	assert.EqualValues(t, 1, dash.Stats.TotalScans)
	assert.EqualValues(t, 1, dash.Stats.TotalConversions)
	assert.Equal(t, 18.0, dash.Stats.TotalRevenue)

	w = tc.do(http.MethodGet, "/admin/api/analytics", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = tc.do(http.MethodPost, "/admin/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = tc.do(http.MethodGet, "/admin/api/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = tc.do(http.MethodGet, "/embed/analytics", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForwardedHeadersIgnoredWithoutTrustedProxy(t *testing.T) {
	r, _ := setupTestServer(t)
	var seen string
	r.GET("/ip", func(c *gin.Context) { seen = c.ClientIP() })

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.RemoteAddr = "203.0.113.7:4321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	req.Header.Set("X-Real-IP", "5.6.7.8")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.7", seen)
}

func TestNotFoundAndRoot(t *testing.T) {
	r, _ := setupTestServer(t)
	tc := &testClient{t: t, r: r}

	w := tc.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/shop", w.Header().Get("Location"))

	w = tc.do(http.MethodGet, "/introuvable", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Test Boutique")
}
