package clsecurity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		kind    string
		want    string
		wantErr bool
	}{
		{"texte avec balises", "  <b>Bonjour</b>   monde ", "text", "Bonjour monde", false},
		{"textarea", "ligne 1 \n <i>ligne 2</i>", "textarea", "ligne 1\nligne 2", false},
		{"url valide", "https://shop.example.com/p?a=1", "url", "https://shop.example.com/p?a=1", false},
		{"url javascript", "javascript:alert(1)", "url", "", true},
		{"url sans hôte", "http://", "url", "", true},
		{"entier", "42", "int", "42", false},
		{"entier invalide", "4x", "int", "", true},
		{"email", "Jean <jean@example.com>", "email", "jean@example.com", false},
		{"email invalide", "jean@", "email", "", true},
		{"couleur", "#AABBCC", "color", "#aabbcc", false},
		{"couleur invalide", "red", "color", "", true},
		{"défaut échappé", "<x>", "autre", "&lt;x&gt;", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateInput(tt.value, tt.kind)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSecureFilePath(t *testing.T) {
	base := t.TempDir()

	p, err := SecureFilePath(base, "qr_abc.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "qr_abc.png"), p)

	_, err = SecureFilePath(base, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrPathTraversal)

	_, err = SecureFilePath(base, "/etc/passwd")
	assert.ErrorIs(t, err, ErrPathTraversal)

	p, err = SecureFilePath(base, filepath.Join(base, "sub", "x.pdf"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "sub", "x.pdf"), p)
}

func TestSanitizeQRSettings(t *testing.T) {
	got := SanitizeQRSettings(QRSettings{Size: 5000, Quality: "x", ColorDark: "black", ColorLight: "#FFFFFF"})
	assert.Equal(t, MaxQRSize, got.Size)
	assert.Equal(t, "H", got.Quality)
	assert.Equal(t, "#000000", got.ColorDark)
	assert.Equal(t, "#FFFFFF", got.ColorLight)

	got = SanitizeQRSettings(QRSettings{Size: 10, Quality: "m"})
	assert.Equal(t, MinQRSize, got.Size)
	assert.Equal(t, "M", got.Quality)

	got = SanitizeQRSettings(QRSettings{})
	assert.Equal(t, DefaultQRSize, got.Size)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := rl.Allow(ctx, "generate", "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _, err := rl.Allow(ctx, "generate", "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)

	// autre IP, compteur séparé
	ok, _, err = rl.Allow(ctx, "generate", "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, ok)

	// nouvelle limite, compteurs remis à zéro
	rl.SetLimit(5)
	ok, lctx, err := rl.Allow(ctx, "generate", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(5), lctx.Limit)
}

func TestRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", NewRateLimiter(1, time.Hour).Middleware("x"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestNonce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("test-session", cookie.NewStore([]byte("test-secret"))))

	r.GET("/nonce", func(c *gin.Context) {
		token, err := CreateNonce(sessions.Default(c), "track")
		require.NoError(t, err)
		c.JSON(http.StatusOK, gin.H{"nonce": token})
	})
	r.POST("/track", RequireNonce("track"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/nonce", nil))
	require.Equal(t, http.StatusOK, w.Code)
	cookieHeader := w.Header().Get("Set-Cookie")

	var body struct {
		Nonce string `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	tests := []struct {
		name       string
		nonce      string
		cookie     string
		wantStatus int
	}{
		{"nonce valide", body.Nonce, cookieHeader, http.StatusNoContent},
		{"nonce faux", "deadbeef", cookieHeader, http.StatusForbidden},
		{"sans session", body.Nonce, "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/track", nil)
			req.Header.Set(NonceHeader, tt.nonce)
			if tt.cookie != "" {
				req.Header.Set("Cookie", tt.cookie)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRateLimiterIgnoresForwardedHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.GET("/x", NewRateLimiter(2, time.Hour).Middleware("x"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/x", nil)
		req.RemoteAddr = "192.0.2.10:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429, 429, 429}, codes)
}

func TestRateLimiterTrustedProxy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies([]string{"10.0.0.1"}))
	r.GET("/x", NewRateLimiter(1, time.Hour).Middleware("x"), func(c *gin.Context) {
		c.String(http.StatusOK, c.ClientIP())
	})

	// derrière le proxy déclaré, chaque client a son compteur
	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest("GET", "/x", nil)
		req.RemoteAddr = "10.0.0.1:40000"
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, ip, w.Body.String())
	}
}
