package clsecurity

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"status":"completed"}`)
	sig := Sign("secret", body)

	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.True(t, VerifySignature("secret", body, sig))
	assert.True(t, VerifySignature("secret", body, strings.TrimPrefix(sig, "sha256=")))

	assert.False(t, VerifySignature("autre", body, sig))
	assert.False(t, VerifySignature("secret", []byte(`{"status":"pending"}`), sig))
	assert.False(t, VerifySignature("secret", body, ""))
	assert.False(t, VerifySignature("", body, Sign("", body)))
}

func TestRequireSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(secret string) *gin.Engine {
		r := gin.New()
		r.PUT("/hook", RequireSignature(secret), func(c *gin.Context) {
			raw, err := io.ReadAll(c.Request.Body)
			require.NoError(t, err)
			c.String(http.StatusOK, string(raw))
		})
		return r
	}
	body := `{"status":"completed"}`
	send := func(r *gin.Engine, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/hook", strings.NewReader(body))
		if signature != "" {
			req.Header.Set(SignatureHeader, signature)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	// sans secret configuré, même une signature correcte est refusée
	w := send(newRouter(""), Sign("", []byte(body)))
	assert.Equal(t, http.StatusForbidden, w.Code)

	r := newRouter("s3cret")
	assert.Equal(t, http.StatusUnauthorized, send(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, send(r, Sign("mauvais", []byte(body))).Code)

	w = send(r, Sign("s3cret", []byte(body)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, w.Body.String())
}
