package clcaptchas

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"qrcommerce/internal/clredis"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	caps := New(clredis.NewMemoryStore())

	data, err := caps.GenerateCaptcha(false)
	require.NoError(t, err)
	id := data["captcha_id"].(string)
	answer := data["answer"].(string)
	assert.NotEmpty(t, answer)

	assert.ErrorIs(t, caps.VerifyCaptcha(id, "faux"), ErrIncorrect)

	// la mauvaise réponse a consommé le captcha
	data, err = caps.GenerateCaptcha(false)
	require.NoError(t, err)
	id = data["captcha_id"].(string)
	assert.NoError(t, caps.VerifyCaptcha(id, data["answer"].(string)))
	assert.ErrorIs(t, caps.VerifyCaptcha(id, data["answer"].(string)), ErrIncorrect)

	assert.ErrorIs(t, caps.VerifyCaptcha(" ", "1"), ErrMissing)
}

func TestCaptchaHandlerProduction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/captcha", New(clredis.NewMemoryStore()).CaptchaHandler(true))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/captcha", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["captcha_id"])
	assert.Empty(t, body["answer"])
}
