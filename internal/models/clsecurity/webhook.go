package clsecurity

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SignatureHeader en-tête portant le HMAC-SHA256 hexadécimal du corps
const SignatureHeader = "X-QR-Signature"

// maxWebhookBody taille maximale lue pour vérifier la signature
const maxWebhookBody = 1 << 20

// Sign signature attendue de body pour secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compare en temps constant
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	if !strings.HasPrefix(signature, "sha256=") {
		signature = "sha256=" + signature
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

// RequireSignature refuse les appels dont le corps n'est pas signé avec secret.
// Sans secret configuré le webhook est fermé.
func RequireSignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Webhook non configuré"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Corps illisible"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !VerifySignature(secret, body, c.GetHeader(SignatureHeader)) {
			log.Warn().Str("ip", c.ClientIP()).Str("path", c.Request.URL.Path).Msg("signature webhook invalide")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Signature invalide"})
			return
		}
		c.Next()
	}
}
