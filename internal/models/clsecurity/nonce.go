package clsecurity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// NonceLifetime durée de validité d'un nonce
const NonceLifetime = 24 * time.Hour

// NonceHeader en-tête lu par RequireNonce
const NonceHeader = "X-QR-Nonce"

func nonceKey(action string) string {
	return "nonce_" + action
}

// CreateNonce génère un jeton lié à la session et à l'action
func CreateNonce(session sessions.Session, action string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	session.Set(nonceKey(action), fmt.Sprintf("%s:%d", token, time.Now().Unix()))
	if err := session.Save(); err != nil {
		return "", err
	}
	return token, nil
}

// VerifyNonce contrôle le jeton reçu pour l'action
func VerifyNonce(session sessions.Session, action, token string) bool {
	if token == "" {
		return false
	}
	stored, ok := session.Get(nonceKey(action)).(string)
	if !ok {
		return false
	}

	value, created, found := strings.Cut(stored, ":")
	if !found {
		return false
	}
	ts, err := strconv.ParseInt(created, 10, 64)
	if err != nil || time.Since(time.Unix(ts, 0)) > NonceLifetime {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(value), []byte(token)) == 1
}

// RequireNonce refuse la requête sans nonce valide (en-tête ou champ "nonce")
func RequireNonce(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(NonceHeader)
		if token == "" {
			token = c.PostForm("nonce")
		}
		if !VerifyNonce(sessions.Default(c), action, token) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Nonce invalide"})
			return
		}
		c.Next()
	}
}
