package clmiddleware

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"qrcommerce/internal/models/clmetrics"
	"strconv"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const sessionName = "qrcommerce"

func InitMiddleware(r *gin.Engine, production bool) {
	// logger
	r.Use(Logger())
	r.Use(Recovery())

	// durée des requêtes par route
	r.Use(clmetrics.Middleware())

	// use Compression, with gzip
	r.Use(gzip.Gzip(gzip.BestSpeed, gzip.WithExcludedExtensions([]string{".png", ".pdf"})))

	// Configuration des sessions
	r.Use(NewSession(production))

	// Calculate time elapsed
	r.Use(RenderTime())

	// CORS
	r.Use(CORS)
}

func CORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-QR-Nonce")

	if c.Request.Method == "OPTIONS" {
		c.AbortWithStatus(204)
		return
	}

	c.Next()
}

// NewLimiter limite les tentatives de connexion
func NewLimiter() gin.HandlerFunc {
	rate := limiter.Rate{
		Period: 1 * time.Minute,
		Limit:  5,
	}
	mstore := memory.NewStore()
	instance := limiter.New(mstore, rate)
	return ginlimiter.NewMiddleware(instance)
}

func NewSession(production bool) gin.HandlerFunc {
	store := cookie.NewStore(generateSecretKey())
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   production,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(sessionName, store)
}

// VisitorID identifiant anonyme du visiteur, créé à la première visite
func VisitorID(c *gin.Context) string {
	session := sessions.Default(c)
	if id, ok := session.Get("visitor_id").(string); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	session.Set("visitor_id", id)
	if err := session.Save(); err != nil {
		log.Warn().Err(err).Msg("session visiteur")
	}
	return id
}

// AuthRequired protège les routes d'administration
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get("user_id")
		if userID == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentification requise"})
			c.Abort()
			return
		}
		c.Set("authenticated", true)
		if username, ok := session.Get("username").(string); ok {
			c.Set("username", username)
		}
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Traiter la requête
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		var logEvent *zerolog.Event
		switch {
		case statusCode == 404:
			logEvent = log.Debug()
		case statusCode >= 500:
			logEvent = log.Error()
		case statusCode >= 400:
			logEvent = log.Warn()
		default:
			logEvent = log.Info()
		}

		logEvent.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int("body_size", c.Writer.Size()).
			Msg("HTTP Request")

		for _, err := range c.Errors {
			log.Error().
				Err(err.Err).
				Str("type", strconv.FormatUint(uint64(err.Type), 10)).
				Msg("Request error")
		}
	}
}

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("path", c.Request.URL.Path).
					Str("method", c.Request.Method).
					Msg("Panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Erreur interne"})
			}
		}()
		c.Next()
	}
}

func RenderTime() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Stocker le temps de début pour utilisation dans les handlers
		c.Set("requestStart", time.Now())
		c.Next()
	}
}

func GetRenderTime(c *gin.Context) string {
	start, ok := c.Get("requestStart")
	if !ok {
		return ""
	}
	return fmt.Sprintf("Page générée en %s", formatDuration(time.Since(start.(time.Time))))
}

// Générer une clé secrète aléatoire
func generateSecretKey() []byte {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		log.Fatal().Err(err).Msg("Erreur génération clé secrète")
	}
	return key
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", int(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", int(d.Nanoseconds())/1e6)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
