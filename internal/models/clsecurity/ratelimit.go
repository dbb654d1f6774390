package clsecurity

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiter limite le nombre d'appels par action et par IP
type RateLimiter struct {
	mu       sync.RWMutex
	window   time.Duration
	instance *limiter.Limiter
}

func NewRateLimiter(limit int64, window time.Duration) *RateLimiter {
	r := &RateLimiter{window: window}
	r.SetLimit(limit)
	return r
}

// SetLimit remplace la limite, les compteurs repartent de zéro
func (r *RateLimiter) SetLimit(limit int64) {
	rate := limiter.Rate{
		Period: r.window,
		Limit:  limit,
	}
	r.mu.Lock()
	r.instance = limiter.New(memory.NewStore(), rate)
	r.mu.Unlock()
}

// Allow incrémente le compteur de (action, ip) et indique si la limite est atteinte
func (r *RateLimiter) Allow(ctx context.Context, action, ip string) (bool, limiter.Context, error) {
	r.mu.RLock()
	instance := r.instance
	r.mu.RUnlock()

	lctx, err := instance.Get(ctx, "qr_rate_limit_"+action+"_"+ip)
	if err != nil {
		return false, lctx, err
	}
	return !lctx.Reached, lctx, nil
}

func (r *RateLimiter) Middleware(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, lctx, err := r.Allow(c.Request.Context(), action, c.ClientIP())
		if err != nil {
			// la limite n'est pas bloquante si le store échoue
			log.Error().Err(err).Str("action", action).Msg("rate limiter failure")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Trop de requêtes, réessayez plus tard"})
			return
		}
		c.Next()
	}
}
