package clmiddleware

import (
	"encoding/json"
	"errors"
	"qrcommerce/internal/models/cltracking"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const attributionKey = "qr_attribution"

type ScanTracker struct {
	tracking *cltracking.Service
}

func NewScanTracker(tracking *cltracking.Service) *ScanTracker {
	return &ScanTracker{tracking: tracking}
}

// Middleware enregistre le scan de toute page ouverte avec ?qr_id=
func (st *ScanTracker) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Ne pas tracker les assets, l'administration et les API
		path := c.Request.URL.Path
		for _, prefix := range []string{"/static/", "/uploads/", "/admin", "/api/", "/embed/", "/qr-redirect"} {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		qrID, err := strconv.ParseUint(c.Query("qr_id"), 10, 64)
		if err != nil || qrID == 0 {
			c.Next()
			return
		}

		st.Record(c, uint(qrID), c.Query("qr_source"))
		c.Next()
	}
}

// Record enregistre le scan et garde l'attribution dans la session
func (st *ScanTracker) Record(c *gin.Context, qrID uint, source string) *cltracking.Attribution {
	att, err := st.tracking.RecordScan(c.Request.Context(), cltracking.ScanRequest{
		QRCodeID:  qrID,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
		SessionID: VisitorID(c),
		Source:    source,
	})
	if err != nil {
		if errors.Is(err, cltracking.ErrIgnored) {
			log.Debug().Err(err).Uint("qr_id", qrID).Msg("scan ignoré")
		} else {
			log.Warn().Err(err).Uint("qr_id", qrID).Msg("enregistrement du scan")
		}
		return nil
	}
	SaveAttribution(c, att)
	return att
}

func SaveAttribution(c *gin.Context, att *cltracking.Attribution) {
	raw, err := json.Marshal(att)
	if err != nil {
		return
	}
	session := sessions.Default(c)
	session.Set(attributionKey, string(raw))
	if err := session.Save(); err != nil {
		log.Warn().Err(err).Msg("attribution en session")
	}
}

func LoadAttribution(c *gin.Context) *cltracking.Attribution {
	raw, ok := sessions.Default(c).Get(attributionKey).(string)
	if !ok || raw == "" {
		return nil
	}
	var att cltracking.Attribution
	if err := json.Unmarshal([]byte(raw), &att); err != nil {
		return nil
	}
	return &att
}

func ClearAttribution(c *gin.Context) {
	session := sessions.Default(c)
	session.Delete(attributionKey)
	session.Save()
}

// Visitor identité du visiteur courant pour l'attribution des commandes
func Visitor(c *gin.Context) cltracking.Visitor {
	return cltracking.Visitor{
		IP:          c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		Attribution: LoadAttribution(c),
	}
}
