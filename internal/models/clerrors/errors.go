package clerrors

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// FallbackHTML marqueur renvoyé quand la génération serveur échoue,
// le client bascule alors sur une génération locale
const FallbackHTML = `<div id="qrcode-fallback" class="qr-fallback" data-error="server-generation-failed"></div>`

// ErrorLog erreur conservée pour l'administration
type ErrorLog struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ErrorMessage string    `json:"error_message" gorm:"type:text;not null"`
	ErrorTime    time.Time `json:"error_time" gorm:"index"`
	User         string    `json:"user" gorm:"size:100"`
	IPAddress    string    `json:"ip_address" gorm:"size:45"`
	UserAgent    string    `json:"user_agent" gorm:"type:text"`
}

func (ErrorLog) TableName() string {
	return "qr_error_logs"
}

// RequestInfo contexte de la requête à l'origine de l'erreur
type RequestInfo struct {
	User      string
	IP        string
	UserAgent string
}

// InfoFromGin extrait l'utilisateur connecté, l'IP et le user-agent
func InfoFromGin(c *gin.Context) RequestInfo {
	info := RequestInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if user, ok := c.Get("username"); ok {
		info.User, _ = user.(string)
	}
	return info
}

type Handler struct {
	db  *gorm.DB
	now func() time.Time
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, now: time.Now}
}

// LogError écrit l'erreur dans le log et dans qr_error_logs
func (h *Handler) LogError(message string, info RequestInfo) {
	log.Error().
		Str("user", info.User).
		Str("ip", info.IP).
		Msg(message)

	entry := ErrorLog{
		ErrorMessage: message,
		ErrorTime:    h.now(),
		User:         info.User,
		IPAddress:    info.IP,
		UserAgent:    info.UserAgent,
	}
	if err := h.db.Create(&entry).Error; err != nil {
		log.Error().Err(err).Msg("impossible d'enregistrer l'erreur en base")
	}
}

// HandleGenerationError journalise l'échec et renvoie le marqueur de repli
func (h *Handler) HandleGenerationError(err error, info RequestInfo) string {
	h.LogError(fmt.Sprintf("[%s] QR Code Generation Error: %v", h.now().Format(time.DateTime), err), info)
	return FallbackHTML
}

func (h *Handler) RecentErrors(limit int) ([]ErrorLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var errs []ErrorLog
	err := h.db.Order("error_time DESC, id DESC").Limit(limit).Find(&errs).Error
	return errs, err
}

// CleanupOldErrors supprime les erreurs de plus de days jours
func (h *Handler) CleanupOldErrors(days int) (int64, error) {
	if days <= 0 {
		days = 30
	}
	result := h.db.Where("error_time < ?", h.now().AddDate(0, 0, -days)).Delete(&ErrorLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	log.Info().Int64("deleted", result.RowsAffected).Msg("Deleted old error logs")
	return result.RowsAffected, nil
}
