package clsettings

import (
	"encoding/json"
	"errors"
	"fmt"
	"qrcommerce/internal/models/clconfig"
	"qrcommerce/internal/models/clsecurity"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const settingsKey = "qr_settings"

// Setting ligne clé/valeur de la table settings
type Setting struct {
	Key   string `gorm:"primaryKey;size:191"`
	Value string `gorm:"type:text"`
}

func (Setting) TableName() string {
	return "settings"
}

// Settings réglages modifiables depuis l'administration
type Settings struct {
	DefaultSize       int    `json:"default_size"`
	DefaultQuality    string `json:"default_quality"`
	DefaultColorDark  string `json:"default_color_dark"`
	DefaultColorLight string `json:"default_color_light"`
	EnableTracking    bool   `json:"enable_tracking"`
	EnableAnalytics   bool   `json:"enable_analytics"`
	CacheDuration     int    `json:"cache_duration"`
	AutoCleanupDays   int    `json:"auto_cleanup_days"`
	RateLimit         int    `json:"rate_limit"`
	GDPRCompliance    bool   `json:"gdpr_compliance"`
}

// QROptions réglages de rendu par défaut
func (s Settings) QROptions() clsecurity.QRSettings {
	return clsecurity.QRSettings{
		Size:       s.DefaultSize,
		Quality:    s.DefaultQuality,
		ColorDark:  s.DefaultColorDark,
		ColorLight: s.DefaultColorLight,
	}
}

// Defaults valeurs initiales issues de la configuration
func Defaults(cfg *clconfig.Config) Settings {
	return Sanitize(Settings{
		DefaultSize:       cfg.QRCode.DefaultSize,
		DefaultQuality:    cfg.QRCode.DefaultQuality,
		DefaultColorDark:  cfg.QRCode.ColorDark,
		DefaultColorLight: cfg.QRCode.ColorLight,
		EnableTracking:    cfg.Tracking.Enabled,
		EnableAnalytics:   true,
		CacheDuration:     cfg.Cache.Duration,
		AutoCleanupDays:   cfg.Cleanup.Days,
		RateLimit:         int(cfg.Security.RateLimit),
		GDPRCompliance:    cfg.Cleanup.GDPRCompliance,
	})
}

func clamp(v, lo, hi, def int) int {
	if v == 0 {
		return def
	}
	return min(max(v, lo), hi)
}

// Sanitize borne chaque valeur numérique et valide qualité et couleurs
func Sanitize(in Settings) Settings {
	out := in

	qr := clsecurity.SanitizeQRSettings(in.QROptions())
	out.DefaultSize = qr.Size
	out.DefaultQuality = qr.Quality
	out.DefaultColorDark = qr.ColorDark
	out.DefaultColorLight = qr.ColorLight

	out.CacheDuration = clamp(in.CacheDuration, 300, 86400, 3600)
	out.AutoCleanupDays = clamp(in.AutoCleanupDays, 1, 365, 30)
	out.RateLimit = clamp(in.RateLimit, 10, 1000, 100)
	return out
}

// Service lecture et mise à jour des réglages
type Service struct {
	db       *gorm.DB
	defaults Settings

	mu        sync.RWMutex
	current   *Settings
	listeners []func(Settings)
}

func NewService(db *gorm.DB, defaults Settings) *Service {
	return &Service{
		db:       db,
		defaults: defaults,
	}
}

// OnChange enregistre une fonction appelée après chaque mise à jour
func (s *Service) OnChange(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Get réglages enregistrés ou valeurs par défaut
func (s *Service) Get() Settings {
	s.mu.RLock()
	if s.current != nil {
		defer s.mu.RUnlock()
		return *s.current
	}
	s.mu.RUnlock()

	settings := s.defaults
	var row Setting
	err := s.db.Where("`key` = ?", settingsKey).First(&row).Error
	switch {
	case err == nil:
		// les champs absents gardent la valeur par défaut
		if err := json.Unmarshal([]byte(row.Value), &settings); err != nil {
			log.Warn().Err(err).Msg("réglages illisibles, valeurs par défaut")
			settings = s.defaults
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		log.Error().Err(err).Msg("lecture des réglages")
		return s.defaults
	}

	settings = Sanitize(settings)
	s.mu.Lock()
	s.current = &settings
	s.mu.Unlock()
	return settings
}

// Update nettoie puis enregistre les réglages
func (s *Service) Update(in Settings) (Settings, error) {
	settings := Sanitize(in)
	raw, err := json.Marshal(settings)
	if err != nil {
		return settings, err
	}

	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Setting{Key: settingsKey, Value: string(raw)}).Error
	if err != nil {
		return settings, fmt.Errorf("enregistrement des réglages: %w", err)
	}

	s.mu.Lock()
	s.current = &settings
	listeners := append([]func(Settings){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(settings)
	}
	log.Info().Msg("Réglages mis à jour")
	return settings, nil
}

func (s *Service) TrackingEnabled() bool {
	return s.Get().EnableTracking
}

func (s *Service) AnalyticsEnabled() bool {
	return s.Get().EnableAnalytics
}
