package handlers_analytics

import (
	"net/http"
	"path/filepath"
	"qrcommerce/internal/models/clanalytics"
	"qrcommerce/internal/models/clsettings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type AnalyticsHandler struct {
	service   *clanalytics.AnalyticsService
	settings  *clsettings.Service
	exportDir string
}

func NewAnalyticsHandler(service *clanalytics.AnalyticsService, settings *clsettings.Service, exportDir string) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:   service,
		settings:  settings,
		exportDir: exportDir,
	}
}

// Enabled refuse l'accès quand les statistiques sont désactivées
func (ah *AnalyticsHandler) Enabled() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ah.settings.AnalyticsEnabled() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Analytics disabled"})
			return
		}
		c.Next()
	}
}

// GetData retourne le rapport de la période from..to (30 derniers jours par défaut)
func (ah *AnalyticsHandler) GetData(c *gin.Context) {
	data, err := ah.service.GetAnalyticsData(c.Request.Context(), c.Query("date_from"), c.Query("date_to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to retrieve analytics",
		})
		return
	}

	c.JSON(http.StatusOK, data)
}

// Export écrit le rapport dans le dossier d'export puis le télécharge
func (ah *AnalyticsHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", clanalytics.FormatCSV)
	path, err := ah.service.Export(c.Request.Context(), ah.exportDir, format, c.Query("date_from"), c.Query("date_to"))
	if err != nil {
		log.Warn().Err(err).Str("format", format).Msg("export analytics")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// GetRealtimeStats retourne les statistiques en temps réel
func (ah *AnalyticsHandler) GetRealtimeStats(c *gin.Context) {
	stats, err := ah.service.GetRealtimeStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve realtime stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
