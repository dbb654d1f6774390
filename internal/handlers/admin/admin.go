package handlers_admin

import (
	"errors"
	"fmt"
	"net/http"
	"qrcommerce/internal/models/clapp"
	"qrcommerce/internal/models/clcatalog"
	"qrcommerce/internal/models/clerrors"
	"qrcommerce/internal/models/clorders"
	"qrcommerce/internal/models/clqrcodes"
	"qrcommerce/internal/models/clsecurity"
	"qrcommerce/internal/models/cltemplates"
	"runtime"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type AdminHandler struct {
	app *clapp.App
}

func NewAdminHandler(app *clapp.App) *AdminHandler {
	return &AdminHandler{app: app}
}

type GenerateProductRequest struct {
	ProductID uint                   `json:"product_id" binding:"required"`
	Settings  clsecurity.QRSettings `json:"settings"`
}

type GenerateURLRequest struct {
	URL      string                 `json:"url" binding:"required"`
	Settings clsecurity.QRSettings `json:"settings"`
}

type BulkRequest struct {
	Action string `json:"action" binding:"required"`
	IDs    []uint `json:"ids" binding:"required"`
}

// statusFor code HTTP selon l'erreur métier
func statusFor(err error) int {
	switch {
	case errors.Is(err, clqrcodes.ErrNotFound), errors.Is(err, clcatalog.ErrNotFound), errors.Is(err, clorders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, clqrcodes.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, clsecurity.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant invalide"})
		return 0, false
	}
	return uint(id), true
}

// generationFailed journalise l'échec et renvoie le marqueur de repli côté client
func (ah *AdminHandler) generationFailed(c *gin.Context, err error) {
	status := statusFor(err)
	resp := gin.H{"error": err.Error()}
	if status == http.StatusInternalServerError {
		resp["fallback"] = ah.app.Errors.HandleGenerationError(err, clerrors.InfoFromGin(c))
	}
	c.JSON(status, resp)
}

func (ah *AdminHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := ah.app.Analytics.DashboardSummary(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve dashboard"})
		return
	}
	realtime, err := ah.app.Analytics.GetRealtimeStats(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("statistiques temps réel")
	}
	orders, err := ah.app.Orders.QRTrackedOrders(5)
	if err != nil {
		log.Warn().Err(err).Msg("commandes suivies")
	}
	missing, err := ah.app.QRCodes.ProductsWithoutQRCode(5)
	if err != nil {
		log.Warn().Err(err).Msg("produits sans QR code")
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":                   stats,
		"realtime":                realtime,
		"recent_qr_orders":        orders,
		"products_without_qrcode": missing,
		"orders_by_status":        ah.ordersByStatus(),
		"qr_codes_by_status":      ah.qrCodesByStatus(),
		"settings":                ah.app.Settings.Get(),
	})
}

func (ah *AdminHandler) ordersByStatus() map[string]int64 {
	counts := make(map[string]int64, len(clorders.Statuses))
	for _, status := range clorders.Statuses {
		n, err := ah.app.Orders.CountByStatus(status)
		if err != nil {
			log.Warn().Err(err).Str("status", status).Msg("comptage commandes")
			continue
		}
		counts[status] = n
	}
	return counts
}

func (ah *AdminHandler) qrCodesByStatus() map[string]int64 {
	counts := make(map[string]int64, 2)
	for _, status := range []string{clqrcodes.StatusActive, clqrcodes.StatusInactive} {
		n, err := ah.app.QRCodes.CountByStatus(status)
		if err != nil {
			log.Warn().Err(err).Str("status", status).Msg("comptage QR codes")
			continue
		}
		counts[status] = n
	}
	return counts
}

func (ah *AdminHandler) List(c *gin.Context) {
	var q clqrcodes.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Paramètres invalides"})
		return
	}
	res, err := ah.app.QRCodes.List(q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ah *AdminHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	qr, err := ah.app.QRCodes.Get(id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"qr_code": qr, "settings": qr.Options()})
}

func (ah *AdminHandler) GenerateProduct(c *gin.Context) {
	var req GenerateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No product selected"})
		return
	}
	qr, err := ah.app.QRCodes.CreateProductQRCode(req.ProductID, req.Settings)
	if err != nil {
		ah.generationFailed(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "QR code generated successfully",
		"qr_code": qr,
	})
}

func (ah *AdminHandler) GenerateURL(c *gin.Context) {
	var req GenerateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL manquante"})
		return
	}
	qr, err := ah.app.QRCodes.CreateURLQRCode(req.URL, req.Settings)
	if err != nil {
		ah.generationFailed(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "QR code generated successfully",
		"qr_code": qr,
	})
}

func (ah *AdminHandler) Regenerate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	qr, err := ah.app.QRCodes.Regenerate(id)
	if err != nil {
		ah.generationFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "QR code regenerated successfully",
		"qr_code": qr,
	})
}

func (ah *AdminHandler) Bulk(c *gin.Context) {
	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Aucun QR code sélectionné"})
		return
	}
	res, err := ah.app.QRCodes.BulkAction(req.Action, req.IDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ah *AdminHandler) Download(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	qr, err := ah.app.QRCodes.Get(id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	path, err := clsecurity.SecureFilePath(ah.app.Images.UploadsPath(), qr.FilePath)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Fichier refusé"})
		return
	}
	c.FileAttachment(path, fmt.Sprintf("qr-code-%d.png", qr.ID))
}

func (ah *AdminHandler) ProductsWithoutQRCode(c *gin.Context) {
	products, err := ah.app.QRCodes.ProductsWithoutQRCode(200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (ah *AdminHandler) GenerateTemplate(c *gin.Context) {
	var req cltemplates.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	res, err := ah.app.Templates.Generate(req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			ah.generationFailed(c, err)
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (ah *AdminHandler) ErrorLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	errs, err := ah.app.Errors.RecentErrors(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"errors": errs})
}

func getMemUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return fmt.Sprintf("Statistiques mémoire: allouée = %v Mo, total allouée = %d Mo, système = %v Mo, nombre de GC = %v", m.Alloc/1024/1024, m.TotalAlloc/1024/1024, m.Sys/1024/1024, m.NumGC)
}

func (ah *AdminHandler) SystemStatus(c *gin.Context) {
	conf := ah.app.Configuration
	c.JSON(http.StatusOK, gin.H{
		"version":    ah.app.Version,
		"build_id":   ah.app.BuildID,
		"go_version": runtime.Version(),
		"database":   conf.Database.Db,
		"production": conf.Production,
		"cache":      ah.app.Cache.Stats(c.Request.Context()),
		"tables":     ah.app.Analytics.Tables(),
		"uploads":    ah.app.Images.UploadsPath(),
		"kafka":      conf.Kafka.Enabled,
		"geoip":      conf.GeoIP.Path != "",
		"memory":     getMemUsage(),
	})
}

func (ah *AdminHandler) ClearCache(c *gin.Context) {
	cleared, err := ah.app.Cache.ClearAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Info().Int64("keys", cleared).Msg("Cache vidé")
	c.JSON(http.StatusOK, gin.H{"message": "Cache cleared successfully", "cleared": cleared})
}

// RunCleanup déclenche le nettoyage planifié à la demande
func (ah *AdminHandler) RunCleanup(c *gin.Context) {
	res, err := ah.app.Cleaner.Run()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
