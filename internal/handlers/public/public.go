package handlers_public

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"math"
	"net/http"
	"net/url"
	"qrcommerce/internal/clmiddleware"
	"qrcommerce/internal/models/clanalytics"
	"qrcommerce/internal/models/clapp"
	"qrcommerce/internal/models/clcache"
	"qrcommerce/internal/models/clcatalog"
	"qrcommerce/internal/models/clconfig"
	"qrcommerce/internal/models/clerrors"
	"qrcommerce/internal/models/clorders"
	"qrcommerce/internal/models/clqrcodes"
	"qrcommerce/internal/models/clsecurity"
	"qrcommerce/internal/models/cltracking"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// NonceAction action protégée par le nonce du suivi de scan
const NonceAction = "qr_tracking"

type PublicHandler struct {
	app     *clapp.App
	tracker *clmiddleware.ScanTracker
}

func NewPublicHandler(app *clapp.App, tracker *clmiddleware.ScanTracker) *PublicHandler {
	return &PublicHandler{app: app, tracker: tracker}
}

type TrackScanRequest struct {
	QRID   uint   `json:"qr_id" form:"qr_id" binding:"required"`
	Source string `json:"source" form:"source"`
}

type OrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func pointers(products []clcatalog.Product) []*clcatalog.Product {
	out := make([]*clcatalog.Product, len(products))
	for i := range products {
		out[i] = &products[i]
	}
	return out
}

// pageData données communes des pages publiques
func (ph *PublicHandler) pageData(c *gin.Context, title string) gin.H {
	nonce, err := clsecurity.CreateNonce(sessions.Default(c), NonceAction)
	if err != nil {
		log.Warn().Err(err).Msg("création du nonce")
	}
	categories, err := ph.app.Catalog.ListCategories()
	if err != nil {
		log.Warn().Err(err).Msg("liste des catégories")
	}
	return gin.H{
		"title":      title,
		"site":       ph.app.Configuration.Site,
		"nonce":      nonce,
		"categories": categories,
		"widget":     ph.widget(c, nil),
		"year":       time.Now().Year(),
		"renderTime": clmiddleware.GetRenderTime(c),
	}
}

// Widget QR code de la barre latérale
type Widget struct {
	Title       string
	Data        string
	ImageURL    string
	DownloadURL string
}

// widget nil si désactivé, product renseigné sur les pages produit
func (ph *PublicHandler) widget(c *gin.Context, product *clcatalog.Product) *Widget {
	conf := ph.app.Configuration.Widget
	if !conf.Enabled {
		return nil
	}

	home := ph.app.Catalog.SiteURL() + "/"
	var data string
	switch conf.Type {
	case clconfig.WidgetHome:
		data = home
	case clconfig.WidgetCustom:
		data = conf.CustomData
	case clconfig.WidgetCurrentProduct:
		data = home
		if product != nil {
			data = ph.app.Catalog.Permalink(product)
			if qr, err := ph.app.QRCodes.GetByProduct(product.ID); err == nil {
				data = clqrcodes.WithQueryArgs(data, url.Values{
					"qr_source": {"widget"},
					"qr_id":     {strconv.FormatUint(uint64(qr.ID), 10)},
				})
			}
		}
	default:
		data = ph.app.Catalog.SiteURL() + c.Request.URL.Path
	}
	if data == "" {
		return nil
	}

	args := url.Values{
		"data": {data},
		"size": {strconv.Itoa(conf.Size)},
	}
	w := &Widget{Title: conf.Title, Data: data, ImageURL: "/embed/qr.png?" + args.Encode()}
	if conf.ShowDownload {
		args.Set("download", "1")
		w.DownloadURL = "/embed/qr.png?" + args.Encode()
	}
	return w
}

func (ph *PublicHandler) NotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "notfound", ph.pageData(c, "Page non trouvée"))
}

func (ph *PublicHandler) ProductPage(c *gin.Context) {
	product, err := ph.app.Catalog.GetProductBySlug(c.Param("slug"))
	if err != nil {
		ph.NotFound(c)
		return
	}
	data := ph.pageData(c, product.Name)
	data["product"] = product
	data["widget"] = ph.widget(c, product)
	if qr, err := ph.app.QRCodes.GetByProduct(product.ID); err == nil {
		data["qr"] = qr
	}
	c.HTML(http.StatusOK, "product", data)
}

func (ph *PublicHandler) CategoryPage(c *gin.Context) {
	category, err := ph.app.Catalog.GetCategoryBySlug(c.Param("slug"))
	if err != nil {
		ph.NotFound(c)
		return
	}
	products, err := ph.app.Catalog.ListProducts(clcatalog.StatusPublish, category.ID)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	data := ph.pageData(c, category.Name)
	data["category"] = category
	data["products"] = pointers(products)
	c.HTML(http.StatusOK, "category", data)
}

func (ph *PublicHandler) ShopPage(c *gin.Context) {
	products, err := ph.app.Catalog.ListProducts(clcatalog.StatusPublish, 0)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	data := ph.pageData(c, "Boutique")
	data["products"] = pointers(products)
	c.HTML(http.StatusOK, "shop", data)
}

// Nonce jeton à renvoyer dans l'en-tête X-QR-Nonce de /api/track-scan
func (ph *PublicHandler) Nonce(c *gin.Context) {
	nonce, err := clsecurity.CreateNonce(sessions.Default(c), NonceAction)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// TrackScan suivi d'un scan depuis le navigateur
func (ph *PublicHandler) TrackScan(c *gin.Context) {
	var req TrackScanRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "QR code manquant"})
		return
	}
	att := ph.tracker.Record(c, req.QRID, req.Source)
	if att == nil {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "scan_id": att.ScanID})
}

// Redirect enregistre le scan puis redirige vers la cible validée
func (ph *PublicHandler) Redirect(c *gin.Context) {
	if qrID, err := strconv.ParseUint(c.Query("qr_id"), 10, 64); err == nil && qrID > 0 {
		ph.tracker.Record(c, uint(qrID), "redirect")
	}
	target := cltracking.RedirectTarget(c.Query("target_url"), ph.app.Catalog.ShopURL())
	c.Redirect(http.StatusFound, target)
}

// EmbedQR image PNG d'un contenu libre, mise en cache
func (ph *PublicHandler) EmbedQR(c *gin.Context) {
	data, err := clsecurity.ValidateInput(c.Query("data"), "text")
	if err != nil || data == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Paramètre data manquant"})
		return
	}
	size, _ := strconv.Atoi(c.Query("size"))
	opts := ph.app.Images.Normalize(clsecurity.QRSettings{
		Size:       size,
		Quality:    c.Query("error_level"),
		ColorDark:  c.Query("color_dark"),
		ColorLight: c.Query("color_light"),
	})

	sum := md5.Sum([]byte(fmt.Sprintf("%s|%d|%s|%s|%s", data, opts.Size, opts.Quality, opts.ColorDark, opts.ColorLight)))
	png, err := clcache.Remember(c.Request.Context(), ph.app.Cache, "embed_"+hex.EncodeToString(sum[:]), 0, func() ([]byte, error) {
		return ph.app.Images.Generate(data, opts)
	})
	if err != nil {
		fallback := ph.app.Errors.HandleGenerationError(err, clerrors.InfoFromGin(c))
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte(fallback))
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	if c.Query("download") == "1" {
		c.Header("Content-Disposition", `attachment; filename="qr-code.png"`)
	}
	c.Data(http.StatusOK, "image/png", png)
}

// EmbedProduct fragment HTML du QR code d'un produit
func (ph *PublicHandler) EmbedProduct(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte(clerrors.FallbackHTML))
		return
	}
	qr, err := ph.app.QRCodes.GetByProduct(uint(id))
	if err != nil {
		c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte(`<p class="qr-missing">No QR code found for this product.</p>`))
		return
	}
	snippet := fmt.Sprintf(`<div class="qr-code-product"><img src="%s" alt="QR Code" data-qr-id="%d"></div>`, html.EscapeString(qr.FileURL), qr.ID)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(snippet))
}

// chartBar barre du graphique des scans journaliers
type chartBar struct {
	Date   string
	Scans  int64
	Height int
}

func chartBars(days []clanalytics.DailyStat) []chartBar {
	var peak int64
	for _, d := range days {
		if d.Scans > peak {
			peak = d.Scans
		}
	}
	bars := make([]chartBar, 0, len(days))
	for _, d := range days {
		height := 0
		if peak > 0 {
			height = int(d.Scans * 100 / peak)
		}
		bars = append(bars, chartBar{Date: d.Date, Scans: d.Scans, Height: height})
	}
	return bars
}

// EmbedAnalytics fragment HTML des statistiques (résumé, graphique ou tableau),
// réservé à l'administrateur. :id limite le rapport à un QR code.
func (ph *PublicHandler) EmbedAnalytics(c *gin.Context) {
	if !ph.app.Settings.AnalyticsEnabled() {
		c.Data(http.StatusForbidden, "text/html; charset=utf-8", []byte(`<p class="qr-analytics-disabled">Statistiques désactivées.</p>`))
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 1 || days > 365 {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte(`<p class="qr-analytics-error">Période invalide.</p>`))
		return
	}
	show := c.DefaultQuery("show", "summary")
	switch show {
	case "summary", "chart", "table":
	default:
		show = "summary"
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -days).Format(time.DateOnly)
	to := now.Format(time.DateOnly)

	var data *clanalytics.Data
	if raw := c.Param("id"); raw != "" {
		id, perr := strconv.ParseUint(raw, 10, 64)
		if perr != nil {
			c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte(`<p class="qr-analytics-error">Identifiant invalide.</p>`))
			return
		}
		if _, gerr := ph.app.QRCodes.Get(uint(id)); gerr != nil {
			c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte(`<p class="qr-analytics-error">QR code introuvable.</p>`))
			return
		}
		data, err = ph.app.Analytics.GetQRCodeData(c.Request.Context(), uint(id), from, to)
	} else {
		data, err = ph.app.Analytics.GetAnalyticsData(c.Request.Context(), from, to)
	}
	if err != nil {
		log.Error().Err(err).Msg("statistiques intégrées")
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte(`<p class="qr-analytics-error">Statistiques indisponibles.</p>`))
		return
	}

	c.HTML(http.StatusOK, "analytics_embed", gin.H{
		"show":     show,
		"data":     data,
		"bars":     chartBars(data.DailyScans),
		"currency": ph.app.Configuration.Site.Currency,
	})
}

// maxQuantity quantité maximale par ligne de commande
const maxQuantity = 999

type CheckoutItem struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

// CheckoutRequest commande passée par le visiteur, les prix viennent du catalogue
type CheckoutRequest struct {
	CustomerEmail string         `json:"customer_email"`
	Items         []CheckoutItem `json:"items" binding:"required,min=1,dive"`
}

type CartRequest struct {
	ProductID uint `json:"product_id" form:"product_id" binding:"required"`
}

// buildOrder lignes valorisées au prix courant des produits publiés
func (ph *PublicHandler) buildOrder(req CheckoutRequest) (*clorders.Order, error) {
	order := &clorders.Order{
		Status:   clorders.StatusPending,
		Currency: ph.app.Configuration.Site.Currency,
	}
	if req.CustomerEmail != "" {
		email, err := clsecurity.ValidateInput(req.CustomerEmail, "email")
		if err != nil {
			return nil, err
		}
		order.CustomerEmail = email
	}

	for _, line := range req.Items {
		quantity := line.Quantity
		if quantity == 0 {
			quantity = 1
		}
		if quantity < 0 || quantity > maxQuantity {
			return nil, fmt.Errorf("quantité invalide pour le produit %d", line.ProductID)
		}
		product, err := ph.app.Catalog.GetProduct(line.ProductID)
		if err != nil || product.Status != clcatalog.StatusPublish {
			return nil, fmt.Errorf("produit %d indisponible", line.ProductID)
		}
		order.Items = append(order.Items, clorders.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  quantity,
			Total:     math.Round(product.ActivePrice()*float64(quantity)*100) / 100,
		})
	}
	return order, nil
}

// CreateOrder commande du visiteur : créée en attente, le dernier scan y est posé
func (ph *PublicHandler) CreateOrder(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	order, err := ph.buildOrder(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ph.app.Orders.CreateOrder(order); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	att, err := ph.app.Tracking.CaptureOrder(c.Request.Context(), order.ID, clmiddleware.Visitor(c))
	if err != nil {
		log.Error().Err(err).Uint("order_id", order.ID).Msg("attribution de la commande")
	}
	if att != nil {
		clmiddleware.ClearAttribution(c)
	}
	c.JSON(http.StatusCreated, gin.H{
		"order":      order,
		"qr_tracked": att != nil,
	})
}

// UpdateOrderStatus webhook signé ou administration : la conversion est
// enregistrée quand la commande passe à terminée
func (ph *PublicHandler) UpdateOrderStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant invalide"})
		return
	}
	var req OrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Statut manquant"})
		return
	}
	if err := ph.app.Orders.UpdateStatus(uint(id), req.Status); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, clorders.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	order, err := ph.app.Orders.GetOrder(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var conv *clqrcodes.Conversion
	if order.Status == clorders.StatusCompleted {
		conv, err = ph.app.Tracking.TrackConversion(c.Request.Context(), order.ID)
		if err != nil {
			log.Error().Err(err).Uint("order_id", order.ID).Msg("conversion de la commande")
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"order":      order,
		"conversion": conv,
	})
}

// AddToCart rattache le dernier scan du visiteur au produit ajouté au panier
func (ph *PublicHandler) AddToCart(c *gin.Context) {
	var req CartRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Produit manquant"})
		return
	}
	product, err := ph.app.Catalog.GetProduct(req.ProductID)
	if err != nil || product.Status != clcatalog.StatusPublish {
		c.JSON(http.StatusNotFound, gin.H{"error": "Produit introuvable"})
		return
	}

	att, err := ph.app.Tracking.RebindProduct(c.Request.Context(), clmiddleware.Visitor(c), product.ID)
	if err != nil {
		log.Warn().Err(err).Uint("product_id", product.ID).Msg("attribution du panier")
	}
	if att == nil {
		c.JSON(http.StatusOK, gin.H{"qr_tracked": false})
		return
	}
	clmiddleware.SaveAttribution(c, att)
	c.JSON(http.StatusOK, gin.H{"qr_tracked": true, "qr_id": att.QRCodeID})
}
