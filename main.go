package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"qrcommerce/internal/clmiddleware"
	handlers_admin "qrcommerce/internal/handlers/admin"
	handlers_analytics "qrcommerce/internal/handlers/analytics"
	handlers_auth "qrcommerce/internal/handlers/auth"
	handlers_public "qrcommerce/internal/handlers/public"
	handlers_rss "qrcommerce/internal/handlers/rss"
	handlers_settings "qrcommerce/internal/handlers/settings"
	"qrcommerce/internal/models/clanalytics"
	"qrcommerce/internal/models/clapp"
	"qrcommerce/internal/models/clconfig"
	"qrcommerce/internal/models/cllog"
	"qrcommerce/internal/models/clmetrics"
	"qrcommerce/internal/models/clsecurity"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
)

const VERSION string = "1.0.0"

var BuildID string

type options struct {
	configFile     string
	createExample  bool
	displayVersion bool
	report         bool
}

func parseCommandLineArgs(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("qrcommerce", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.configFile, "config", "", "Fichier de configuration YAML")
	fs.BoolVar(&opts.createExample, "example", false, "Créer un fichier de configuration exemple")
	fs.BoolVar(&opts.displayVersion, "version", false, "version du produit")
	fs.BoolVar(&opts.report, "report", false, "affiche les statistiques des 30 derniers jours")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.displayVersion || opts.createExample {
		return opts, nil
	}

	if opts.configFile == "" {
		return opts, fmt.Errorf("fichier de configuration requis")
	}

	return opts, nil
}

func initConfiguration() (*clconfig.Config, options) {
	opts, err := parseCommandLineArgs(os.Args[1:])
	if err != nil {
		fmt.Println("Usage:")
		fmt.Println("  qrcommerce -config qrcommerce.yaml")
		fmt.Println("  qrcommerce -config qrcommerce.yaml -report  (statistiques des 30 derniers jours)")
		fmt.Println("  qrcommerce -example  (pour créer un fichier exemple)")
		fmt.Println("  qrcommerce -version  (affiche la version)")
		os.Exit(1)
	}

	if opts.displayVersion {
		fmt.Println(VERSION)
		os.Exit(0)
	}

	clconfig.CreateExample(opts.createExample, opts.configFile)

	conf, err := clconfig.LoadAndValidate(opts.configFile)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	return conf, opts
}

func newServer(conf *clconfig.Config) *gin.Engine {
	if conf.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// sans proxy déclaré, X-Forwarded-For et X-Real-IP sont ignorés
	if err := r.SetTrustedProxies(conf.TrustedProxies); err != nil {
		log.Error().Err(err).Msg("trusted_proxies invalide")
	}
	if conf.TrustedPlatform != "" {
		switch conf.TrustedPlatform {
		case "cloudflare":
			r.TrustedPlatform = gin.PlatformCloudflare
		case "google":
			r.TrustedPlatform = gin.PlatformGoogleAppEngine
		case "flyio":
			r.TrustedPlatform = gin.PlatformFlyIO
		default:
			r.TrustedPlatform = conf.TrustedPlatform
		}
	}

	// parser les templates
	r.SetHTMLTemplate(handlers_public.Templates(conf.Production))

	return r
}

func setRoutes(r *gin.Engine, app *clapp.App) {
	conf := app.Configuration
	tracker := clmiddleware.NewScanTracker(app.Tracking)

	public := handlers_public.NewPublicHandler(app, tracker)
	auth := handlers_auth.NewAuthHandler(conf.User, app.Captcha)
	admin := handlers_admin.NewAdminHandler(app)
	analytics := handlers_analytics.NewAnalyticsHandler(app.Analytics, app.Settings, conf.QRCode.UploadsPath)
	settings := handlers_settings.NewSettingsHandler(app.Settings)
	feed := handlers_rss.NewRssHandler(app)

	// suivi des pages ouvertes avec ?qr_id=
	r.Use(tracker.Middleware())

	//default
	r.NoRoute(public.NotFound)

	// fichiers générés (PNG, PDF, HTML)
	r.Static("/uploads/qr-codes", conf.QRCode.UploadsPath)

	// Routes publiques
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/shop") })
	r.GET("/shop", public.ShopPage)
	r.GET("/product/:slug", public.ProductPage)
	r.GET("/category/:slug", public.CategoryPage)
	r.GET("/feed", feed.Feed)
	r.GET("/feed/:category", feed.Feed)
	r.GET("/qr-redirect", public.Redirect)
	r.GET("/files/captcha", app.Captcha.CaptchaHandler(conf.Production))

	embed := r.Group("/embed")
	embed.Use(app.Limiter.Middleware("embed"))
	{
		embed.GET("/qr.png", public.EmbedQR)
		embed.GET("/product/:id", public.EmbedProduct)
	}

	// statistiques intégrables, réservées à l'administrateur
	embedStats := r.Group("/embed/analytics")
	embedStats.Use(clmiddleware.AuthRequired())
	{
		embedStats.GET("", public.EmbedAnalytics)
		embedStats.GET("/:id", public.EmbedAnalytics)
	}

	// API publiques
	api := r.Group("/api")
	{
		api.GET("/nonce", public.Nonce)
		api.POST("/track-scan", clsecurity.RequireNonce(handlers_public.NonceAction), public.TrackScan)
		api.POST("/cart", clsecurity.RequireNonce(handlers_public.NonceAction), public.AddToCart)
		api.POST("/orders", public.CreateOrder)
		// webhook de la plateforme de paiement
		api.PUT("/orders/:id/status", clsecurity.RequireSignature(conf.Security.WebhookSecret), public.UpdateOrderStatus)
	}

	// Routes d'authentification
	r.POST("/admin/login", clmiddleware.NewLimiter(), auth.Login)
	r.POST("/admin/logout", auth.Logout)

	// Routes d'administration protégées
	adm := r.Group("/admin/api")
	adm.Use(clmiddleware.AuthRequired())
	{
		adm.GET("/dashboard", admin.Dashboard)
		adm.GET("/qrcodes", admin.List)
		adm.GET("/qrcodes/:id", admin.Get)
		adm.GET("/qrcodes/:id/download", admin.Download)
		adm.POST("/qrcodes/bulk", admin.Bulk)

		generate := adm.Group("")
		generate.Use(app.Limiter.Middleware("generate"))
		generate.POST("/qrcodes/product", admin.GenerateProduct)
		generate.POST("/qrcodes/url", admin.GenerateURL)
		generate.POST("/qrcodes/:id/regenerate", admin.Regenerate)
		generate.POST("/templates", admin.GenerateTemplate)

		adm.GET("/products", admin.ListProducts)
		adm.POST("/products", admin.CreateProduct)
		adm.PUT("/products/:id", admin.UpdateProduct)
		adm.DELETE("/products/:id", admin.DeleteProduct)
		adm.GET("/products/without-qrcode", admin.ProductsWithoutQRCode)
		adm.GET("/categories", admin.ListCategories)
		adm.POST("/categories", admin.CreateCategory)
		adm.DELETE("/categories/:id", admin.DeleteCategory)
		adm.GET("/orders", admin.Orders)
		adm.PUT("/orders/:id/status", public.UpdateOrderStatus)

		stats := adm.Group("/analytics")
		stats.Use(analytics.Enabled())
		stats.GET("", analytics.GetData)
		stats.GET("/export", analytics.Export)
		stats.GET("/realtime", analytics.GetRealtimeStats)

		adm.GET("/settings", settings.Get)
		adm.PUT("/settings", settings.Update)

		adm.GET("/errors", admin.ErrorLog)
		adm.GET("/system", admin.SystemStatus)
		adm.POST("/cache/clear", admin.ClearCache)
		adm.POST("/cleanup", admin.RunCleanup)
	}
}

func startServer(r *gin.Engine, conf *clconfig.Config) {
	if conf.Listen.Metrics != "" {
		log.Info().Msgf("Metrics disponible sur http://%s/metrics", conf.Listen.Metrics)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", clmetrics.Handler())
			if err := http.ListenAndServe(conf.Listen.Metrics, mux); err != nil {
				log.Error().Err(err).Msg("serveur metrics")
			}
		}()
	}

	log.Info().Msgf("Boutique démarrée sur http://%s", conf.Listen.Website)
	log.Info().Msgf("Admin: http://%s/admin/api/dashboard", conf.Listen.Website)
	if err := r.Run(conf.Listen.Website); err != nil {
		log.Fatal().Err(err).Msg("serveur web")
	}
}

// printReport affiche le résumé des 30 derniers jours et le top des QR codes
func printReport(w io.Writer, data *clanalytics.Data) error {
	fmt.Fprintf(w, "Période %s → %s\n", data.DateRange.From, data.DateRange.To)

	summary := tablewriter.NewWriter(w)
	summary.Header("Métrique", "Valeur")
	summary.Append([]string{"Scans", strconv.FormatInt(data.Summary.TotalScans, 10)})
	summary.Append([]string{"Visiteurs uniques", strconv.FormatInt(data.Summary.UniqueScans, 10)})
	summary.Append([]string{"Conversions", strconv.FormatInt(data.Summary.TotalConversions, 10)})
	summary.Append([]string{"Chiffre d'affaires", fmt.Sprintf("%.2f", data.Summary.TotalRevenue)})
	summary.Append([]string{"Taux de conversion", fmt.Sprintf("%.2f%%", data.Summary.ConversionRate)})
	if err := summary.Render(); err != nil {
		return err
	}

	top := tablewriter.NewWriter(w)
	top.Header("ID", "Type", "Produit", "Scans", "Conversions", "CA")
	for _, qr := range data.TopQRCodes {
		top.Append([]string{
			strconv.FormatUint(uint64(qr.ID), 10),
			qr.Type,
			qr.ProductName,
			strconv.FormatInt(qr.Scans, 10),
			strconv.FormatInt(qr.Conversions, 10),
			fmt.Sprintf("%.2f", qr.Revenue),
		})
	}
	return top.Render()
}

func main() {
	if BuildID == "" {
		BuildID = VERSION
	}

	conf, opts := initConfiguration()
	cllog.InitLogger(conf.Logger, conf.Production)

	app, err := clapp.Init(conf, VERSION, BuildID)
	if err != nil {
		log.Fatal().Err(err).Msg("initialisation")
	}
	defer app.Close()

	if opts.report {
		data, err := app.Analytics.GetAnalyticsData(context.Background(), "", "")
		if err != nil {
			log.Fatal().Err(err).Msg("rapport")
		}
		if err := printReport(os.Stdout, data); err != nil {
			log.Fatal().Err(err).Msg("rapport")
		}
		return
	}

	clconfig.DisplayConfiguration(conf, VERSION)
	if err := app.Start(); err != nil {
		log.Fatal().Err(err).Msg("tâches planifiées")
	}

	r := newServer(conf)
	clmiddleware.InitMiddleware(r, conf.Production)
	setRoutes(r, app)

	startServer(r, conf)
}
