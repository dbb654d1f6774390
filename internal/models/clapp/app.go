package clapp

import (
	"fmt"
	"qrcommerce/internal/clredis"
	"qrcommerce/internal/gormzerologger"
	"qrcommerce/internal/models/clanalytics"
	"qrcommerce/internal/models/clcache"
	"qrcommerce/internal/models/clcaptchas"
	"qrcommerce/internal/models/clcatalog"
	"qrcommerce/internal/models/clconfig"
	"qrcommerce/internal/models/clerrors"
	"qrcommerce/internal/models/clevents"
	"qrcommerce/internal/models/clorders"
	"qrcommerce/internal/models/clqrcodes"
	"qrcommerce/internal/models/clqrimage"
	"qrcommerce/internal/models/clsecurity"
	"qrcommerce/internal/models/clsettings"
	"qrcommerce/internal/models/cltemplates"
	"qrcommerce/internal/models/cltracking"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	instance *App
)

// App services partagés par les handlers
type App struct {
	Configuration *clconfig.Config
	Db            *gorm.DB
	Redis         *redis.Client
	Store         clredis.Store
	Cache         *clcache.Cache
	Settings      *clsettings.Service
	Catalog       *clcatalog.Store
	Orders        *clorders.Store
	Images        *clqrimage.Generator
	QRCodes       *clqrcodes.Repository
	Tracking      *cltracking.Service
	Analytics     *clanalytics.AnalyticsService
	Cleaner       *clanalytics.Cleaner
	Templates     *cltemplates.Generator
	Errors        *clerrors.Handler
	Events        clevents.Publisher
	Captcha       *clcaptchas.Captchas
	Limiter       *clsecurity.RateLimiter
	Version       string
	BuildID       string
}

func GetInstance() *App {
	if instance == nil {
		instance = &App{}
	}
	return instance
}

// Models tables gérées par l'application
func Models() []any {
	return []any{
		&clcatalog.Category{}, &clcatalog.Product{},
		&clorders.Order{}, &clorders.OrderItem{}, &clorders.OrderMeta{},
		&clqrcodes.QRCode{}, &clqrcodes.Scan{}, &clqrcodes.Conversion{},
		&clerrors.ErrorLog{}, &clsettings.Setting{},
	}
}

// OpenDatabase ouvre sqlite ou mysql avec le logger zerolog puis migre les tables
func OpenDatabase(conf *clconfig.Config) (*gorm.DB, error) {
	gormLogger := gormzerologger.New(gormzerologger.LevelFor(conf.Logger.Level, conf.Production))

	var db *gorm.DB
	var err error
	switch conf.Database.Db {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(conf.Database.Path), &gorm.Config{
			Logger: gormLogger,
		})
	case "mysql":
		db, err = gorm.Open(mysql.Open(conf.Database.Dsn), &gorm.Config{
			Logger: gormLogger,
		})
	default:
		err = fmt.Errorf("le type de database doit etre sqlite ou mysql")
	}
	if err != nil {
		return nil, fmt.Errorf("erreur connexion base de données: %w", err)
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("erreur migration: %w", err)
	}
	return db, nil
}

// Init construit tous les services à partir de la configuration
func Init(conf *clconfig.Config, version string, buildid string) (*App, error) {
	db, err := OpenDatabase(conf)
	if err != nil {
		return nil, err
	}
	app, err := New(conf, db, clredis.NewClient(conf.Database.Redis.Addr, conf.Database.Redis.Db))
	if err != nil {
		return nil, err
	}
	app.Version = version
	app.BuildID = buildid

	// catalogue de démonstration hors production
	if !conf.Production {
		if err := app.Catalog.Seed(); err != nil {
			log.Warn().Err(err).Msg("seed du catalogue")
		}
	}
	instance = app
	return app, nil
}

// New assemble les services sur une base déjà ouverte, redisClient peut être nil
func New(conf *clconfig.Config, db *gorm.DB, redisClient *redis.Client) (*App, error) {
	app := &App{
		Configuration: conf,
		Db:            db,
		Redis:         redisClient,
		Store:         clredis.New(redisClient),
	}

	app.Settings = clsettings.NewService(db, clsettings.Defaults(conf))
	settings := app.Settings.Get()

	app.Cache = clcache.New(app.Store, time.Duration(settings.CacheDuration)*time.Second)
	app.Catalog = clcatalog.NewStore(db, conf.Site.URL)
	app.Orders = clorders.NewStore(db)
	app.Errors = clerrors.NewHandler(db)
	app.Events = clevents.New(conf.Kafka)
	app.Captcha = clcaptchas.New(app.Store)
	app.Limiter = clsecurity.NewRateLimiter(int64(settings.RateLimit), time.Duration(conf.Security.RateWindow)*time.Second)

	images, err := clqrimage.NewGenerator(conf.QRCode.UploadsPath, conf.QRCode.UploadsURL, settings.QROptions())
	if err != nil {
		return nil, fmt.Errorf("dossier des QR codes: %w", err)
	}
	app.Images = images

	app.QRCodes = clqrcodes.NewRepository(db, app.Catalog, images)
	app.QRCodes.SetTrackingSwitch(app.Settings)

	app.Tracking = cltracking.NewService(cltracking.Deps{
		DB:         db,
		QRCodes:    app.QRCodes,
		Orders:     app.Orders,
		Settings:   app.Settings,
		Transients: app.Store,
		Realtime:   cltracking.NewRealtime(redisClient),
		Geo:        cltracking.OpenGeoIP(conf.GeoIP.Path),
		Events:     app.Events,
		Window:     time.Duration(conf.Tracking.AttributionHours) * time.Hour,
	})

	app.Analytics = clanalytics.NewAnalyticsService(db, app.Cache, app.Tracking.Realtime())
	app.Cleaner = clanalytics.NewCleaner(db, app.Errors, func() (int, bool) {
		s := app.Settings.Get()
		return s.AutoCleanupDays, s.GDPRCompliance
	})

	app.Templates = cltemplates.NewGenerator(app.QRCodes, app.Catalog, cltemplates.Site{
		Name:        conf.Site.Name,
		Description: conf.Site.Description,
		URL:         conf.Site.URL,
		Currency:    conf.Site.Currency,
	})

	// les réglages modifiés s'appliquent sans redémarrage
	app.Settings.OnChange(func(s clsettings.Settings) {
		app.Images.SetDefaults(s.QROptions())
		app.Cache.SetDuration(time.Duration(s.CacheDuration) * time.Second)
		app.Limiter.SetLimit(int64(s.RateLimit))
	})

	return app, nil
}

// Start lance les tâches planifiées
func (app *App) Start() error {
	if !app.Configuration.Cleanup.Enabled {
		return nil
	}
	if err := app.Cleaner.Start(app.Configuration.Cleanup.Schedule); err != nil {
		return fmt.Errorf("planification du nettoyage: %w", err)
	}
	log.Info().Str("schedule", app.Configuration.Cleanup.Schedule).Msg("Nettoyage planifié")
	return nil
}

// Close arrête le cron et ferme les connexions
func (app *App) Close() {
	app.Cleaner.Stop()
	if err := app.Events.Close(); err != nil {
		log.Warn().Err(err).Msg("fermeture publisher")
	}
	if app.Redis != nil {
		app.Redis.Close()
	}
	if sqlDB, err := app.Db.DB(); err == nil {
		sqlDB.Close()
	}
}
