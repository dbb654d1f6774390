package clconfig

import (
	"fmt"
	"log/syslog"
	"os"
	"strings"

	"github.com/andskur/argon2-hashing"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	TrustedProxies  []string       `yaml:"trustedproxies"`
	TrustedPlatform string         `yaml:"trustedplatform"`
	Database        DatabaseConfig `yaml:"database"`
	User            UserConfig     `yaml:"user"`
	Production      bool           `yaml:"production"`
	Listen          ListenConfig   `yaml:"listen"`
	Logger          LoggerConfig   `yaml:"logger"`
	Site            SiteConfig     `yaml:"site"`
	QRCode          QRCodeConfig   `yaml:"qrcode"`
	Tracking        TrackingConfig `yaml:"tracking"`
	Cleanup         CleanupConfig  `yaml:"cleanup"`
	Cache           CacheConfig    `yaml:"cache"`
	Security        SecurityConfig `yaml:"security"`
	Kafka           KafkaConfig    `yaml:"kafka"`
	GeoIP           GeoIPConfig    `yaml:"geoip"`
	Widget          WidgetConfig   `yaml:"widget"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	Db   int    `yaml:"db"`
}

type SiteConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	URL         string `yaml:"url"`
	Currency    string `yaml:"currency"`
}

// QRCodeConfig regroupe les valeurs par défaut de génération
type QRCodeConfig struct {
	UploadsPath    string `yaml:"uploadspath"`
	UploadsURL     string `yaml:"uploadsurl"`
	DefaultSize    int    `yaml:"defaultsize"`
	DefaultQuality string `yaml:"defaultquality"`
	ColorDark      string `yaml:"colordark"`
	ColorLight     string `yaml:"colorlight"`
}

// Types de contenu du widget
const (
	WidgetCurrentPage    = "current_page"
	WidgetCurrentProduct = "current_product"
	WidgetHome           = "home"
	WidgetCustom         = "custom"
)

// WidgetConfig QR code affiché dans la barre latérale des pages publiques
type WidgetConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Title        string `yaml:"title"`
	Type         string `yaml:"type"`
	CustomData   string `yaml:"customdata"`
	Size         int    `yaml:"size"`
	ShowDownload bool   `yaml:"showdownload"`
}

type TrackingConfig struct {
	Enabled bool `yaml:"enabled"`
	// durée de la fenêtre d'attribution scan -> commande, en heures
	AttributionHours int `yaml:"attributionhours"`
}

type CleanupConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Schedule       string `yaml:"schedule"`
	Days           int    `yaml:"days"`
	GDPRCompliance bool   `yaml:"gdprcompliance"`
}

type CacheConfig struct {
	Duration int `yaml:"duration"`
}

type SecurityConfig struct {
	RateLimit  int64 `yaml:"ratelimit"`
	RateWindow int   `yaml:"ratewindow"`

	// secret partagé des webhooks de statut de commande, vide = fermés
	WebhookSecret string `yaml:"webhook_secret"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type GeoIPConfig struct {
	Path string `yaml:"path"`
}

type LoggerConfig struct {
	Level  string             `yaml:"level"`
	File   LoggerFileConfig   `yaml:"file"`
	Syslog LoggerSyslogConfig `yaml:"syslog"`
}

type LoggerFileConfig struct {
	Enable     bool   `yaml:"enable"`
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxsize"`
	MaxBackups int    `yaml:"maxbackups"`
	MaxAge     int    `yaml:"maxage"`
	Compress   bool   `yaml:"compress"`
}

type LoggerSyslogConfig struct {
	Enable   bool            `yaml:"enable"`
	Protocol string          `yaml:"protocol"`
	Address  string          `yaml:"address"`
	Tag      string          `yaml:"tag"`
	Priority syslog.Priority `yaml:"priority"`
}

type ListenConfig struct {
	Website string `yaml:"website"`
	Metrics string `yaml:"metrics"`
}

type UserConfig struct {
	Login string `yaml:"login"`
	Pass  string `yaml:"pass"`
	Hash  string `yaml:"hash"`
}

type DatabaseConfig struct {
	Redis RedisConfig `yaml:"redis"`
	Db    string      `yaml:"db"`
	Path  string      `yaml:"path"`
	Dsn   string      `yaml:"dsn"`
}

func CreateExampleConfig(filename string) (string, error) {
	example := &Config{
		Database: DatabaseConfig{
			Db:   "sqlite",
			Path: "./qrcommerce.db",
		},
		User: UserConfig{
			Login: "admin",
			Pass:  "admin1234",
		},
		Production: false,
		Logger: LoggerConfig{
			Level: "info",
			File: LoggerFileConfig{
				Enable: false,
			},
			Syslog: LoggerSyslogConfig{
				Enable: false,
			},
		},
		Listen: ListenConfig{
			Website: "0.0.0.0:8080",
		},
		Site: SiteConfig{
			Name:        "Ma Boutique",
			Description: "Boutique qui utilise qrcommerce",
			URL:         "http://localhost:8080",
			Currency:    "EUR",
		},
		QRCode: QRCodeConfig{
			UploadsPath:    "./uploads/qr-codes",
			UploadsURL:     "/uploads/qr-codes",
			DefaultSize:    300,
			DefaultQuality: "H",
			ColorDark:      "#000000",
			ColorLight:     "#ffffff",
		},
		Tracking: TrackingConfig{
			Enabled:          true,
			AttributionHours: 24,
		},
		Cleanup: CleanupConfig{
			Enabled:        true,
			Schedule:       "0 2 * * *",
			Days:           30,
			GDPRCompliance: true,
		},
		Cache: CacheConfig{
			Duration: 3600,
		},
		Security: SecurityConfig{
			RateLimit:     100,
			RateWindow:    3600,
			WebhookSecret: strings.ReplaceAll(uuid.NewString(), "-", ""),
		},
		Widget: WidgetConfig{
			Enabled:      true,
			Title:        "Partager cette page",
			Type:         WidgetCurrentPage,
			Size:         200,
			ShowDownload: true,
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topic:   "qr-events",
		},
	}

	if filename == "/etc/" {
		example.Listen.Website = "127.0.0.1:8000"
		example.Listen.Metrics = "127.0.0.1:8090"
		example.Production = true
		example.Database.Path = "/var/lib/qrcommerce/sqlite.db"
		example.QRCode.UploadsPath = "/var/lib/qrcommerce/uploads/qr-codes"
		example.Logger.File = LoggerFileConfig{
			Enable:     true,
			Path:       "/var/log/qrcommerce/qrcommerce.log",
			MaxSize:    100,
			MaxBackups: 30,
			MaxAge:     7,
			Compress:   true,
		}
		filename = "/etc/qrcommerce/config.yaml"
	}

	return filename, WriteConfigYaml(filename, example)
}

func WriteConfigYaml(filename string, conf *Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}

// Charger la configuration YAML
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("impossible de lire le fichier %s: %v", filename, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("erreur de parsing YAML: %v", err)
	}

	return &config, nil
}

// LoadAndValidate charge le fichier, complète les valeurs par défaut et
// hash le mot de passe administrateur s'il est encore en clair
func LoadAndValidate(configFile string) (*Config, error) {
	conf, err := LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("erreur chargement config: %v", err)
	}

	if conf.Database.Db == "" {
		return nil, fmt.Errorf("database.db ne peut pas être vide")
	}
	if conf.Database.Db == "sqlite" && conf.Database.Path == "" {
		return nil, fmt.Errorf("database.path ne peut pas être vide")
	}
	if conf.Database.Db == "mysql" && conf.Database.Dsn == "" {
		return nil, fmt.Errorf("database.dsn ne peut pas être vide")
	}

	ApplyDefaults(conf)

	if conf.User.Pass != "" {
		if len(conf.User.Pass) < 8 {
			return nil, fmt.Errorf("le mot de passe doit contenir au moins 8 caractères")
		}

		hash, err := argon2.GenerateFromPassword([]byte(conf.User.Pass), argon2.DefaultParams)
		if err != nil {
			return nil, err
		}
		conf.User.Hash = string(hash)
		conf.User.Pass = ""
		if err := WriteConfigYaml(configFile, conf); err != nil {
			return nil, err
		}
	}

	return conf, nil
}

// ApplyDefaults remplit les champs optionnels laissés vides
func ApplyDefaults(conf *Config) {
	switch conf.Widget.Type {
	case WidgetCurrentPage, WidgetCurrentProduct, WidgetHome, WidgetCustom:
	default:
		conf.Widget.Type = WidgetCurrentPage
	}
	if conf.Widget.Size <= 0 {
		conf.Widget.Size = 200
	}
	if conf.Listen.Website == "" {
		conf.Listen.Website = "localhost:8080"
	}
	if strings.HasPrefix(conf.Listen.Website, ":") {
		conf.Listen.Website = "localhost" + conf.Listen.Website
	}
	if conf.Site.URL == "" {
		conf.Site.URL = "http://" + conf.Listen.Website
	}
	conf.Site.URL = strings.TrimRight(conf.Site.URL, "/")
	if conf.Site.Currency == "" {
		conf.Site.Currency = "EUR"
	}
	if conf.QRCode.UploadsPath == "" {
		conf.QRCode.UploadsPath = "./uploads/qr-codes"
	}
	if conf.QRCode.UploadsURL == "" {
		conf.QRCode.UploadsURL = "/uploads/qr-codes"
	}
	if conf.QRCode.DefaultSize == 0 {
		conf.QRCode.DefaultSize = 300
	}
	if conf.QRCode.DefaultQuality == "" {
		conf.QRCode.DefaultQuality = "H"
	}
	if conf.QRCode.ColorDark == "" {
		conf.QRCode.ColorDark = "#000000"
	}
	if conf.QRCode.ColorLight == "" {
		conf.QRCode.ColorLight = "#ffffff"
	}
	if conf.Tracking.AttributionHours <= 0 {
		conf.Tracking.AttributionHours = 24
	}
	if conf.Cleanup.Schedule == "" {
		conf.Cleanup.Schedule = "0 2 * * *"
	}
	if conf.Cleanup.Days <= 0 {
		conf.Cleanup.Days = 30
	}
	if conf.Cache.Duration <= 0 {
		conf.Cache.Duration = 3600
	}
	if conf.Security.RateLimit <= 0 {
		conf.Security.RateLimit = 100
	}
	if conf.Security.RateWindow <= 0 {
		conf.Security.RateWindow = 3600
	}
	if conf.Kafka.Topic == "" {
		conf.Kafka.Topic = "qr-events"
	}
}

func CreateExample(shouldCreateExample bool, configFile string) {
	// Handle example creation
	if shouldCreateExample {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
		}
		os.Exit(1)
	}

	_, err := os.Stat(configFile)
	if err != nil && os.IsNotExist(err) {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
	}
}

func handleExampleCreation(filename string) error {
	if filename == "" {
		filename = "qrcommerce.yaml"
	}
	filename, err := CreateExampleConfig(filename)
	if err != nil {
		return fmt.Errorf("erreur création exemple: %v", err)
	}

	fmt.Printf("✅ Fichier exemple créé: %s\n", filename)
	fmt.Println("⚠️  user.pass sera automatiquement hash en argon2 dans user.hash au premier lancement")
	return nil
}

func DisplayConfiguration(config *Config, version string) {
	logPrintf("qrcommerce version %s", version)

	logPrintf("Mode Production %v", config.Production)
	logPrintf("Administrateur login %s", config.User.Login)
	logPrintf("Boutique \"%s\" sur %s", config.Site.Name, config.Site.URL)

	logPrintf("Database")
	if config.Database.Db == "sqlite" {
		logPrintf("  • Type sqlite")
		logPrintf("  • Path %s", config.Database.Path)
	}
	if config.Database.Db == "mysql" {
		logPrintf("  • Type mysql")
		logPrintf("  • DSN %s", config.Database.Dsn)
	}
	if config.Database.Redis.Addr != "" {
		logPrintf("  • Redis %s (transients, cache, compteurs)", config.Database.Redis.Addr)
	} else {
		logPrintf("  • Redis absent, stockage mémoire")
	}

	logPrintf("QR codes")
	logPrintf("  • Dossier %s servi sur %s", config.QRCode.UploadsPath, config.QRCode.UploadsURL)
	logPrintf("  • Taille %d, correction %s", config.QRCode.DefaultSize, config.QRCode.DefaultQuality)

	if config.Tracking.Enabled {
		logPrintf("Tracking activé, fenêtre d'attribution %dh", config.Tracking.AttributionHours)
	} else {
		logPrintf("Tracking désactivé")
	}
	if config.Cleanup.Enabled {
		logPrintf("Nettoyage \"%s\", conservation %d jours, RGPD %v", config.Cleanup.Schedule, config.Cleanup.Days, config.Cleanup.GDPRCompliance)
	}
	if config.Kafka.Enabled {
		logPrintf("Kafka activé sur %s topic %s", strings.Join(config.Kafka.Brokers, ","), config.Kafka.Topic)
	}
	if config.GeoIP.Path != "" {
		logPrintf("GeoIP %s", config.GeoIP.Path)
	}

	// Logger
	logPrintf("Logger en level %s", config.Logger.Level)
	if config.Logger.File.Enable {
		logPrintf("  Log en fichier activé")
		logPrintf("  • Path %s", config.Logger.File.Path)
		logPrintf("  • Max size %d", config.Logger.File.MaxSize)
		logPrintf("  • Max age %d", config.Logger.File.MaxAge)
		logPrintf("  • Max backup %d", config.Logger.File.MaxBackups)
		logPrintf("  • Compression %v", config.Logger.File.Compress)
	} else {
		logPrintf("  Log en fichier désactivé")
	}
	if config.Logger.Syslog.Enable {
		logPrintf("  Log en syslog activé")
		logPrintf("  • Protocol %s", config.Logger.Syslog.Protocol)
		logPrintf("  • Address %s", config.Logger.Syslog.Address)
		logPrintf("  • Tag %s", config.Logger.Syslog.Tag)
	} else {
		logPrintf("  Log en syslog désactivé")
	}
}

// Info logue avec printf
func logPrintf(format string, a ...any) {
	log.Info().Msg(fmt.Sprintf(format, a...))
}
