package cllog

import (
	"fmt"
	"io"
	"log/syslog"
	"os"
	"path"
	"path/filepath"
	"qrcommerce/internal/models/clconfig"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SyslogLevelWriter adapte syslog.Writer pour gérer les niveaux zerolog
type SyslogLevelWriter struct {
	Writer *syslog.Writer
}

// InitLogger configure le logger global Zerolog
func InitLogger(cfg clconfig.LoggerConfig, production bool) {
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		dir := path.Dir(file)
		return path.Join(path.Base(dir), path.Base(file)) + ":" + strconv.Itoa(line)
	}
	// les erreurs pkg/errors de la couche stockage remontent leur pile
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	writers, err := buildWriters(cfg, production)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup log writers")
	}

	log.Logger = zerolog.New(io.MultiWriter(writers...)).
		With().
		Timestamp().
		Caller().
		Logger()

	environnment := "developpement"
	if production {
		environnment = "production"
	}
	log.Info().
		Str("environment", environnment).
		Str("level", cfg.Level).
		Bool("log_to_file", cfg.File.Enable).
		Bool("log_to_syslog", cfg.Syslog.Enable).
		Msg("Logger initialized")
}

func buildWriters(cfg clconfig.LoggerConfig, production bool) ([]io.Writer, error) {
	var writers []io.Writer

	// Writer pour la console
	if !production {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}

	if cfg.File.Enable {
		fileWriter, err := setupFileWriter(cfg.File)
		if err != nil {
			return nil, err
		}
		writers = append(writers, fileWriter)
	}

	if cfg.Syslog.Enable {
		syslogWriter, err := setupSyslogWriter(cfg.Syslog)
		if err != nil {
			return nil, err
		}
		writers = append(writers, syslogWriter)
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	return writers, nil
}

// Write implémente io.Writer et route vers la bonne fonction syslog selon le niveau
func (w *SyslogLevelWriter) Write(p []byte) (n int, err error) {
	msg := string(p)

	switch extractLevelFromJSON(msg) {
	case "debug":
		return len(p), w.Writer.Debug(msg)
	case "warn", "warning":
		return len(p), w.Writer.Warning(msg)
	case "error":
		return len(p), w.Writer.Err(msg)
	case "fatal", "panic":
		return len(p), w.Writer.Crit(msg)
	default:
		return len(p), w.Writer.Info(msg)
	}
}

// extractLevelFromJSON extrait le niveau de log d'un message JSON zerolog
// Format attendu: {"level":"info",...}
func extractLevelFromJSON(msg string) string {
	startIdx := strings.Index(msg, `"level":"`)
	if startIdx == -1 {
		return ""
	}
	startIdx += len(`"level":"`)

	endIdx := strings.Index(msg[startIdx:], `"`)
	if endIdx == -1 {
		return ""
	}

	return msg[startIdx : startIdx+endIdx]
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// setupFileWriter configure le writer pour les fichiers
func setupFileWriter(cfg clconfig.LoggerFileConfig) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, err
	}

	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}, nil
}

// setupSyslogWriter configure le writer pour syslog
func setupSyslogWriter(cfg clconfig.LoggerSyslogConfig) (io.Writer, error) {
	tag := cfg.Tag
	if tag == "" {
		tag = "qrcommerce"
	}
	priority := cfg.Priority
	if priority == 0 {
		priority = syslog.LOG_INFO | syslog.LOG_LOCAL0
	}

	var writer *syslog.Writer
	var err error

	// Connexion locale (socket unix) ou distante (tcp/udp)
	if cfg.Protocol == "" || cfg.Address == "" {
		writer, err = syslog.New(priority, tag)
	} else {
		writer, err = syslog.Dial(cfg.Protocol, cfg.Address, priority, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to syslog: %w", err)
	}

	return &SyslogLevelWriter{Writer: writer}, nil
}
