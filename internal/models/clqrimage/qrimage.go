package clqrimage

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"qrcommerce/internal/models/climages"
	"qrcommerce/internal/models/clsecurity"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"
)

// Options réglages de rendu d'un QR code
type Options = clsecurity.QRSettings

// Result fichier PNG écrit dans le dossier des uploads
type Result struct {
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
	FileURL  string `json:"file_url"`
	Size     int    `json:"size"`
}

type Generator struct {
	uploadsPath string
	uploadsURL  string
	mu          sync.RWMutex
	defaults    Options
}

func NewGenerator(uploadsPath, uploadsURL string, defaults Options) (*Generator, error) {
	if err := os.MkdirAll(uploadsPath, 0755); err != nil {
		return nil, fmt.Errorf("création du dossier %s: %w", uploadsPath, err)
	}
	return &Generator{
		uploadsPath: uploadsPath,
		uploadsURL:  strings.TrimRight(uploadsURL, "/"),
		defaults:    clsecurity.SanitizeQRSettings(defaults),
	}, nil
}

func (g *Generator) UploadsPath() string {
	return g.uploadsPath
}

func (g *Generator) Defaults() Options {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.defaults
}

// SetDefaults applique les réglages de l'administration
func (g *Generator) SetDefaults(o Options) {
	g.mu.Lock()
	g.defaults = clsecurity.SanitizeQRSettings(o)
	g.mu.Unlock()
}

// ErrorLevel convertit L/M/Q/H en niveau de correction, H par défaut
func ErrorLevel(q string) qrcode.RecoveryLevel {
	switch strings.ToUpper(q) {
	case "L":
		return qrcode.Low
	case "M":
		return qrcode.Medium
	case "Q":
		return qrcode.High
	default:
		return qrcode.Highest
	}
}

// Normalize complète o avec les valeurs par défaut puis le borne
func (g *Generator) Normalize(o Options) Options {
	def := g.Defaults()
	if o.Size == 0 {
		o.Size = def.Size
	}
	if o.Quality == "" {
		o.Quality = def.Quality
	}
	if o.ColorDark == "" {
		o.ColorDark = def.ColorDark
	}
	if o.ColorLight == "" {
		o.ColorLight = def.ColorLight
	}
	return clsecurity.SanitizeQRSettings(o)
}

// Generate renvoie l'image PNG du QR code encodant data
func (g *Generator) Generate(data string, o Options) ([]byte, error) {
	if strings.TrimSpace(data) == "" {
		return nil, fmt.Errorf("contenu du QR code vide")
	}
	o = g.Normalize(o)

	qr, err := qrcode.New(data, ErrorLevel(o.Quality))
	if err != nil {
		return nil, fmt.Errorf("encodage QR: %w", err)
	}
	qr.ForegroundColor = climages.HexToColor(o.ColorDark).RGBA()
	qr.BackgroundColor = climages.HexToColor(o.ColorLight).RGBA()

	png, err := qr.PNG(o.Size)
	if err != nil {
		return nil, fmt.Errorf("rendu PNG: %w", err)
	}
	return png, nil
}

// GenerateAndSave écrit le PNG sous un nom unique dans le dossier des uploads
func (g *Generator) GenerateAndSave(data string, o Options) (*Result, error) {
	o = g.Normalize(o)
	png, err := g.Generate(data, o)
	if err != nil {
		return nil, err
	}

	sum := md5.Sum([]byte(data + strconv.FormatInt(time.Now().UnixNano(), 10)))
	name := "qr_" + hex.EncodeToString(sum[:]) + ".png"

	path, err := clsecurity.SecureFilePath(g.uploadsPath, name)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, png, 0644); err != nil {
		return nil, fmt.Errorf("écriture %s: %w", name, err)
	}

	log.Debug().Str("file", name).Int("size", o.Size).Msg("QR code généré")

	return &Result{
		FileName: name,
		FilePath: path,
		FileURL:  g.URLFor(name),
		Size:     o.Size,
	}, nil
}

// URLFor URL publique d'un fichier du dossier des uploads
func (g *Generator) URLFor(name string) string {
	return g.uploadsURL + "/" + filepath.Base(name)
}

// Path chemin absolu d'un fichier du dossier des uploads
func (g *Generator) Path(name string) (string, error) {
	return clsecurity.SecureFilePath(g.uploadsPath, name)
}

// Remove supprime un fichier généré, uniquement dans le dossier des uploads
func (g *Generator) Remove(path string) error {
	if path == "" {
		return nil
	}
	safe, err := clsecurity.SecureFilePath(g.uploadsPath, path)
	if err != nil {
		return err
	}
	if err := os.Remove(safe); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
