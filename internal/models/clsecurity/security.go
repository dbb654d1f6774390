package clsecurity

import (
	"errors"
	"fmt"
	"html"
	"net/mail"
	"net/url"
	"path/filepath"
	"qrcommerce/internal/models/climages"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalidInput  = errors.New("entrée invalide")
	ErrPathTraversal = errors.New("chemin hors du dossier autorisé")

	tagsRe = regexp.MustCompile(`<[^>]*>`)
)

// Qualités de correction d'erreur acceptées
var Qualities = []string{"L", "M", "Q", "H"}

const (
	MinQRSize     = 100
	MaxQRSize     = 1000
	DefaultQRSize = 300
)

// QRSettings réglages de rendu soumis par l'administration
type QRSettings struct {
	Size       int    `json:"size"`
	Quality    string `json:"quality"`
	ColorDark  string `json:"color_dark"`
	ColorLight string `json:"color_light"`
}

// SanitizeText supprime les balises et les espaces superflus
func SanitizeText(s string) string {
	s = tagsRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	return s
}

// SanitizeTextarea supprime les balises en gardant les retours à la ligne
func SanitizeTextarea(s string) string {
	lines := strings.Split(tagsRe.ReplaceAllString(s, ""), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ValidateInput nettoie value selon kind : text, textarea, url, int, email, color
func ValidateInput(value, kind string) (string, error) {
	value = strings.TrimSpace(value)

	switch kind {
	case "text":
		return SanitizeText(value), nil
	case "textarea":
		return SanitizeTextarea(value), nil
	case "url":
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", fmt.Errorf("%w: url %q", ErrInvalidInput, value)
		}
		return u.String(), nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", fmt.Errorf("%w: entier %q", ErrInvalidInput, value)
		}
		return strconv.Itoa(n), nil
	case "email":
		addr, err := mail.ParseAddress(value)
		if err != nil {
			return "", fmt.Errorf("%w: email %q", ErrInvalidInput, value)
		}
		return addr.Address, nil
	case "color":
		if !climages.IsHex(value) {
			return "", fmt.Errorf("%w: couleur %q", ErrInvalidInput, value)
		}
		return strings.ToLower(value), nil
	default:
		return html.EscapeString(value), nil
	}
}

// SecureFilePath résout name dans base et refuse toute sortie du dossier
func SecureFilePath(base, name string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}

	target := name
	if !filepath.IsAbs(target) {
		target = filepath.Join(absBase, name)
	}
	target = filepath.Clean(target)

	if target != absBase && !strings.HasPrefix(target, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, name)
	}
	return target, nil
}

// SanitizeQRSettings borne la taille, valide la qualité et les couleurs
func SanitizeQRSettings(in QRSettings) QRSettings {
	out := in

	if out.Size == 0 {
		out.Size = DefaultQRSize
	}
	out.Size = min(max(out.Size, MinQRSize), MaxQRSize)

	out.Quality = strings.ToUpper(strings.TrimSpace(out.Quality))
	valid := false
	for _, q := range Qualities {
		if out.Quality == q {
			valid = true
			break
		}
	}
	if !valid {
		out.Quality = "H"
	}

	if !climages.IsHex(out.ColorDark) {
		out.ColorDark = "#000000"
	}
	if !climages.IsHex(out.ColorLight) {
		out.ColorLight = "#ffffff"
	}
	return out
}
