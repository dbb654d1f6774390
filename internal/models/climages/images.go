package climages

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"regexp"
	"strconv"
	"strings"

	// décodeurs pour les images produit
	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Color représente une couleur RGB
type Color struct {
	R, G, B int
}

// Resize réduit l'image à maxWidth en gardant le ratio
func Resize(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxWidth {
		return img
	}

	ratio := float64(maxWidth) / float64(width)
	newHeight := int(float64(height) * ratio)

	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	return dst
}

// Thumbnail charge une image produit et la renvoie en PNG redimensionné,
// prête à être embarquée dans un PDF
func Thumbnail(path string, maxWidth int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("image illisible %s: %w", path, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Resize(img, maxWidth)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToHex convertit une couleur en hexadécimal
func (c Color) ToHex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// RGBA convertit en color.RGBA opaque
func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: uint8(c.R), G: uint8(c.G), B: uint8(c.B), A: 0xff}
}

// Lighten éclaircit une couleur par un pourcentage
func (c Color) Lighten(percent float64) Color {
	factor := percent / 100.0
	return Color{
		R: c.R + int(float64(255-c.R)*factor),
		G: c.G + int(float64(255-c.G)*factor),
		B: c.B + int(float64(255-c.B)*factor),
	}
}

// IsHex vérifie le format #rrggbb
func IsHex(s string) bool {
	return hexColorRe.MatchString(s)
}

// HexToColor convertit un hex en Color
func HexToColor(hex string) Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return Color{0, 0, 0}
	}

	r, _ := strconv.ParseInt(hex[0:2], 16, 64)
	g, _ := strconv.ParseInt(hex[2:4], 16, 64)
	b, _ := strconv.ParseInt(hex[4:6], 16, 64)

	return Color{int(r), int(g), int(b)}
}
