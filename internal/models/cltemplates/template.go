package cltemplates

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"qrcommerce/internal/models/clcatalog"
	"qrcommerce/internal/models/clmetrics"
	"qrcommerce/internal/models/clqrcodes"
	"qrcommerce/internal/models/clqrimage"
	"qrcommerce/internal/models/clsecurity"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Positions du QR code dans la page HTML
const (
	PositionTop     = "top"
	PositionCenter  = "center"
	PositionBottom  = "bottom"
	PositionOverlay = "overlay"
)

// Palette atténuée pour économiser l'encre
const (
	HeaderColor = "#7e9bb8"
	BorderColor = "#a8b8c8"
	TextColor   = "#556b7d"
)

type Options struct {
	IncludeHeader     bool   `json:"include_header" form:"include_header"`
	IncludeFooter     bool   `json:"include_footer" form:"include_footer"`
	IncludeNavigation bool   `json:"include_navigation" form:"include_navigation"`
	IncludeSidebar    bool   `json:"include_sidebar" form:"include_sidebar"`
	QRSize            int    `json:"qr_size" form:"qr_size"`
	QRPosition        string `json:"qr_position" form:"qr_position"`
}

// HasElements vrai si au moins un élément de page est demandé
func (o Options) HasElements() bool {
	return o.IncludeHeader || o.IncludeFooter || o.IncludeNavigation || o.IncludeSidebar
}

func (o Options) normalize() Options {
	o.QRSize = clsecurity.SanitizeQRSettings(clsecurity.QRSettings{Size: o.QRSize}).Size
	switch o.QRPosition {
	case PositionTop, PositionBottom, PositionOverlay:
	default:
		o.QRPosition = PositionCenter
	}
	return o
}

// Request demande de génération d'un modèle
type Request struct {
	Type       string  `json:"qr_type" form:"qr_type"`
	ProductID  uint    `json:"product_id" form:"product_id"`
	CategoryID uint    `json:"category_id" form:"category_id"`
	TargetURL  string  `json:"target_url" form:"target_url"`
	Options    Options `json:"template_options"`
}

type Result struct {
	FileURL     string `json:"file_url"`
	TrackingURL string `json:"tracking_url"`
	TemplateURL string `json:"template_url,omitempty"`
	PDFURL      string `json:"pdf_url,omitempty"`
	QRID        uint   `json:"qr_id"`
}

// Site informations imprimées dans les modèles
type Site struct {
	Name        string
	Description string
	URL         string
	Currency    string
}

// Page contenu résolu d'un modèle
type Page struct {
	QR        *clqrcodes.QRCode
	Type      string
	TargetURL string
	Product   *clcatalog.Product
	Category  *clcatalog.Category
	Options   Options
}

type Generator struct {
	repo    *clqrcodes.Repository
	catalog *clcatalog.Store
	images  *clqrimage.Generator
	site    Site
	now     func() time.Time
}

func NewGenerator(repo *clqrcodes.Repository, catalog *clcatalog.Store, site Site) *Generator {
	return &Generator{
		repo:    repo,
		catalog: catalog,
		images:  repo.Images(),
		site:    site,
		now:     time.Now,
	}
}

// TrackingURL ajoute les paramètres de suivi du modèle à base
func TrackingURL(base, qrType string, productID uint, now time.Time) string {
	args := url.Values{
		"qr_source":    {"template"},
		"qr_type":      {qrType},
		"qr_timestamp": {strconv.FormatInt(now.Unix(), 10)},
	}
	if productID > 0 {
		args.Set("qr_product", strconv.FormatUint(uint64(productID), 10))
	}
	return clqrcodes.WithQueryArgs(base, args)
}

// resolve calcule la cible et charge produit ou catégorie
func (g *Generator) resolve(req Request) (*Page, error) {
	page := &Page{Type: req.Type, Options: req.Options.normalize()}

	switch req.Type {
	case clqrcodes.TypeProduct:
		p, err := g.catalog.GetProduct(req.ProductID)
		if err != nil {
			return nil, err
		}
		page.Product = p
		page.TargetURL = g.catalog.Permalink(p)
	case clqrcodes.TypeCategory:
		c, err := g.catalog.GetCategory(req.CategoryID)
		if err != nil {
			return nil, err
		}
		page.Category = c
		page.TargetURL = g.catalog.CategoryLink(c)
	case clqrcodes.TypeShop:
		page.TargetURL = g.catalog.ShopURL()
	case clqrcodes.TypeCustom:
		target, err := clsecurity.ValidateInput(req.TargetURL, "url")
		if err != nil {
			return nil, err
		}
		page.TargetURL = target
	default:
		return nil, errors.Errorf("type de modèle inconnu %q", req.Type)
	}
	return page, nil
}

// Generate crée le QR code suivi, la page HTML et le PDF du modèle
func (g *Generator) Generate(req Request) (*Result, error) {
	page, err := g.resolve(req)
	if err != nil {
		return nil, err
	}

	var productID, categoryID *uint
	if page.Product != nil {
		productID = &page.Product.ID
	}
	if page.Category != nil {
		categoryID = &page.Category.ID
	}

	tracking := TrackingURL(page.TargetURL, page.Type, req.ProductID, g.now())
	qr, err := g.repo.Create(clqrcodes.NewQRCode{
		Type:       page.Type,
		ProductID:  productID,
		CategoryID: categoryID,
		Options:    clqrimage.Options{Size: page.Options.QRSize, Quality: "H"},
		Content: func(id uint) string {
			return clqrcodes.WithQueryArgs(tracking, url.Values{"qr_id": {strconv.FormatUint(uint64(id), 10)}})
		},
	})
	if err != nil {
		return nil, err
	}
	page.QR = qr
	clmetrics.ObserveGenerated(page.Type)

	res := &Result{FileURL: qr.FileURL, TrackingURL: qr.Data, QRID: qr.ID}

	if page.Options.HasElements() {
		name, err := g.GenerateHTML(page)
		if err != nil {
			log.Warn().Err(err).Uint("qr_id", qr.ID).Msg("page modèle non générée")
		} else {
			res.TemplateURL = g.images.URLFor(name)
			res.FileURL = res.TemplateURL
		}
	}

	pdf, err := g.GeneratePDF(page)
	if err != nil {
		log.Warn().Err(err).Uint("qr_id", qr.ID).Msg("PDF modèle en échec, PDF simple")
		pdf, err = g.GenerateSimplePDF(qr)
	}
	if err != nil {
		log.Error().Err(err).Uint("qr_id", qr.ID).Msg("PDF non généré")
	} else {
		res.PDFURL = g.images.URLFor(pdf)
		res.FileURL = res.PDFURL
	}

	return res, nil
}

// outputPath chemin d'un fichier généré dans le dossier des QR codes
func (g *Generator) outputPath(prefix string, id uint, ext string, stamped bool) (string, string, error) {
	name := fmt.Sprintf("%s-%d.%s", prefix, id, ext)
	if stamped {
		name = fmt.Sprintf("%s-%d-%d.%s", prefix, id, g.now().Unix(), ext)
	}
	path, err := g.images.Path(name)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", "", err
	}
	return name, path, nil
}
