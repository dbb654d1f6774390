package cltemplates

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"qrcommerce/internal/models/climages"
	"qrcommerce/internal/models/clmarkdown"
	"qrcommerce/internal/models/clqrcodes"

	"github.com/go-pdf/fpdf"
)

const (
	pageMargin = 10.0
	colWidth   = 95.0
	pxToMM     = 25.4 / 96
)

type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDocument(title, author string) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreator("qrcommerce", true)
	pdf.SetAuthor(author, true)
	pdf.SetTitle(title, true)
	pdf.SetSubject("QR Code Template", true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	// une seule page
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	return &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d *document) color(hex string) (int, int, int) {
	c := climages.HexToColor(hex)
	return c.R, c.G, c.B
}

func (d *document) text(hex string) {
	d.pdf.SetTextColor(d.color(hex))
}

// centered ligne centrée sur toute la largeur
func (d *document) centered(txt string, size float64, style, hex string) {
	d.pdf.SetFont("Arial", style, size)
	d.text(hex)
	d.pdf.CellFormat(0, size*0.5, d.tr(txt), "", 1, "C", false, 0, "")
}

func (d *document) rule(hex string) {
	d.pdf.SetDrawColor(d.color(hex))
	y := d.pdf.GetY()
	w, _ := d.pdf.GetPageSize()
	d.pdf.Line(pageMargin, y, w-pageMargin, y)
}

// image place un PNG de largeur w mm en x, y
func (d *document) image(name string, data []byte, x, y, w float64) float64 {
	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	info := d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if info == nil || !d.pdf.Ok() {
		return 0
	}
	h := w * info.Height() / info.Width()
	d.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	return h
}

func (d *document) save(path string) error {
	return d.pdf.OutputFileAndClose(path)
}

// qrPNG relit l'image du QR code enregistrée
func qrPNG(qr *clqrcodes.QRCode) ([]byte, error) {
	if qr.FilePath == "" {
		return nil, fmt.Errorf("QR code %d sans image", qr.ID)
	}
	return os.ReadFile(qr.FilePath)
}

func (g *Generator) price(amount float64) string {
	return fmt.Sprintf("%.2f %s", amount, g.site.Currency)
}

// GeneratePDF modèle complet, renvoie le nom du fichier créé
func (g *Generator) GeneratePDF(page *Page) (string, error) {
	png, err := qrPNG(page.QR)
	if err != nil {
		return "", err
	}

	d := newDocument("QR Code Template - "+g.site.Name, g.site.Name)
	o := page.Options

	if o.IncludeHeader {
		d.centered(g.site.Name, 18, "B", HeaderColor)
		d.centered(g.site.Description, 10, "", TextColor)
		d.centered("Website: "+g.site.URL, 10, "", TextColor)
		d.pdf.Ln(3)
		d.rule(BorderColor)
		d.pdf.Ln(6)
	}

	if page.Type == clqrcodes.TypeProduct && page.Product != nil {
		g.productBlock(d, page, png)
	} else {
		g.generalBlock(d, page, png)
	}

	if o.IncludeFooter {
		d.pdf.Ln(8)
		d.rule(BorderColor)
		d.pdf.Ln(3)
		now := g.now()
		d.centered(fmt.Sprintf("© %d %s. All rights reserved.", now.Year(), g.site.Name), 8, "", TextColor)
		d.centered("Generated on "+now.Format("January 2, 2006 at 3:04 PM"), 8, "", TextColor)
		d.centered(fmt.Sprintf("QR Code ID: %d", page.QR.ID), 8, "", TextColor)
	}

	if err := d.pdf.Error(); err != nil {
		return "", err
	}
	name, path, err := g.outputPath("qr-template", page.QR.ID, "pdf", true)
	if err != nil {
		return "", err
	}
	if err := d.save(path); err != nil {
		return "", err
	}
	return name, nil
}

// productBlock grille 2x2 : image | prix, description | QR code
func (g *Generator) productBlock(d *document, page *Page, png []byte) {
	p := page.Product
	pdf := d.pdf

	d.centered(p.Name, 16, "B", HeaderColor)
	pdf.Ln(4)

	left := pageMargin
	right := pageMargin + colWidth
	top := pdf.GetY()

	// image produit ou cadre vide
	imgSize := 160 * pxToMM
	imgHeight := 0.0
	if p.ImagePath != "" {
		if thumb, err := climages.Thumbnail(p.ImagePath, 320); err == nil {
			imgHeight = d.image(fmt.Sprintf("product-%d", p.ID), thumb, left+(colWidth-imgSize)/2, top, imgSize)
		}
	}
	if imgHeight == 0 {
		pdf.SetFillColor(245, 245, 245)
		pdf.Rect(left+(colWidth-imgSize)/2, top, imgSize, imgSize, "F")
		pdf.SetXY(left, top+imgSize/2-3)
		pdf.SetFont("Arial", "I", 10)
		d.text("#666666")
		pdf.CellFormat(colWidth, 6, "No image available", "", 0, "C", false, 0, "")
		imgHeight = imgSize
	}

	// prix et résumé
	pdf.SetXY(right+5, top)
	pdf.SetFont("Arial", "B", 16)
	d.text(HeaderColor)
	pdf.CellFormat(colWidth-5, 8, d.tr(g.price(p.Price)), "", 2, "L", false, 0, "")
	if p.OnSale() {
		pdf.SetFont("Arial", "", 9)
		d.text("#999999")
		pdf.CellFormat(colWidth-5, 5, d.tr("Regular price: "+g.price(p.RegularPrice)), "", 2, "L", false, 0, "")
	}
	pdf.Ln(3)
	if p.ShortDescription != "" {
		pdf.SetX(right + 5)
		pdf.SetFont("Arial", "", 11)
		d.text("#666666")
		pdf.MultiCell(colWidth-5, 5, d.tr(clmarkdown.TrimWords(clmarkdown.PlainText(p.ShortDescription), 30)), "", "L", false)
	}
	if p.SKU != "" {
		pdf.Ln(3)
		pdf.SetX(right + 5)
		pdf.SetFont("Arial", "", 9)
		d.text("#999999")
		pdf.CellFormat(colWidth-5, 5, d.tr("SKU: "+p.SKU), "", 2, "L", false, 0, "")
	}

	second := math.Max(top+imgHeight, pdf.GetY()) + 10

	// description longue
	pdf.SetXY(left, second)
	if p.Description != "" {
		pdf.SetFont("Arial", "B", 12)
		d.text(HeaderColor)
		pdf.CellFormat(colWidth, 6, "Description", "", 2, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		d.text("#333333")
		pdf.MultiCell(colWidth-5, 4.5, d.tr(clmarkdown.Excerpt(p.Description, 50)), "", "L", false)
	} else {
		pdf.SetFont("Arial", "I", 10)
		d.text("#666666")
		pdf.CellFormat(colWidth, 6, "No detailed description available.", "", 2, "L", false, 0, "")
	}
	bottom := pdf.GetY()

	// QR code
	pdf.SetXY(right, second)
	pdf.SetFont("Arial", "B", 12)
	d.text(HeaderColor)
	pdf.CellFormat(colWidth, 6, "Scan to Purchase", "", 2, "C", false, 0, "")
	qrSize := math.Min(160, float64(page.Options.QRSize)*0.7) * pxToMM
	h := d.image(fmt.Sprintf("qr-%d", page.QR.ID), png, right+(colWidth-qrSize)/2, second+8, qrSize)
	pdf.SetXY(right, second+10+h)
	pdf.SetFont("Arial", "", 9)
	d.text("#666666")
	pdf.MultiCell(colWidth, 4, "Scan with your mobile device to view and purchase this product.", "", "C", false)

	pdf.SetY(math.Max(bottom, pdf.GetY()))
}

func generalTexts(page *Page) (string, string) {
	switch page.Type {
	case clqrcodes.TypeCategory:
		title := "Product Category"
		if page.Category != nil {
			title = page.Category.Name
		}
		return title, "Scan the QR code below to browse products in this category."
	case clqrcodes.TypeShop:
		return "Our Online Store", "Scan the QR code below to visit our complete online store."
	case clqrcodes.TypeCustom:
		return "Custom Link", "Scan the QR code below to visit:"
	}
	return "QR Code", "Scan the QR code below with your mobile device."
}

func (g *Generator) generalBlock(d *document, page *Page, png []byte) {
	pdf := d.pdf
	title, intro := generalTexts(page)

	d.centered(title, 16, "B", HeaderColor)
	pdf.Ln(2)
	d.centered(intro, 11, "", "#333333")

	if page.Type == clqrcodes.TypeCustom {
		pdf.Ln(2)
		pdf.SetFont("Courier", "", 9)
		pdf.SetFillColor(245, 245, 245)
		d.text("#333333")
		pdf.MultiCell(0, 5, d.tr(page.TargetURL), "", "C", true)
	}

	pdf.Ln(8)
	w, _ := pdf.GetPageSize()
	size := math.Min(200, float64(page.Options.QRSize)) * pxToMM
	h := d.image(fmt.Sprintf("qr-%d", page.QR.ID), png, (w-size)/2, pdf.GetY(), size)
	pdf.SetY(pdf.GetY() + h + 4)
}

// GenerateSimplePDF titre, QR code et URL, utilisé quand le modèle échoue
func (g *Generator) GenerateSimplePDF(qr *clqrcodes.QRCode) (string, error) {
	png, err := qrPNG(qr)
	if err != nil {
		return "", err
	}

	d := newDocument("QR Code", g.site.Name)
	d.pdf.SetY(30)
	d.centered("QR Code", 18, "B", HeaderColor)
	d.pdf.Ln(10)

	w, _ := d.pdf.GetPageSize()
	size := 250 * pxToMM
	h := d.image(fmt.Sprintf("qr-%d", qr.ID), png, (w-size)/2, d.pdf.GetY(), size)
	d.pdf.SetY(d.pdf.GetY() + h + 6)
	d.centered("Scan with your mobile device", 12, "", TextColor)
	d.pdf.Ln(2)
	d.pdf.SetFont("Courier", "", 8)
	d.text(TextColor)
	d.pdf.MultiCell(0, 4, d.tr(qr.Data), "", "C", false)

	if err := d.pdf.Error(); err != nil {
		return "", err
	}
	name, path, err := g.outputPath("qr-simple", qr.ID, "pdf", true)
	if err != nil {
		return "", err
	}
	if err := d.save(path); err != nil {
		return "", err
	}
	return name, nil
}
