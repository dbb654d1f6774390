package cltemplates

import (
	"bytes"
	"embed"
	"encoding/base64"
	"html/template"
	"os"
	"qrcommerce/internal/models/climages"
	"qrcommerce/internal/models/clmarkdown"
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	htmlmin "github.com/tdewolff/minify/v2/html"
)

//go:embed templates/*.html
var templatesFS embed.FS

var (
	pageTmpl *template.Template
	pageMin  *minify.M
	pageOnce sync.Once
)

func initPage() {
	pageOnce.Do(func() {
		pageTmpl = template.Must(template.New("").Funcs(template.FuncMap{
			"markdown": clmarkdown.ConvertMarkdownToHTML,
			"excerpt":  clmarkdown.Excerpt,
			"scaled": func(size int, factor float64) int {
				return int(float64(size) * factor)
			},
		}).ParseFS(templatesFS, "templates/*.html"))

		pageMin = minify.New()
		pageMin.AddFunc("text/html", htmlmin.Minify)
		pageMin.AddFunc("text/css", css.Minify)
	})
}

type pageData struct {
	*Page
	Site    Site
	Year    int
	Price   string
	Regular string
	Image   template.URL
	Links   []link
}

type link struct {
	Label string
	URL   string
}

// RenderHTML page du modèle minifiée
func (g *Generator) RenderHTML(page *Page) ([]byte, error) {
	initPage()

	site := strings.TrimRight(g.site.URL, "/")
	data := pageData{
		Page: page,
		Site: g.site,
		Year: g.now().Year(),
		Links: []link{
			{"Home", site + "/"},
			{"Shop", site + "/shop"},
		},
	}
	if page.Product != nil {
		data.Price = g.price(page.Product.Price)
		if page.Product.OnSale() {
			data.Regular = g.price(page.Product.RegularPrice)
		}
		// image embarquée, la page reste autonome
		if page.Product.ImagePath != "" {
			if thumb, err := climages.Thumbnail(page.Product.ImagePath, 320); err == nil {
				data.Image = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(thumb))
			}
		}
	}

	var buf bytes.Buffer
	if err := pageTmpl.ExecuteTemplate(&buf, "template.html", data); err != nil {
		return nil, err
	}
	return pageMin.Bytes("text/html", buf.Bytes())
}

// GenerateHTML écrit qr-template-<id>.html et renvoie son nom
func (g *Generator) GenerateHTML(page *Page) (string, error) {
	out, err := g.RenderHTML(page)
	if err != nil {
		return "", err
	}
	name, path, err := g.outputPath("qr-template", page.QR.ID, "html", false)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return "", err
	}
	return name, nil
}
