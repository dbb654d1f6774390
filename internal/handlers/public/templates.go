package handlers_public

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path/filepath"
	"qrcommerce/internal/models/clmarkdown"

	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	htmlmin "github.com/tdewolff/minify/v2/html"
)

//go:embed templates/*.html
var templatesFS embed.FS

func money(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, currency)
}

// truncate coupe s à n caractères
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

// dict construit les arguments d'un sous-template
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			m[key] = kv[i+1]
		}
	}
	return m
}

// Templates pages publiques, minifiées en production
func Templates(production bool) *template.Template {
	m := minify.New()

	if production {
		m.AddFunc("text/html", htmlmin.Minify)
	}

	tmpl := template.New("").Funcs(template.FuncMap{
		"money":    money,
		"excerpt":  clmarkdown.Excerpt,
		"dict":     dict,
		"truncate": truncate,
	})

	// Lire tous les fichiers HTML
	err := fs.WalkDir(templatesFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".html" {
			return err
		}

		content, err := fs.ReadFile(templatesFS, path)
		if err != nil {
			return err
		}
		minified, err := m.Bytes("text/html", content)
		if err != nil {
			minified = content
		}

		_, err = tmpl.New(path).Parse(string(minified))
		return err
	})
	if err != nil {
		log.Fatal().Err(err).Msg("templates publics")
	}

	return tmpl
}
