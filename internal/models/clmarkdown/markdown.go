package clmarkdown

import (
	"bytes"
	"html/template"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	stripmd "github.com/writeas/go-strip-markdown"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

type externalLinkTransformer struct{}

var (
	MD       goldmark.Markdown
	initOnce sync.Once
)

// Initialiser le convertisseur Markdown des fiches produit
func InitMarkdown() {
	initOnce.Do(func() {
		MD = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				emoji.Emoji,
			),
			goldmark.WithParserOptions(
				parser.WithASTTransformers(
					util.Prioritized(&externalLinkTransformer{}, 100),
				),
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				html.WithXHTML(),
			),
		)
	})
}

// ConvertMarkdownToHTML rend une description produit, HTML brut désactivé
func ConvertMarkdownToHTML(markdown string) template.HTML {
	InitMarkdown()

	var buf bytes.Buffer
	if err := MD.Convert([]byte(markdown), &buf); err != nil {
		log.Error().Err(err).Msg("Erreur conversion Markdown")
		return template.HTML("<pre>" + template.HTMLEscapeString(markdown) + "</pre>")
	}
	return template.HTML(buf.String())
}

// PlainText retire la syntaxe markdown et les espaces superflus
func PlainText(markdown string) string {
	return strings.Join(strings.Fields(stripmd.Strip(markdown)), " ")
}

// TrimWords garde les n premiers mots, suivis de "..." si tronqué
func TrimWords(s string, n int) string {
	words := strings.Fields(s)
	if n <= 0 || len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "..."
}

// Excerpt texte brut limité à n mots, utilisé dans les PDF
func Excerpt(markdown string, n int) string {
	return TrimWords(PlainText(markdown), n)
}

func (t *externalLinkTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		if link, ok := n.(*ast.Link); ok {
			link.SetAttributeString("target", []byte("_blank"))
			link.SetAttributeString("rel", []byte("noopener noreferrer"))
		}

		return ast.WalkContinue, nil
	})
}
