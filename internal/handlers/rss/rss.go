package handlers_rss

import (
	"net/http"
	"qrcommerce/internal/models/clapp"
	"qrcommerce/internal/models/clcatalog"
	"qrcommerce/internal/models/clmarkdown"
	"qrcommerce/internal/models/clrss"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const maxItems = 50

type RssHandler struct {
	app *clapp.App
}

func NewRssHandler(app *clapp.App) *RssHandler {
	return &RssHandler{app: app}
}

// absolute préfixe les URLs relatives par l'URL du site
func (rh *RssHandler) absolute(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return rh.app.Catalog.SiteURL() + u
}

// Feed flux des produits publiés, filtré par catégorie si :category est fourni
func (rh *RssHandler) Feed(c *gin.Context) {
	catalog := rh.app.Catalog
	site := rh.app.Configuration.Site

	categories, err := catalog.ListCategories()
	if err != nil {
		c.XML(http.StatusInternalServerError, gin.H{"error": "Erreur récupération catégories"})
		return
	}
	names := make(map[uint]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}

	title := site.Name
	link := catalog.ShopURL()
	var categoryID uint
	if slug := c.Param("category"); slug != "" {
		category, err := catalog.GetCategoryBySlug(slug)
		if err != nil {
			c.XML(http.StatusNotFound, gin.H{"error": "Catégorie inconnue"})
			return
		}
		categoryID = category.ID
		title = site.Name + " - " + category.Name
		link = catalog.CategoryLink(category)
	}

	products, err := catalog.ListProducts(clcatalog.StatusPublish, categoryID)
	if err != nil {
		c.XML(http.StatusInternalServerError, gin.H{"error": "Erreur récupération produits"})
		return
	}
	if len(products) > maxItems {
		products = products[:maxItems]
	}

	feed := clrss.NewFeed(title, link, clmarkdown.PlainText(site.Description), rh.app.Version, time.Now())
	feed.Channel.Items = make([]clrss.RSSItem, 0, len(products))

	for i := range products {
		p := &products[i]
		permalink := catalog.Permalink(p)

		description := p.ShortDescription
		if description == "" {
			description = clmarkdown.Excerpt(p.Description, 40)
		}

		item := clrss.RSSItem{
			Title:       p.Name,
			Link:        permalink,
			Description: clmarkdown.PlainText(description),
			GUID:        permalink,
			PubDate:     p.CreatedAt.Format(time.RFC1123Z),
		}
		if p.CategoryID != nil {
			item.Category = names[*p.CategoryID]
		}

		// le QR code du produit en pièce jointe
		if qr, err := rh.app.QRCodes.GetByProduct(p.ID); err == nil {
			item.Enclosure = clrss.Enclosure(qr.FilePath, rh.absolute(qr.FileURL))
		}

		feed.Channel.Items = append(feed.Channel.Items, item)
	}

	output, err := feed.Marshal()
	if err != nil {
		c.XML(http.StatusInternalServerError, gin.H{"error": "Erreur génération RSS"})
		return
	}

	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", output)
}
