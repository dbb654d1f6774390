package clrss

import (
	"encoding/xml"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"
)

// RSS flux RSS 2.0 du catalogue
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel Channel  `xml:"channel"`
}

type Channel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	Copyright     string    `xml:"copyright,omitempty"`
	Generator     string    `xml:"generator"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []RSSItem `xml:"item"`
}

// RSSItem un produit du flux, le QR code en pièce jointe
type RSSItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	Description string        `xml:"description"`
	Category    string        `xml:"category,omitempty"`
	GUID        string        `xml:"guid"`
	PubDate     string        `xml:"pubDate"`
	Enclosure   *RSSEnclosure `xml:"enclosure"`
}

type RSSEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// NewFeed canal vide daté de now
func NewFeed(title, link, description, version string, now time.Time) *RSS {
	return &RSS{
		Version: "2.0",
		Channel: Channel{
			Title:         title,
			Link:          link,
			Description:   description,
			Language:      "fr-FR",
			Copyright:     fmt.Sprintf("© %d %s", now.Year(), title),
			Generator:     fmt.Sprintf("qrcommerce v%s", version),
			LastBuildDate: now.Format(time.RFC1123Z),
		},
	}
}

// Enclosure pièce jointe d'un fichier local, nil si le fichier est absent
func Enclosure(path, url string) *RSSEnclosure {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &RSSEnclosure{URL: url, Length: info.Size(), Type: mimeType}
}

// Marshal document XML avec en-tête
func (r *RSS) Marshal() ([]byte, error) {
	output, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
