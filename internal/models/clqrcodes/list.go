package clqrcodes

import (
	"math"
	"qrcommerce/internal/models/clcatalog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const DefaultPerPage = 20

// colonnes triables et leur expression SQL
var sortColumns = map[string]string{
	"product_name": "product_name",
	"scans":        "scans",
	"conversions":  "conversions",
	"revenue":      "revenue",
	"created_at":   "q.created_at",
}

type ListQuery struct {
	Page       int    `form:"page"`
	PerPage    int    `form:"per_page"`
	Status     string `form:"status"`
	CategoryID uint   `form:"category"`
	OrderBy    string `form:"orderby"`
	Order      string `form:"order"`
}

// ListRow ligne du tableau d'administration
type ListRow struct {
	ID             uint      `json:"id"`
	ProductID      *uint     `json:"product_id"`
	Type           string    `json:"type"`
	Data           string    `json:"qr_code_data" gorm:"column:qr_code_data"`
	FileURL        string    `json:"file_url"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	ProductName    string    `json:"product_name"`
	Scans          int64     `json:"scans"`
	Visitors       int64     `json:"visitors"`
	Conversions    int64     `json:"conversions"`
	Revenue        float64   `json:"revenue"`
	ConversionRate float64   `json:"conversion_rate"`
}

type ListResult struct {
	Items      []ListRow `json:"items"`
	Total      int64     `json:"total_items"`
	Page       int       `json:"page"`
	PerPage    int       `json:"per_page"`
	TotalPages int       `json:"total_pages"`
}

func (q *ListQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 || q.PerPage > 100 {
		q.PerPage = DefaultPerPage
	}
	if _, ok := sortColumns[q.OrderBy]; !ok {
		q.OrderBy = "created_at"
	}
	q.Order = strings.ToUpper(q.Order)
	if q.Order != "ASC" {
		q.Order = "DESC"
	}
	if q.Status != StatusActive && q.Status != StatusInactive {
		q.Status = ""
	}
}

// ConversionRate pourcentage arrondi à 2 décimales
func ConversionRate(conversions, scans int64) float64 {
	if scans == 0 {
		return 0
	}
	return math.Round(float64(conversions)/float64(scans)*10000) / 100
}

// List page du tableau avec statistiques par QR code
func (r *Repository) List(q ListQuery) (*ListResult, error) {
	q.normalize()

	base := r.db.Table("qr_codes AS q")
	if q.Status != "" {
		base = base.Where("q.status = ?", q.Status)
	}
	if q.CategoryID > 0 {
		base = base.Where("EXISTS (SELECT 1 FROM products p2 WHERE p2.id = q.product_id AND p2.category_id = ?)", q.CategoryID)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, errors.Wrap(err, "comptage du tableau")
	}

	scans := r.db.Model(&Scan{}).
		Select("qr_code_id, COUNT(*) AS scans, COUNT(DISTINCT ip_address) AS visitors").
		Group("qr_code_id")
	conversions := r.db.Table("qr_scans AS s").
		Select("s.qr_code_id, COUNT(c.id) AS conversions, SUM(c.revenue) AS revenue").
		Joins("LEFT JOIN qr_conversions c ON s.id = c.scan_id").
		Group("s.qr_code_id")

	var rows []ListRow
	err := base.
		Select(`q.id, q.product_id, q.type, q.qr_code_data, q.file_url, q.status, q.created_at,
			COALESCE(p.name, '') AS product_name,
			COALESCE(s.scans, 0) AS scans,
			COALESCE(s.visitors, 0) AS visitors,
			COALESCE(c.conversions, 0) AS conversions,
			COALESCE(c.revenue, 0) AS revenue`).
		Joins("LEFT JOIN products p ON q.product_id = p.id").
		Joins("LEFT JOIN (?) s ON q.id = s.qr_code_id", scans).
		Joins("LEFT JOIN (?) c ON q.id = c.qr_code_id", conversions).
		Order(sortColumns[q.OrderBy] + " " + q.Order + ", q.id " + q.Order).
		Limit(q.PerPage).
		Offset((q.Page - 1) * q.PerPage).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "lecture du tableau")
	}

	for i := range rows {
		rows[i].ConversionRate = ConversionRate(rows[i].Conversions, rows[i].Scans)
	}

	return &ListResult{
		Items:      rows,
		Total:      total,
		Page:       q.Page,
		PerPage:    q.PerPage,
		TotalPages: int(math.Ceil(float64(total) / float64(q.PerPage))),
	}, nil
}

// ProductsWithoutQRCode produits publiés sans QR code, triés par nom
func (r *Repository) ProductsWithoutQRCode(limit int) ([]clcatalog.Product, error) {
	if limit <= 0 {
		limit = 200
	}
	var products []clcatalog.Product
	err := r.db.
		Where("status = ?", clcatalog.StatusPublish).
		Where("NOT EXISTS (SELECT 1 FROM qr_codes q WHERE q.product_id = products.id)").
		Order("name ASC").
		Limit(limit).
		Find(&products).Error
	return products, errors.Wrap(err, "produits sans QR code")
}
