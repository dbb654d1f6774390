package clcatalog

import (
	"errors"
	"fmt"
	"html/template"
	"qrcommerce/internal/models/clmarkdown"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("élément du catalogue introuvable")

const (
	StatusPublish = "publish"
	StatusDraft   = "draft"
)

type Category struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Slug        string    `json:"slug" gorm:"uniqueIndex;size:191"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

type Product struct {
	ID               uint          `json:"id" gorm:"primaryKey"`
	CategoryID       *uint         `json:"category_id" gorm:"index"`
	Name             string        `json:"name" gorm:"not null"`
	Slug             string        `json:"slug" gorm:"uniqueIndex;size:191"`
	SKU              string        `json:"sku" gorm:"size:64"`
	Price            float64       `json:"price"`
	RegularPrice     float64       `json:"regular_price"`
	SalePrice        float64       `json:"sale_price"`
	ShortDescription string        `json:"short_description" gorm:"type:text"`
	Description      string        `json:"description" gorm:"type:text"`
	DescriptionHTML  template.HTML `json:"description_html" gorm:"-"`
	ImagePath        string        `json:"image_path"`
	Status           string        `json:"status" gorm:"index;default:publish"`
	CreatedAt        time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Category) TableName() string {
	return "categories"
}

func (Product) TableName() string {
	return "products"
}

// Hooks GORM
func (p *Product) BeforeSave(tx *gorm.DB) error {
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	if p.Status == "" {
		p.Status = StatusPublish
	}
	if p.Price == 0 {
		p.Price = p.RegularPrice
		if p.SalePrice > 0 {
			p.Price = p.SalePrice
		}
	}
	return nil
}

func (p *Product) AfterFind(tx *gorm.DB) error {
	if p.Description != "" {
		p.DescriptionHTML = clmarkdown.ConvertMarkdownToHTML(p.Description)
	}
	return nil
}

func (c *Category) BeforeSave(tx *gorm.DB) error {
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	return nil
}

// OnSale indique un prix promotionnel
func (p *Product) OnSale() bool {
	return p.SalePrice > 0 && p.SalePrice < p.RegularPrice
}

// ActivePrice prix facturé, le prix soldé s'il s'applique
func (p *Product) ActivePrice() float64 {
	if p.OnSale() {
		return p.SalePrice
	}
	if p.RegularPrice > 0 {
		return p.RegularPrice
	}
	return p.Price
}

// Slugify transforme un nom en identifiant d'URL
func Slugify(s string) string {
	var result strings.Builder

	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
			lastDash = false
		case unicode.IsSpace(r) || r == '-' || r == '_':
			if !lastDash {
				result.WriteRune('-')
				lastDash = true
			}
		}
	}

	return strings.TrimSuffix(result.String(), "-")
}

// Store accès au catalogue et construction des liens publics
type Store struct {
	db      *gorm.DB
	siteURL string
}

func NewStore(db *gorm.DB, siteURL string) *Store {
	return &Store{
		db:      db,
		siteURL: strings.TrimRight(siteURL, "/"),
	}
}

func (s *Store) Permalink(p *Product) string {
	return s.siteURL + "/product/" + p.Slug
}

func (s *Store) CategoryLink(c *Category) string {
	return s.siteURL + "/category/" + c.Slug
}

func (s *Store) ShopURL() string {
	return s.siteURL + "/shop"
}

func (s *Store) SiteURL() string {
	return s.siteURL
}

func (s *Store) GetProduct(id uint) (*Product, error) {
	var p Product
	if err := s.db.First(&p, id).Error; err != nil {
		return nil, notFound(err, "produit %d", id)
	}
	return &p, nil
}

func (s *Store) GetProductBySlug(slug string) (*Product, error) {
	var p Product
	if err := s.db.Where("slug = ? AND status = ?", slug, StatusPublish).First(&p).Error; err != nil {
		return nil, notFound(err, "produit %s", slug)
	}
	return &p, nil
}

// ListProducts renvoie les produits, tous statuts si status est vide
func (s *Store) ListProducts(status string, categoryID uint) ([]Product, error) {
	query := s.db.Order("name ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if categoryID > 0 {
		query = query.Where("category_id = ?", categoryID)
	}

	var products []Product
	if err := query.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("liste des produits: %w", err)
	}
	return products, nil
}

func (s *Store) CreateProduct(p *Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("le nom du produit est obligatoire")
	}
	return s.db.Create(p).Error
}

func (s *Store) UpdateProduct(p *Product) error {
	if p.ID == 0 {
		return fmt.Errorf("produit sans id")
	}
	return s.db.Save(p).Error
}

func (s *Store) DeleteProduct(id uint) error {
	result := s.db.Delete(&Product{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: produit %d", ErrNotFound, id)
	}
	return nil
}

func (s *Store) GetCategory(id uint) (*Category, error) {
	var c Category
	if err := s.db.First(&c, id).Error; err != nil {
		return nil, notFound(err, "catégorie %d", id)
	}
	return &c, nil
}

func (s *Store) GetCategoryBySlug(slug string) (*Category, error) {
	var c Category
	if err := s.db.Where("slug = ?", slug).First(&c).Error; err != nil {
		return nil, notFound(err, "catégorie %s", slug)
	}
	return &c, nil
}

func (s *Store) ListCategories() ([]Category, error) {
	var categories []Category
	if err := s.db.Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("liste des catégories: %w", err)
	}
	return categories, nil
}

func (s *Store) CreateCategory(c *Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("le nom de la catégorie est obligatoire")
	}
	return s.db.Create(c).Error
}

func (s *Store) UpdateCategory(c *Category) error {
	if c.ID == 0 {
		return fmt.Errorf("catégorie sans id")
	}
	return s.db.Save(c).Error
}

// DeleteCategory détache les produits de la catégorie avant suppression
func (s *Store) DeleteCategory(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Product{}).Where("category_id = ?", id).UpdateColumn("category_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&Category{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: catégorie %d", ErrNotFound, id)
		}
		return nil
	})
}

// Seed crée un catalogue de démonstration si la base est vide
func (s *Store) Seed() error {
	var count int64
	if err := s.db.Model(&Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		cat := Category{Name: "Accessoires", Description: "Petits objets du quotidien"}
		if err := tx.Create(&cat).Error; err != nil {
			return err
		}

		products := []Product{
			{
				CategoryID:       &cat.ID,
				Name:             "Mug émaillé",
				SKU:              "MUG-001",
				RegularPrice:     14.90,
				ShortDescription: "Mug en acier émaillé, 350 ml.",
				Description:      "Un mug **robuste** pour le bureau comme pour le camping.\n\n- 350 ml\n- lavable en machine",
			},
			{
				CategoryID:       &cat.ID,
				Name:             "Tote bag coton",
				SKU:              "BAG-002",
				RegularPrice:     12.00,
				SalePrice:        9.50,
				ShortDescription: "Sac en coton biologique.",
				Description:      "Sac en *coton bio* avec anses longues.",
			},
		}
		return tx.Create(&products).Error
	})
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
