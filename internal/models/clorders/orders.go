package clorders

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("commande introuvable")

// Statuts de commande
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusOnHold     = "on-hold"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
)

var Statuses = []string{StatusPending, StatusProcessing, StatusOnHold, StatusCompleted, StatusCancelled, StatusRefunded}

// Clés de méta posées par l'attribution
const (
	MetaAttribution    = "_qr_attribution"
	MetaScanID         = "_qr_scan_id"
	MetaConversionTime = "_qr_conversion_time"
)

type Order struct {
	ID            uint        `json:"id" gorm:"primaryKey"`
	Status        string      `json:"status" gorm:"index;not null;default:pending"`
	Currency      string      `json:"currency" gorm:"size:8"`
	Total         float64     `json:"total"`
	CustomerEmail string      `json:"customer_email"`
	Items         []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time   `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

type OrderItem struct {
	ID        uint    `json:"id" gorm:"primaryKey"`
	OrderID   uint    `json:"order_id" gorm:"index;not null"`
	ProductID uint    `json:"product_id" gorm:"index"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Total     float64 `json:"total"`
}

type OrderMeta struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	OrderID uint   `json:"order_id" gorm:"uniqueIndex:idx_order_meta_key;not null"`
	Key     string `json:"key" gorm:"uniqueIndex:idx_order_meta_key;size:191;not null"`
	Value   string `json:"value" gorm:"type:text"`
}

func (Order) TableName() string {
	return "orders"
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (OrderMeta) TableName() string {
	return "order_meta"
}

// ValidStatus vérifie qu'un statut est connu
func ValidStatus(status string) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Store accès aux commandes et à leurs métadonnées
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetOrder(id uint) (*Order, error) {
	var o Order
	err := s.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "commande %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "lecture commande %d", id)
	}
	return &o, nil
}

// CreateOrder enregistre la commande et ses lignes, le total est recalculé si absent
func (s *Store) CreateOrder(o *Order) error {
	if len(o.Items) == 0 {
		return errors.New("commande sans ligne")
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	if !ValidStatus(o.Status) {
		return errors.Errorf("statut inconnu %q", o.Status)
	}
	o.CustomerEmail = strings.TrimSpace(o.CustomerEmail)

	if o.Total == 0 {
		for _, item := range o.Items {
			o.Total += item.Total
		}
	}
	return errors.Wrap(s.db.Create(o).Error, "création commande")
}

func (s *Store) UpdateStatus(id uint, status string) error {
	if !ValidStatus(status) {
		return errors.Errorf("statut inconnu %q", status)
	}
	result := s.db.Model(&Order{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "statut commande %d", id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "commande %d", id)
	}
	return nil
}

// UpdateMeta crée ou remplace la valeur de key
func (s *Store) UpdateMeta(orderID uint, key, value string) error {
	meta := OrderMeta{OrderID: orderID, Key: key, Value: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&meta).Error
	return errors.Wrapf(err, "méta %s commande %d", key, orderID)
}

// GetMeta renvoie "" si la clé n'existe pas
func (s *Store) GetMeta(orderID uint, key string) (string, error) {
	var meta OrderMeta
	err := s.db.Where("order_id = ? AND `key` = ?", orderID, key).Limit(1).Find(&meta).Error
	if err != nil {
		return "", errors.Wrapf(err, "méta %s commande %d", key, orderID)
	}
	return meta.Value, nil
}

func (s *Store) DeleteMeta(orderID uint, key string) error {
	err := s.db.Where("order_id = ? AND `key` = ?", orderID, key).Delete(&OrderMeta{}).Error
	return errors.Wrapf(err, "suppression méta %s commande %d", key, orderID)
}

func (s *Store) RecentOrders(limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 10
	}
	var orders []Order
	err := s.db.Preload("Items").Order("created_at DESC, id DESC").Limit(limit).Find(&orders).Error
	return orders, errors.Wrap(err, "commandes récentes")
}

func (s *Store) CountByStatus(status string) (int64, error) {
	var count int64
	err := s.db.Model(&Order{}).Where("status = ?", status).Count(&count).Error
	return count, errors.Wrap(err, "comptage commandes")
}

// QRTrackedOrders commandes attribuées à un scan de QR code
func (s *Store) QRTrackedOrders(limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var orders []Order
	err := s.db.Preload("Items").
		Where("id IN (?)", s.db.Model(&OrderMeta{}).Select("order_id").Where("`key` = ?", MetaScanID)).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, errors.Wrap(err, "commandes attribuées")
}
