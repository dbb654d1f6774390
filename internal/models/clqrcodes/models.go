package clqrcodes

import (
	"encoding/json"
	"qrcommerce/internal/models/clqrimage"
	"time"
)

// Types de QR code
const (
	TypeProduct  = "product"
	TypeCategory = "category"
	TypeShop     = "shop"
	TypeCustom   = "custom"
	TypeURL      = "url"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// QRCode QR code généré et ses compteurs
type QRCode struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	ProductID        *uint     `json:"product_id" gorm:"index"`
	CategoryID       *uint     `json:"category_id" gorm:"index"`
	Type             string    `json:"type" gorm:"size:20;index;default:product"`
	Data             string    `json:"qr_code_data" gorm:"column:qr_code_data;type:text"`
	FilePath         string    `json:"-" gorm:"size:500"`
	FileURL          string    `json:"file_url" gorm:"size:500"`
	Status           string    `json:"status" gorm:"size:20;index;default:active"`
	Settings         string    `json:"-" gorm:"type:text"`
	ScansCount       int64     `json:"scans_count" gorm:"default:0"`
	ConversionsCount int64     `json:"conversions_count" gorm:"default:0"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Scan un scan de QR code
type Scan struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	QRCodeID   uint      `json:"qr_code_id" gorm:"column:qr_code_id;index;not null"`
	ProductID  *uint     `json:"product_id" gorm:"index"`
	IPAddress  string    `json:"ip_address" gorm:"size:45;index"`
	UserAgent  string    `json:"user_agent" gorm:"type:text"`
	DeviceInfo string    `json:"device_info" gorm:"type:text"`
	DeviceType string    `json:"device_type" gorm:"size:20;index"`
	Referrer   string    `json:"referrer" gorm:"type:text"`
	SessionID  string    `json:"session_id" gorm:"size:64"`
	Country    string    `json:"country" gorm:"size:2;index"`
	Source     string    `json:"source" gorm:"size:20"`
	ScanTime   time.Time `json:"scan_time" gorm:"index"`
	Converted  bool      `json:"converted" gorm:"default:false"`
}

// Conversion achat attribué à un scan
type Conversion struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ScanID         uint      `json:"scan_id" gorm:"uniqueIndex:idx_scan_order;not null"`
	QRCodeID       uint      `json:"qr_code_id" gorm:"column:qr_code_id;index"`
	OrderID        uint      `json:"order_id" gorm:"uniqueIndex:idx_scan_order;not null"`
	ProductID      *uint     `json:"product_id" gorm:"index"`
	Revenue        float64   `json:"revenue"`
	Status         string    `json:"status" gorm:"size:20"`
	ConversionTime time.Time `json:"conversion_time" gorm:"index"`
}

func (QRCode) TableName() string {
	return "qr_codes"
}

func (Scan) TableName() string {
	return "qr_scans"
}

func (Conversion) TableName() string {
	return "qr_conversions"
}

// Options réglages de rendu mémorisés, vides si absents
func (q *QRCode) Options() clqrimage.Options {
	var o clqrimage.Options
	if q.Settings != "" {
		_ = json.Unmarshal([]byte(q.Settings), &o)
	}
	return o
}

func (q *QRCode) setOptions(o clqrimage.Options) {
	raw, err := json.Marshal(o)
	if err == nil {
		q.Settings = string(raw)
	}
}

func (q *QRCode) Active() bool {
	return q.Status == StatusActive
}

// ValidType vérifie un type de QR code
func ValidType(t string) bool {
	switch t {
	case TypeProduct, TypeCategory, TypeShop, TypeCustom, TypeURL:
		return true
	}
	return false
}
