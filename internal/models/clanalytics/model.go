package clanalytics

import "qrcommerce/internal/models/clqrcodes"

// Summary totaux sur une période
type Summary struct {
	TotalScans       int64   `json:"total_scans"`
	UniqueScans      int64   `json:"unique_scans"`
	TotalConversions int64   `json:"total_conversions"`
	TotalRevenue     float64 `json:"total_revenue"`
	ConversionRate   float64 `json:"conversion_rate"`
}

type DailyStat struct {
	Date  string `json:"date"`
	Scans int64  `json:"scans"`
}

type QRCodeStat struct {
	ID          uint    `json:"id"`
	Type        string  `json:"type"`
	Data        string  `json:"qr_code_data"`
	ProductName string  `json:"product_name"`
	Scans       int64   `json:"scans"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// Rate taux de conversion du QR code
func (q QRCodeStat) Rate() float64 {
	return clqrcodes.ConversionRate(q.Conversions, q.Scans)
}

type DeviceStat struct {
	DeviceType string `json:"device_type"`
	Count      int64  `json:"count"`
}

type CountryStat struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Data rapport complet d'une période
type Data struct {
	Summary    Summary       `json:"summary"`
	DailyScans []DailyStat   `json:"daily_scans"`
	TopQRCodes []QRCodeStat  `json:"top_qr_codes"`
	Devices    []DeviceStat  `json:"device_stats"`
	Countries  []CountryStat `json:"country_stats"`
	DateRange  DateRange     `json:"date_range"`
}

// DashboardStats totaux depuis le début
type DashboardStats struct {
	TotalQRCodes     int64   `json:"total_qr_codes"`
	ActiveQRCodes    int64   `json:"active_qr_codes"`
	TotalScans       int64   `json:"total_scans"`
	UniqueVisitors   int64   `json:"unique_visitors"`
	TotalConversions int64   `json:"total_conversions"`
	TotalRevenue     float64 `json:"total_revenue"`
	ConversionRate   float64 `json:"conversion_rate"`
}

type RealtimeStats struct {
	TodayScans          int64 `json:"today_scans"`
	TodayUniqueVisitors int64 `json:"today_unique_visitors"`
}

// TableStatus état d'une table pour la page système
type TableStatus struct {
	Table   string `json:"table"`
	Exists  bool   `json:"exists"`
	Records int64  `json:"records"`
}
