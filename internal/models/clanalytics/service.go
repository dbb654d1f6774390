package clanalytics

import (
	"context"
	"fmt"
	"qrcommerce/internal/models/clcache"
	"qrcommerce/internal/models/clerrors"
	"qrcommerce/internal/models/clqrcodes"
	"qrcommerce/internal/models/cltracking"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type AnalyticsService struct {
	db       *gorm.DB
	cache    *clcache.Cache
	realtime cltracking.Realtime
	now      func() time.Time
}

func NewAnalyticsService(db *gorm.DB, cache *clcache.Cache, realtime cltracking.Realtime) *AnalyticsService {
	if realtime == nil {
		realtime = cltracking.NewRealtime(nil)
	}
	return &AnalyticsService{
		db:       db,
		cache:    cache,
		realtime: realtime,
		now:      utcNow,
	}
}

// les jours des rapports sont des jours UTC, comme scan_time
func utcNow() time.Time {
	return time.Now().UTC()
}

// ParseRange lit deux dates AAAA-MM-JJ, les 30 derniers jours par défaut
func (as *AnalyticsService) ParseRange(from, to string) (DateRange, error) {
	now := as.now()
	r := DateRange{From: from, To: to}
	if r.From == "" {
		r.From = now.AddDate(0, 0, -30).Format(dateLayout)
	}
	if r.To == "" {
		r.To = now.Format(dateLayout)
	}

	f, err := time.Parse(dateLayout, r.From)
	if err != nil {
		return r, fmt.Errorf("date de début invalide %q", r.From)
	}
	t, err := time.Parse(dateLayout, r.To)
	if err != nil {
		return r, fmt.Errorf("date de fin invalide %q", r.To)
	}
	if f.After(t) {
		r.From, r.To = r.To, r.From
	}
	return r, nil
}

// GetAnalyticsData rapport de la période, mis en cache.
// La clé porte l'état des tables de scans et de conversions : un scan,
// une conversion ou une suppression rend l'entrée précédente inaccessible.
func (as *AnalyticsService) GetAnalyticsData(ctx context.Context, from, to string) (*Data, error) {
	return as.report(ctx, 0, from, to)
}

// GetQRCodeData rapport de la période limité à un QR code
func (as *AnalyticsService) GetQRCodeData(ctx context.Context, qrID uint, from, to string) (*Data, error) {
	return as.report(ctx, qrID, from, to)
}

func (as *AnalyticsService) report(ctx context.Context, qrID uint, from, to string) (*Data, error) {
	r, err := as.ParseRange(from, to)
	if err != nil {
		return nil, err
	}
	if as.cache == nil {
		return as.compute(ctx, r, qrID)
	}
	version, err := as.dataVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading analytics version: %w", err)
	}
	key := fmt.Sprintf("analytics_%d_%s_%s_%s", qrID, r.From, r.To, version)
	return clcache.Remember(ctx, as.cache, key, 0, func() (*Data, error) {
		return as.compute(ctx, r, qrID)
	})
}

// dataVersion nombre et dernier id des scans et des conversions
func (as *AnalyticsService) dataVersion(ctx context.Context) (string, error) {
	db := as.db.WithContext(ctx)
	var scans, conversions struct {
		Total int64
		Last  int64
	}
	err := db.Model(&clqrcodes.Scan{}).Select("COUNT(*) AS total, COALESCE(MAX(id), 0) AS last").Scan(&scans).Error
	if err != nil {
		return "", err
	}
	err = db.Model(&clqrcodes.Conversion{}).Select("COUNT(*) AS total, COALESCE(MAX(id), 0) AS last").Scan(&conversions).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%d-%d-%d", scans.Total, scans.Last, conversions.Total, conversions.Last), nil
}

// compute qrID nul = tous les QR codes
func (as *AnalyticsService) compute(ctx context.Context, r DateRange, qrID uint) (*Data, error) {
	data := &Data{DateRange: r}
	db := as.db.WithContext(ctx)

	scans := func() *gorm.DB {
		q := db.Model(&clqrcodes.Scan{}).Where("DATE(scan_time) BETWEEN ? AND ?", r.From, r.To)
		if qrID != 0 {
			q = q.Where("qr_code_id = ?", qrID)
		}
		return q
	}
	conversions := func() *gorm.DB {
		q := db.Table("qr_conversions c").
			Joins("JOIN qr_scans s ON c.scan_id = s.id").
			Where("DATE(s.scan_time) BETWEEN ? AND ?", r.From, r.To)
		if qrID != 0 {
			q = q.Where("c.qr_code_id = ?", qrID)
		}
		return q
	}

	var g errgroup.Group

	g.Go(func() error {
		return scans().Count(&data.Summary.TotalScans).Error
	})
	g.Go(func() error {
		return scans().Distinct("ip_address").Count(&data.Summary.UniqueScans).Error
	})
	g.Go(func() error {
		var row struct {
			Conversions int64
			Revenue     float64
		}
		err := conversions().Select("COUNT(*) AS conversions, COALESCE(SUM(c.revenue), 0) AS revenue").Scan(&row).Error
		data.Summary.TotalConversions = row.Conversions
		data.Summary.TotalRevenue = row.Revenue
		return err
	})
	g.Go(func() error {
		return scans().
			Select("DATE(scan_time) AS date, COUNT(*) AS scans").
			Group("DATE(scan_time)").
			Order("date ASC").
			Scan(&data.DailyScans).Error
	})
	g.Go(func() error {
		top := db.Table("qr_codes q")
		if qrID != 0 {
			top = top.Where("q.id = ?", qrID)
		}
		return top.
			Select(`q.id, q.type, q.qr_code_data AS data, COALESCE(p.name, '') AS product_name,
				COUNT(s.id) AS scans,
				COALESCE(SUM(CASE WHEN s.converted THEN 1 ELSE 0 END), 0) AS conversions,
				COALESCE((SELECT SUM(c.revenue) FROM qr_conversions c JOIN qr_scans cs ON c.scan_id = cs.id
					WHERE c.qr_code_id = q.id AND DATE(cs.scan_time) BETWEEN ? AND ?), 0) AS revenue`, r.From, r.To).
			Joins("JOIN qr_scans s ON s.qr_code_id = q.id AND DATE(s.scan_time) BETWEEN ? AND ?", r.From, r.To).
			Joins("LEFT JOIN products p ON p.id = q.product_id").
			Group("q.id, q.type, q.qr_code_data, p.name").
			Order("scans DESC, q.id ASC").
			Limit(10).
			Scan(&data.TopQRCodes).Error
	})
	g.Go(func() error {
		return scans().
			Select("device_type, COUNT(*) AS count").
			Group("device_type").
			Order("count DESC").
			Scan(&data.Devices).Error
	})
	g.Go(func() error {
		return scans().
			Select("country, COUNT(*) AS count").
			Where("country <> ''").
			Group("country").
			Order("count DESC").
			Limit(10).
			Scan(&data.Countries).Error
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("error computing analytics: %w", err)
	}

	data.Summary.ConversionRate = clqrcodes.ConversionRate(data.Summary.TotalConversions, data.Summary.TotalScans)
	return data, nil
}

// DashboardSummary totaux depuis l'installation
func (as *AnalyticsService) DashboardSummary(ctx context.Context) (*DashboardStats, error) {
	db := as.db.WithContext(ctx)
	stats := &DashboardStats{}

	if err := db.Model(&clqrcodes.QRCode{}).Count(&stats.TotalQRCodes).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&clqrcodes.QRCode{}).Where("status = ?", clqrcodes.StatusActive).Count(&stats.ActiveQRCodes).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&clqrcodes.Scan{}).Count(&stats.TotalScans).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&clqrcodes.Scan{}).Distinct("ip_address").Count(&stats.UniqueVisitors).Error; err != nil {
		return nil, err
	}

	var row struct {
		Conversions int64
		Revenue     float64
	}
	err := db.Model(&clqrcodes.Conversion{}).
		Select("COUNT(*) AS conversions, COALESCE(SUM(revenue), 0) AS revenue").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	stats.TotalConversions = row.Conversions
	stats.TotalRevenue = row.Revenue
	stats.ConversionRate = clqrcodes.ConversionRate(stats.TotalConversions, stats.TotalScans)
	return stats, nil
}

// GetRealtimeStats scans et visiteurs du jour
func (as *AnalyticsService) GetRealtimeStats(ctx context.Context) (*RealtimeStats, error) {
	scans, visitors, err := as.realtime.Today(ctx, as.now())
	if err != nil {
		return nil, err
	}
	return &RealtimeStats{TodayScans: scans, TodayUniqueVisitors: visitors}, nil
}

// Tables état des tables du module
func (as *AnalyticsService) Tables() []TableStatus {
	models := []struct {
		name  string
		model any
	}{
		{"qr_codes", &clqrcodes.QRCode{}},
		{"qr_scans", &clqrcodes.Scan{}},
		{"qr_conversions", &clqrcodes.Conversion{}},
		{"qr_error_logs", &clerrors.ErrorLog{}},
	}

	var out []TableStatus
	for _, m := range models {
		status := TableStatus{Table: m.name, Exists: as.db.Migrator().HasTable(m.model)}
		if status.Exists {
			as.db.Model(m.model).Count(&status.Records)
		}
		out = append(out, status)
	}
	return out
}
