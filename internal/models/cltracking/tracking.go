package cltracking

import (
	"context"
	"encoding/json"
	"qrcommerce/internal/clredis"
	"qrcommerce/internal/models/clevents"
	"qrcommerce/internal/models/clmetrics"
	"qrcommerce/internal/models/clorders"
	"qrcommerce/internal/models/clqrcodes"
	"qrcommerce/internal/models/clsecurity"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DefaultWindow durée pendant laquelle un scan peut être converti
const DefaultWindow = 24 * time.Hour

const transientPrefix = "qr_tracking_"

// ErrIgnored le scan n'est pas enregistré (suivi coupé, QR code absent ou inactif)
var ErrIgnored = errors.New("scan ignoré")

// Attribution lien entre un visiteur et son dernier scan
type Attribution struct {
	ScanID    uint  `json:"scan_id"`
	ProductID uint  `json:"product_id"`
	QRCodeID  uint  `json:"qr_id"`
	Timestamp int64 `json:"timestamp"`
}

// ScanRequest données de la requête de scan
type ScanRequest struct {
	QRCodeID  uint
	IP        string
	UserAgent string
	Referrer  string
	SessionID string
	Source    string
}

// Visitor identité du visiteur au moment de la commande
type Visitor struct {
	IP          string
	UserAgent   string
	Attribution *Attribution
}

type Deps struct {
	DB         *gorm.DB
	QRCodes    *clqrcodes.Repository
	Orders     *clorders.Store
	Settings   clqrcodes.TrackingSwitch
	Transients clredis.Store
	Realtime   Realtime
	Geo        GeoLocator
	Events     clevents.Publisher
	Window     time.Duration
}

type Service struct {
	db         *gorm.DB
	qrcodes    *clqrcodes.Repository
	orders     *clorders.Store
	settings   clqrcodes.TrackingSwitch
	transients clredis.Store
	realtime   Realtime
	geo        GeoLocator
	events     clevents.Publisher
	window     time.Duration
	now        func() time.Time
}

// scan_time et conversion_time sont stockés en UTC
func utcNow() time.Time {
	return time.Now().UTC()
}

func NewService(d Deps) *Service {
	s := &Service{
		db:         d.DB,
		qrcodes:    d.QRCodes,
		orders:     d.Orders,
		settings:   d.Settings,
		transients: d.Transients,
		realtime:   d.Realtime,
		geo:        d.Geo,
		events:     d.Events,
		window:     d.Window,
		now:        utcNow,
	}
	if s.transients == nil {
		s.transients = clredis.NewMemoryStore()
	}
	if s.realtime == nil {
		s.realtime = NewRealtime(nil)
	}
	if s.geo == nil {
		s.geo = noGeo{}
	}
	if s.events == nil {
		s.events = clevents.LogPublisher{}
	}
	if s.window <= 0 {
		s.window = DefaultWindow
	}
	return s
}

func (s *Service) Realtime() Realtime {
	return s.realtime
}

func (s *Service) enabled() bool {
	return s.settings == nil || s.settings.TrackingEnabled()
}

func transientKey(ip, ua string) string {
	return transientPrefix + Fingerprint(ip, ua)
}

// RecordScan enregistre le scan et mémorise l'attribution du visiteur
func (s *Service) RecordScan(ctx context.Context, req ScanRequest) (*Attribution, error) {
	if !s.enabled() {
		return nil, errors.Wrap(ErrIgnored, "suivi désactivé")
	}

	qr, err := s.qrcodes.GetActive(req.QRCodeID)
	if err != nil {
		return nil, errors.Wrapf(ErrIgnored, "qr code %d: %v", req.QRCodeID, err)
	}

	source := req.Source
	if source == "" {
		source = "direct"
	}
	device := NewDeviceInfo(req.UserAgent)
	now := s.now()

	scan := clqrcodes.Scan{
		QRCodeID:   qr.ID,
		ProductID:  qr.ProductID,
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
		DeviceInfo: device.JSON(),
		DeviceType: DetectDeviceType(req.UserAgent),
		Referrer:   req.Referrer,
		SessionID:  req.SessionID,
		Country:    s.geo.Country(req.IP),
		Source:     source,
		ScanTime:   now,
	}
	if err := s.db.Create(&scan).Error; err != nil {
		return nil, errors.Wrap(err, "enregistrement scan")
	}
	if err := s.qrcodes.IncrementScans(qr.ID); err != nil {
		return nil, err
	}

	att := &Attribution{ScanID: scan.ID, QRCodeID: qr.ID, Timestamp: now.Unix()}
	if qr.ProductID != nil {
		att.ProductID = *qr.ProductID
	}

	payload, _ := json.Marshal(att)
	if err := s.transients.Set(ctx, transientKey(req.IP, req.UserAgent), string(payload), s.window); err != nil {
		log.Warn().Err(err).Uint("scan_id", scan.ID).Msg("attribution non mémorisée")
	}

	visitor := req.SessionID
	if visitor == "" {
		visitor = Fingerprint(req.IP, req.UserAgent)
	}
	if err := s.realtime.Hit(ctx, now, visitor); err != nil {
		log.Warn().Err(err).Msg("compteurs temps réel")
	}

	e := clevents.NewEvent(clevents.TypeScan, qr.ID)
	e.ScanID = scan.ID
	e.ProductID = att.ProductID
	e.Source = source
	e.DeviceType = scan.DeviceType
	s.publish(ctx, e)

	clmetrics.ObserveScan(source, scan.DeviceType)

	log.Debug().Uint("qr_id", qr.ID).Uint("scan_id", scan.ID).Str("source", source).Msg("scan enregistré")
	return att, nil
}

// attribution lit la session puis le transient du visiteur
func (s *Service) attribution(ctx context.Context, v Visitor) *Attribution {
	if v.Attribution != nil && v.Attribution.ScanID != 0 {
		return v.Attribution
	}
	raw, err := s.transients.Get(ctx, transientKey(v.IP, v.UserAgent))
	if err != nil {
		return nil
	}
	var att Attribution
	if err := json.Unmarshal([]byte(raw), &att); err != nil || att.ScanID == 0 {
		return nil
	}
	return &att
}

// expired l'attribution est hors de la fenêtre de conversion
func (s *Service) expired(att *Attribution) bool {
	return s.now().Sub(time.Unix(att.Timestamp, 0)) > s.window
}

// RebindProduct rattache le dernier scan du visiteur au produit ajouté au panier
func (s *Service) RebindProduct(ctx context.Context, v Visitor, productID uint) (*Attribution, error) {
	att := s.attribution(ctx, v)
	if att == nil || s.expired(att) {
		return nil, nil
	}
	rebound := *att
	rebound.ProductID = productID

	payload, err := json.Marshal(&rebound)
	if err != nil {
		return nil, err
	}
	ttl := s.window - s.now().Sub(time.Unix(att.Timestamp, 0))
	if err := s.transients.Set(ctx, transientKey(v.IP, v.UserAgent), string(payload), ttl); err != nil {
		log.Warn().Err(err).Uint("scan_id", att.ScanID).Msg("attribution non mémorisée")
	}
	return &rebound, nil
}

// CaptureOrder pose sur la commande le dernier scan encore valide du visiteur.
// Renvoie nil sans erreur quand le visiteur n'a rien à attribuer.
func (s *Service) CaptureOrder(ctx context.Context, orderID uint, v Visitor) (*Attribution, error) {
	att := s.attribution(ctx, v)
	if att == nil {
		return nil, nil
	}
	if s.expired(att) {
		log.Debug().Uint("scan_id", att.ScanID).Msg("attribution expirée")
		return nil, nil
	}

	payload, err := json.Marshal(att)
	if err != nil {
		return nil, err
	}
	if err := s.orders.UpdateMeta(orderID, clorders.MetaAttribution, string(payload)); err != nil {
		return nil, err
	}
	if err := s.transients.Delete(ctx, transientKey(v.IP, v.UserAgent)); err != nil {
		log.Warn().Err(err).Msg("suppression attribution")
	}
	return att, nil
}

// TrackConversion convertit le scan posé sur la commande une fois celle-ci terminée.
// Renvoie nil sans erreur quand rien n'est attribuable.
func (s *Service) TrackConversion(ctx context.Context, orderID uint) (*clqrcodes.Conversion, error) {
	raw, err := s.orders.GetMeta(orderID, clorders.MetaAttribution)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var att Attribution
	if err := json.Unmarshal([]byte(raw), &att); err != nil || att.ScanID == 0 {
		log.Warn().Uint("order_id", orderID).Msg("attribution illisible")
		return nil, nil
	}

	order, err := s.orders.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != clorders.StatusCompleted {
		return nil, nil
	}

	var revenue float64
	var productID *uint
	if att.ProductID == 0 {
		revenue = order.Total
	} else {
		matched := false
		for _, item := range order.Items {
			if item.ProductID == att.ProductID {
				revenue = item.Total
				matched = true
				break
			}
		}
		if !matched {
			return nil, nil
		}
		pid := att.ProductID
		productID = &pid
	}

	now := s.now()
	conv := &clqrcodes.Conversion{
		ScanID:         att.ScanID,
		QRCodeID:       att.QRCodeID,
		OrderID:        order.ID,
		ProductID:      productID,
		Revenue:        revenue,
		Status:         order.Status,
		ConversionTime: now,
	}

	duplicate := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&clqrcodes.Conversion{}).
			Where("scan_id = ? AND order_id = ?", att.ScanID, order.ID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			duplicate = true
			return nil
		}

		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		if err := s.qrcodes.WithTx(tx).RecordConversionCounters(att.QRCodeID, att.ScanID); err != nil {
			return err
		}
		orders := clorders.NewStore(tx)
		if err := orders.DeleteMeta(order.ID, clorders.MetaAttribution); err != nil {
			return err
		}
		if err := orders.UpdateMeta(order.ID, clorders.MetaScanID, strconv.FormatUint(uint64(att.ScanID), 10)); err != nil {
			return err
		}
		return orders.UpdateMeta(order.ID, clorders.MetaConversionTime, now.Format("2006-01-02 15:04:05"))
	})
	if err != nil {
		return nil, errors.Wrapf(err, "conversion commande %d", order.ID)
	}
	if duplicate {
		return nil, nil
	}

	e := clevents.NewEvent(clevents.TypeConversion, att.QRCodeID)
	e.ScanID = att.ScanID
	e.OrderID = order.ID
	e.ProductID = att.ProductID
	e.Revenue = revenue
	s.publish(ctx, e)

	clmetrics.ObserveConversion(revenue)

	log.Info().Uint("order_id", order.ID).Uint("scan_id", att.ScanID).Float64("revenue", revenue).Msg("conversion attribuée")
	return conv, nil
}

func (s *Service) publish(ctx context.Context, e clevents.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("type", e.Type).Msg("publication événement")
	}
}

// RedirectTarget cible de redirection validée, fallback si target n'est pas une URL http(s)
func RedirectTarget(target, fallback string) string {
	clean, err := clsecurity.ValidateInput(target, "url")
	if err != nil {
		return fallback
	}
	return clean
}
