package clqrcodes

import (
	"net/url"
	"qrcommerce/internal/models/clcatalog"
	"qrcommerce/internal/models/clqrimage"
	"qrcommerce/internal/models/clsecurity"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("QR code introuvable")
	ErrDuplicate = errors.New("ce produit a déjà un QR code")
	ErrInactive  = errors.New("QR code inactif")
)

// Actions groupées
const (
	ActionEnable     = "enable"
	ActionDisable    = "disable"
	ActionDelete     = "delete"
	ActionRegenerate = "regenerate"
)

// TrackingSwitch indique si les paramètres de suivi doivent être ajoutés
type TrackingSwitch interface {
	TrackingEnabled() bool
}

type Repository struct {
	db       *gorm.DB
	catalog  *clcatalog.Store
	images   *clqrimage.Generator
	tracking TrackingSwitch
}

func NewRepository(db *gorm.DB, catalog *clcatalog.Store, images *clqrimage.Generator) *Repository {
	return &Repository{
		db:      db,
		catalog: catalog,
		images:  images,
	}
}

// SetTrackingSwitch branche le réglage enable_tracking
func (r *Repository) SetTrackingSwitch(t TrackingSwitch) {
	r.tracking = t
}

// WithTx renvoie un repository travaillant dans la transaction tx
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	clone := *r
	clone.db = tx
	return &clone
}

func (r *Repository) Images() *clqrimage.Generator {
	return r.images
}

func (r *Repository) trackingEnabled() bool {
	return r.tracking == nil || r.tracking.TrackingEnabled()
}

// WithQueryArgs ajoute ou remplace des paramètres dans une URL
func WithQueryArgs(base string, args url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, v := range args {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewQRCode paramètres d'un QR code à créer
type NewQRCode struct {
	Type       string
	ProductID  *uint
	CategoryID *uint
	Options    clqrimage.Options
	// Content construit le contenu encodé une fois l'id connu
	Content func(id uint) string
}

// Create insère la ligne pour obtenir l'id, rend le PNG puis complète la ligne.
// La ligne est supprimée si le rendu échoue.
func (r *Repository) Create(n NewQRCode) (*QRCode, error) {
	if !ValidType(n.Type) {
		return nil, errors.Errorf("type de QR code inconnu %q", n.Type)
	}
	opts := r.images.Normalize(n.Options)

	qr := &QRCode{
		ProductID:  n.ProductID,
		CategoryID: n.CategoryID,
		Type:       n.Type,
		Status:     StatusActive,
	}
	qr.setOptions(opts)
	if err := r.db.Create(qr).Error; err != nil {
		return nil, errors.Wrap(err, "création QR code")
	}

	qr.Data = n.Content(qr.ID)
	res, err := r.images.GenerateAndSave(qr.Data, opts)
	if err != nil {
		if derr := r.db.Delete(&QRCode{}, qr.ID).Error; derr != nil {
			log.Error().Err(derr).Uint("qr_id", qr.ID).Msg("suppression QR code temporaire")
		}
		return nil, errors.Wrap(err, "génération image")
	}

	qr.FilePath = res.FilePath
	qr.FileURL = res.FileURL
	err = r.db.Model(qr).Updates(map[string]any{
		"qr_code_data": qr.Data,
		"file_path":    qr.FilePath,
		"file_url":     qr.FileURL,
	}).Error
	if err != nil {
		r.db.Delete(&QRCode{}, qr.ID)
		r.images.Remove(res.FilePath)
		return nil, errors.Wrap(err, "mise à jour QR code")
	}

	log.Info().Uint("qr_id", qr.ID).Str("type", qr.Type).Msg("QR code créé")
	return qr, nil
}

// productContent URL produit avec les paramètres de suivi
func (r *Repository) productContent(p *clcatalog.Product) func(id uint) string {
	permalink := r.catalog.Permalink(p)
	return func(id uint) string {
		if !r.trackingEnabled() {
			return permalink
		}
		return WithQueryArgs(permalink, url.Values{
			"qr_source":    {"product"},
			"qr_id":        {strconv.FormatUint(uint64(id), 10)},
			"qr_timestamp": {strconv.FormatInt(time.Now().Unix(), 10)},
		})
	}
}

// CreateProductQRCode crée le QR code d'un produit, un seul par produit
func (r *Repository) CreateProductQRCode(productID uint, o clqrimage.Options) (*QRCode, error) {
	if productID == 0 {
		return nil, errors.New("aucun produit sélectionné")
	}
	product, err := r.catalog.GetProduct(productID)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := r.db.Model(&QRCode{}).Where("product_id = ? AND type = ?", productID, TypeProduct).Count(&count).Error; err != nil {
		return nil, errors.Wrap(err, "recherche QR code existant")
	}
	if count > 0 {
		return nil, errors.Wrapf(ErrDuplicate, "produit %d", productID)
	}

	return r.Create(NewQRCode{
		Type:       TypeProduct,
		ProductID:  &product.ID,
		CategoryID: product.CategoryID,
		Options:    o,
		Content:    r.productContent(product),
	})
}

// CreateURLQRCode crée un QR code pour une URL libre
func (r *Repository) CreateURLQRCode(rawURL string, o clqrimage.Options) (*QRCode, error) {
	target, err := clsecurity.ValidateInput(rawURL, "url")
	if err != nil {
		return nil, err
	}
	return r.Create(NewQRCode{
		Type:    TypeURL,
		Options: o,
		Content: func(id uint) string {
			if !r.trackingEnabled() {
				return target
			}
			return WithQueryArgs(target, url.Values{
				"qr_source": {"custom"},
				"qr_id":     {strconv.FormatUint(uint64(id), 10)},
			})
		},
	})
}

func (r *Repository) Get(id uint) (*QRCode, error) {
	var qr QRCode
	err := r.db.First(&qr, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "id %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "lecture QR code %d", id)
	}
	return &qr, nil
}

// GetActive renvoie ErrInactive pour un QR code désactivé
func (r *Repository) GetActive(id uint) (*QRCode, error) {
	qr, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if !qr.Active() {
		return nil, errors.Wrapf(ErrInactive, "id %d", id)
	}
	return qr, nil
}

// GetByProduct QR code actif d'un produit
func (r *Repository) GetByProduct(productID uint) (*QRCode, error) {
	var qr QRCode
	err := r.db.Where("product_id = ? AND status = ?", productID, StatusActive).Order("id ASC").First(&qr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "produit %d", productID)
	}
	return &qr, errors.Wrap(err, "lecture QR code produit")
}

// Regenerate refait l'image en conservant l'id et les compteurs
func (r *Repository) Regenerate(id uint) (*QRCode, error) {
	qr, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	if qr.Type == TypeProduct && qr.ProductID != nil {
		product, err := r.catalog.GetProduct(*qr.ProductID)
		if err != nil {
			return nil, err
		}
		qr.Data = r.productContent(product)(qr.ID)
	}

	opts := r.images.Normalize(qr.Options())
	res, err := r.images.GenerateAndSave(qr.Data, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "régénération QR code %d", id)
	}

	old := qr.FilePath
	qr.FilePath = res.FilePath
	qr.FileURL = res.FileURL
	qr.setOptions(opts)
	err = r.db.Model(qr).Updates(map[string]any{
		"qr_code_data": qr.Data,
		"file_path":    qr.FilePath,
		"file_url":     qr.FileURL,
		"settings":     qr.Settings,
	}).Error
	if err != nil {
		r.images.Remove(res.FilePath)
		return nil, errors.Wrapf(err, "mise à jour QR code %d", id)
	}

	if err := r.images.Remove(old); err != nil {
		log.Warn().Err(err).Str("file", old).Msg("ancien fichier QR non supprimé")
	}
	return qr, nil
}

func (r *Repository) SetStatus(ids []uint, status string) (int64, error) {
	if status != StatusActive && status != StatusInactive {
		return 0, errors.Errorf("statut inconnu %q", status)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&QRCode{}).Where("id IN ?", ids).Update("status", status)
	return result.RowsAffected, errors.Wrap(result.Error, "changement de statut")
}

// Delete supprime les QR codes, leurs scans et les conversions de ces scans
func (r *Repository) Delete(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var codes []QRCode
	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id IN ?", ids).Find(&codes).Error; err != nil {
			return err
		}
		scanIDs := tx.Model(&Scan{}).Select("id").Where("qr_code_id IN ?", ids)
		if err := tx.Where("scan_id IN (?) OR qr_code_id IN ?", scanIDs, ids).Delete(&Conversion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("qr_code_id IN ?", ids).Delete(&Scan{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&QRCode{})
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, errors.Wrap(err, "suppression QR codes")
	}

	for _, qr := range codes {
		if err := r.images.Remove(qr.FilePath); err != nil {
			log.Warn().Err(err).Uint("qr_id", qr.ID).Msg("fichier QR non supprimé")
		}
	}
	return deleted, nil
}

// BulkResult résultat d'une action groupée
type BulkResult struct {
	Action   string `json:"action"`
	Affected int64  `json:"affected"`
	Failed   []uint `json:"failed,omitempty"`
}

func (r *Repository) BulkAction(action string, ids []uint) (*BulkResult, error) {
	res := &BulkResult{Action: action}
	var err error

	switch action {
	case ActionEnable:
		res.Affected, err = r.SetStatus(ids, StatusActive)
	case ActionDisable:
		res.Affected, err = r.SetStatus(ids, StatusInactive)
	case ActionDelete:
		res.Affected, err = r.Delete(ids)
	case ActionRegenerate:
		res.Affected, res.Failed = r.regenerateAll(ids)
	default:
		return nil, errors.Errorf("action inconnue %q", action)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// regenerateAll régénère en parallèle, un échec n'arrête pas les autres
func (r *Repository) regenerateAll(ids []uint) (int64, []uint) {
	failed := make([]bool, len(ids))

	var g errgroup.Group
	g.SetLimit(4)
	for i, id := range ids {
		g.Go(func() error {
			if _, err := r.Regenerate(id); err != nil {
				log.Error().Err(err).Uint("qr_id", id).Msg("régénération échouée")
				failed[i] = true
			}
			return nil
		})
	}
	g.Wait()

	var ok int64
	var failedIDs []uint
	for i, f := range failed {
		if f {
			failedIDs = append(failedIDs, ids[i])
		} else {
			ok++
		}
	}
	return ok, failedIDs
}

// IncrementScans incrémente scans_count
func (r *Repository) IncrementScans(id uint) error {
	return errors.Wrap(r.db.Model(&QRCode{}).Where("id = ?", id).
		UpdateColumn("scans_count", gorm.Expr("scans_count + 1")).Error, "compteur de scans")
}

// RecordConversionCounters incrémente conversions_count et marque le scan converti
func (r *Repository) RecordConversionCounters(qrID, scanID uint) error {
	err := r.db.Model(&QRCode{}).Where("id = ?", qrID).
		UpdateColumn("conversions_count", gorm.Expr("conversions_count + 1")).Error
	if err != nil {
		return errors.Wrap(err, "compteur de conversions")
	}
	err = r.db.Model(&Scan{}).Where("id = ?", scanID).UpdateColumn("converted", true).Error
	return errors.Wrap(err, "scan converti")
}

// CountByStatus nombre de QR codes, tous statuts si status est vide
func (r *Repository) CountByStatus(status string) (int64, error) {
	query := r.db.Model(&QRCode{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var count int64
	err := query.Count(&count).Error
	return count, errors.Wrap(err, "comptage QR codes")
}
