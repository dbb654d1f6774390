package clanalytics

import (
	"qrcommerce/internal/models/clerrors"
	"qrcommerce/internal/models/clqrcodes"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CleanupPolicy réglages lus à chaque exécution
type CleanupPolicy func() (days int, gdpr bool)

type CleanupResult struct {
	Errors      int64 `json:"errors"`
	Scans       int64 `json:"scans"`
	Conversions int64 `json:"conversions"`
}

type Cleaner struct {
	db     *gorm.DB
	errors *clerrors.Handler
	policy CleanupPolicy
	cron   *cron.Cron
	now    func() time.Time
}

func NewCleaner(db *gorm.DB, errs *clerrors.Handler, policy CleanupPolicy) *Cleaner {
	return &Cleaner{db: db, errors: errs, policy: policy, now: utcNow}
}

// Run supprime les erreurs anciennes puis, en mode RGPD, les scans anciens et les conversions orphelines
func (cl *Cleaner) Run() (CleanupResult, error) {
	var res CleanupResult
	days, gdpr := cl.policy()
	if days <= 0 {
		days = 30
	}

	n, err := cl.errors.CleanupOldErrors(days)
	if err != nil {
		return res, err
	}
	res.Errors = n

	if !gdpr {
		return res, nil
	}

	cutoff := cl.now().AddDate(0, 0, -days)
	result := cl.db.Where("scan_time < ?", cutoff).Delete(&clqrcodes.Scan{})
	if result.Error != nil {
		return res, result.Error
	}
	res.Scans = result.RowsAffected

	result = cl.db.Where("scan_id NOT IN (?)", cl.db.Model(&clqrcodes.Scan{}).Select("id")).
		Delete(&clqrcodes.Conversion{})
	if result.Error != nil {
		return res, result.Error
	}
	res.Conversions = result.RowsAffected

	log.Info().
		Int64("errors", res.Errors).
		Int64("scans", res.Scans).
		Int64("conversions", res.Conversions).
		Msg("Cleanup completed successfully")
	return res, nil
}

// Start planifie le nettoyage, tous les jours à 2h par défaut
func (cl *Cleaner) Start(schedule string) error {
	if schedule == "" {
		schedule = "0 2 * * *"
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := cl.Run(); err != nil {
			log.Error().Err(err).Msg("Cleanup failed")
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	cl.cron = c
	return nil
}

func (cl *Cleaner) Stop() {
	if cl.cron != nil {
		<-cl.cron.Stop().Done()
	}
}
