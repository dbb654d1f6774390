package clmetrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrcommerce_scans_total",
		Help: "Nombre de scans enregistrés",
	}, []string{"source", "device"})

	ConversionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrcommerce_conversions_total",
		Help: "Nombre de commandes attribuées à un scan",
	})

	RevenueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrcommerce_revenue_total",
		Help: "Chiffre d'affaires attribué aux QR codes",
	})

	GeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrcommerce_qr_generated_total",
		Help: "QR codes générés par type",
	}, []string{"type"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qrcommerce_http_request_duration_seconds",
		Help:    "Durée des requêtes HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// ObserveScan comptabilise un scan
func ObserveScan(source, device string) {
	if source == "" {
		source = "direct"
	}
	ScansTotal.WithLabelValues(source, device).Inc()
}

// ObserveConversion comptabilise une conversion et son montant
func ObserveConversion(revenue float64) {
	ConversionsTotal.Inc()
	if revenue > 0 {
		RevenueTotal.Add(revenue)
	}
}

func ObserveGenerated(qrType string) {
	GeneratedTotal.WithLabelValues(qrType).Inc()
}

// Middleware mesure la durée des requêtes par route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler expose les métriques au format prometheus
func Handler() http.Handler {
	return promhttp.Handler()
}
