package clmetrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	before := testutil.ToFloat64(ScansTotal.WithLabelValues("direct", "Mobile"))
	ObserveScan("", "Mobile")
	assert.Equal(t, before+1, testutil.ToFloat64(ScansTotal.WithLabelValues("direct", "Mobile")))

	conv := testutil.ToFloat64(ConversionsTotal)
	rev := testutil.ToFloat64(RevenueTotal)
	ObserveConversion(12.5)
	assert.Equal(t, conv+1, testutil.ToFloat64(ConversionsTotal))
	assert.InDelta(t, rev+12.5, testutil.ToFloat64(RevenueTotal), 0.001)

	gen := testutil.ToFloat64(GeneratedTotal.WithLabelValues("product"))
	ObserveGenerated("product")
	assert.Equal(t, gen+1, testutil.ToFloat64(GeneratedTotal.WithLabelValues("product")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `qrcommerce_http_request_duration_seconds_count{method="GET",route="/ping",status="200"}`)
}
