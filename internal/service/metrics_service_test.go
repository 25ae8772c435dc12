package service

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

func TestMetricsServiceClaimOutcomes(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordClaim(nil)
	metrics.RecordClaim(appErrors.ErrAlreadyBooked)
	metrics.RecordClaim(appErrors.Clone(appErrors.ErrAlreadyBooked, "taken"))
	metrics.RecordClaim(errors.New("db down"))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.claimsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.claimsTotal.WithLabelValues("already_booked")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.claimsTotal.WithLabelValues("internal_error")))
}

func TestMetricsServiceCacheRatio(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)

	assert.InDelta(t, 2.0/3.0, testutil.ToFloat64(metrics.cacheHitRatio), 0.0001)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.RecordClaim(nil)
	metrics.ObserveLedgerTx("claim", time.Millisecond)
	metrics.RecordNotification("booking.created", nil)
	assert.NotNil(t, metrics.Handler())
}
