package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdoc/policyd/internal/config"
)

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		DegradedRateThreshold: 0.2,
		AccuracyFloor:         50.0,
		LookbackWindowHours:   24,
	}
}

func TestEvaluate_HealthySnapshot(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		DocumentsTotal: 10,
		Degraded:       1,
		DegradedRate:   0.1,
		AvgAccuracy:    85.0,
		LookbackHours:  24,
	})
	assert.Empty(t, alerts)
}

func TestEvaluate_SkipsSmallWindows(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	// Every document degraded, but too few to alert on.
	alerts := a.Evaluate(&MetricsSnapshot{
		DocumentsTotal: 2,
		Degraded:       2,
		DegradedRate:   1.0,
		AvgAccuracy:    0,
		LookbackHours:  24,
	})
	assert.Empty(t, alerts)
}

func TestEvaluate_DegradedRateBreach(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		DocumentsTotal: 10,
		Degraded:       4,
		DegradedRate:   0.4,
		AvgAccuracy:    70.0,
		LookbackHours:  24,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertDegradedRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestEvaluate_LowAccuracyBreach(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		DocumentsTotal: 10,
		AvgAccuracy:    42.5,
		LookbackHours:  24,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLowAccuracy, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
}

func TestEvaluate_BothThresholdsBreached(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		DocumentsTotal: 10,
		Degraded:       6,
		DegradedRate:   0.6,
		AvgAccuracy:    30.0,
		LookbackHours:  24,
	})
	assert.Len(t, alerts, 2)
}

func TestSendAlerts_PostsWebhook(t *testing.T) {
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{{
		Type:      AlertDegradedRate,
		Severity:  "high",
		Message:   "degraded rate too high",
		Timestamp: time.Now().UTC(),
	}})
	assert.Equal(t, 1, sent)
	assert.Equal(t, AlertDegradedRate, got.Type)
	assert.Equal(t, "degraded rate too high", got.Message)
}

func TestSendAlerts_NoWebhookConfigured(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertLowAccuracy}})
	assert.Zero(t, sent)
}

func TestSendAlerts_DeliveryFailureIsNotFatal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertDegradedRate}})
	assert.Zero(t, sent)
	assert.Equal(t, int32(1), calls.Load())
}
