package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prite36/smart-irrigation/internal/config"
	"github.com/prite36/smart-irrigation/internal/decision"
)

func testConfig(actuatorURL string) *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{Port: 0},
		Actuator:   config.ActuatorConfig{Timeout: time.Second, Address: actuatorURL},
		Thresholds: decision.DefaultThresholds(),
		Database:   config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
		Schedule:   config.ScheduleConfig{Timezone: "UTC"},
	}
}

func TestNewAppServesAPIAndMetrics(t *testing.T) {
	var pumpCalls []string
	pump := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pumpCalls = append(pumpCalls, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(pump.Close)

	app, err := NewApp(testConfig(pump.URL))
	require.NoError(t, err)
	t.Cleanup(app.Stop)

	req := httptest.NewRequest(http.MethodPost, "/api/irrigation/control", strings.NewReader(`{"action":"start","duration":12}`))
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"/pump/start"}, pumpCalls)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `irrigation_actions_total{action="manual_start"} 1`)
	assert.Contains(t, body, `irrigation_actuator_calls_total{op="start",outcome="ok"} 1`)
	assert.Contains(t, body, `irrigation_status{status="active"} 1`)
}

func TestNewAppRejectsBadSchedule(t *testing.T) {
	cfg := testConfig("")
	cfg.Schedule = config.ScheduleConfig{AnalyzeInterval: time.Minute, Timezone: "Nowhere/Land"}

	_, err := NewApp(cfg)
	assert.Error(t, err)
}
