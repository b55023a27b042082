package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prite36/smart-irrigation/internal/actuator"
	"github.com/prite36/smart-irrigation/internal/decision"
	"github.com/prite36/smart-irrigation/internal/irrigation"
	"github.com/prite36/smart-irrigation/internal/irrigationlog"
	"github.com/prite36/smart-irrigation/internal/models"
	"github.com/prite36/smart-irrigation/internal/sensors"
)

type stubPump struct {
	mu       sync.Mutex
	starts   []int
	stops    int
	startErr error
	stopErr  error
}

func (p *stubPump) Start(ctx context.Context, durationMinutes int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts = append(p.starts, durationMinutes)
	return p.startErr
}

func (p *stubPump) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return p.stopErr
}

func newTestAPI(t *testing.T, snap models.SensorSnapshot) (http.Handler, *irrigation.Controller, *stubPump) {
	t.Helper()
	ctrl := irrigation.NewController(
		decision.NewEngine(decision.DefaultThresholds()),
		sensors.NewStoreWith(snap),
		irrigationlog.New(),
		irrigation.Options{},
	)
	pump := &stubPump{}
	ctrl.UsePump(pump)
	return NewRouter(ctrl, Options{}), ctrl, pump
}

func dry() models.SensorSnapshot {
	return models.SensorSnapshot{
		Temperature:     28,
		SoilMoisture:    15,
		Humidity:        55,
		WaterLevel:      750,
		ActuatorAddress: "192.168.1.40",
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return rec, out
}

func TestInfoAndHealth(t *testing.T) {
	h, _, _ := newTestAPI(t, dry())

	rec, body := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, true, body["actuator_connected"])

	rec, body = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestGetSensors(t *testing.T) {
	h, _, _ := newTestAPI(t, dry())

	rec, body := do(t, h, http.MethodGet, "/api/sensors", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 15.0, body["soil_moisture"])
	assert.Equal(t, true, body["actuator_connected"])
	state, ok := body["irrigation_state"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "idle", state["status"])
	assert.Nil(t, state["active_irrigation"])
	assert.Nil(t, state["paused_due_to_rain"])
}

func TestUpdateSensors(t *testing.T) {
	testCases := []struct {
		name         string
		body         string
		expectedCode int
	}{
		{"partial update", `{"soil_moisture": 42.5}`, http.StatusOK},
		{"address alias", `{"esp32_ip": "10.0.0.8"}`, http.StatusOK},
		{"unknown fields only", `{"battery": 3.7}`, http.StatusOK},
		{"empty body", ``, http.StatusBadRequest},
		{"empty object", `{}`, http.StatusBadRequest},
		{"not an object", `[1, 2]`, http.StatusBadRequest},
		{"malformed json", `{"soil_moisture":`, http.StatusBadRequest},
		{"wrong type", `{"soil_moisture": "wet"}`, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, _, _ := newTestAPI(t, dry())
			rec, body := do(t, h, http.MethodPost, "/api/sensors", tc.body)

			assert.Equal(t, tc.expectedCode, rec.Code)
			assert.Equal(t, tc.expectedCode == http.StatusOK, body["success"])
			if tc.expectedCode != http.StatusOK {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestUpdateSensorsMergesSnapshot(t *testing.T) {
	h, ctrl, _ := newTestAPI(t, dry())

	rec, body := do(t, h, http.MethodPost, "/api/sensors", `{"soil_moisture": 42.5, "actuator_address": "10.0.0.9"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, 42.5, data["soil_moisture"])
	assert.Equal(t, "connected", data["connection_status"])
	assert.Equal(t, 750.0, data["water_level"])

	addr, ok := ctrl.ActuatorAddress()
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.9", addr)
}

func TestUpdateSensorsUnknownFieldsStampsSnapshot(t *testing.T) {
	h, ctrl, _ := newTestAPI(t, dry())

	rec, body := do(t, h, http.MethodPost, "/api/sensors", `{"battery": 3.7}`)

	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "connected", data["connection_status"])
	assert.Equal(t, 15.0, data["soil_moisture"])

	snap := ctrl.Snapshot()
	assert.Equal(t, models.Connected, snap.ConnectionStatus)
	assert.WithinDuration(t, time.Now(), snap.LastUpdated, 5*time.Second)
}

func TestAnalyzeAutoStarts(t *testing.T) {
	h, ctrl, pump := newTestAPI(t, dry())

	rec, body := do(t, h, http.MethodGet, "/api/ai/analyze", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["should_irrigate"])
	assert.Equal(t, 15.0, body["duration_minutes"])
	assert.Equal(t, "critical", body["urgency"])
	assert.Equal(t, true, body["auto_started"])
	assert.Equal(t, []int{15}, pump.starts)
	assert.Equal(t, models.StatusActive, ctrl.Status().Kind())
}

func TestControlStartAndStop(t *testing.T) {
	h, ctrl, pump := newTestAPI(t, dry())

	rec, body := do(t, h, http.MethodPost, "/api/irrigation/control", `{"action": "start"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Irrigation started for 10 minutes", body["message"])
	assert.Equal(t, []int{10}, pump.starts)

	rec, _ = do(t, h, http.MethodPost, "/api/irrigation/control", `{"action": "start", "duration": 25}`)
	require.Equal(t, http.StatusOK, rec.Code)
	session, _ := ctrl.Status().ActiveSession()
	assert.Equal(t, 25, session.DurationMinutes)

	rec, body = do(t, h, http.MethodPost, "/api/irrigation/control", `{"action": "stop"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1, pump.stops)
	assert.Equal(t, models.StatusIdle, ctrl.Status().Kind())
}

func TestControlErrors(t *testing.T) {
	raining := dry()
	raining.RainDetected = true

	testCases := []struct {
		name         string
		snapshot     models.SensorSnapshot
		startErr     error
		body         string
		expectedCode int
	}{
		{"invalid action", dry(), nil, `{"action": "flood"}`, http.StatusBadRequest},
		{"empty body", dry(), nil, ``, http.StatusBadRequest},
		{"negative duration", dry(), nil, `{"action": "start", "duration": -5}`, http.StatusBadRequest},
		{"rain conflict", raining, nil, `{"action": "start"}`, http.StatusBadRequest},
		{"actuator unavailable", dry(), actuator.ErrActuatorUnavailable, `{"action": "start"}`, http.StatusServiceUnavailable},
		{"actuator rejected", dry(), &actuator.RejectedError{Op: "start", StatusCode: 500}, `{"action": "start"}`, http.StatusBadGateway},
		{"actuator unreachable", dry(), &actuator.UnreachableError{Op: "start", Err: errors.New("timeout")}, `{"action": "start"}`, http.StatusGatewayTimeout},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, ctrl, pump := newTestAPI(t, tc.snapshot)
			pump.startErr = tc.startErr

			rec, body := do(t, h, http.MethodPost, "/api/irrigation/control", tc.body)

			assert.Equal(t, tc.expectedCode, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, models.StatusIdle, ctrl.Status().Kind())
			assert.Empty(t, ctrl.RecentLog(0))
		})
	}
}

func TestRainFlow(t *testing.T) {
	snap := dry()
	snap.SoilMoisture = 25
	h, ctrl, pump := newTestAPI(t, snap)

	rec, _ := do(t, h, http.MethodPost, "/api/irrigation/control", `{"action": "start", "duration": 10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, h, http.MethodPost, "/api/rain/alert", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["paused"])
	assert.Equal(t, models.StatusPausedForRain, ctrl.Status().Kind())

	rec, body = do(t, h, http.MethodPost, "/api/rain/stopped", `{"soil_moisture": 18}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "resumed", body["outcome"])
	assert.Equal(t, 5.0, body["duration_minutes"])
	assert.Equal(t, []int{10, 5}, pump.starts)

	rec, body = do(t, h, http.MethodGet, "/api/motor-log", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3.0, body["total"])
	logs := body["logs"].([]interface{})
	assert.Equal(t, "resumed_after_rain", logs[0].(map[string]interface{})["action"])
	assert.Equal(t, "manual_start", logs[2].(map[string]interface{})["action"])
}

func TestRainStoppedResumeFailure(t *testing.T) {
	snap := dry()
	snap.SoilMoisture = 25
	h, ctrl, pump := newTestAPI(t, snap)

	do(t, h, http.MethodPost, "/api/irrigation/control", `{"action": "start"}`)
	do(t, h, http.MethodPost, "/api/rain/alert", "")
	pump.startErr = &actuator.RejectedError{Op: "start", StatusCode: 503}

	rec, body := do(t, h, http.MethodPost, "/api/rain/stopped", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, models.StatusPausedForRain, ctrl.Status().Kind())
}

func TestRainStoppedRejectsMalformedBody(t *testing.T) {
	h, _, _ := newTestAPI(t, dry())

	rec, _ := do(t, h, http.MethodPost, "/api/rain/stopped", `{"soil_moisture": "damp"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	testCases := map[error]int{
		irrigation.ErrValidation:          http.StatusBadRequest,
		irrigation.ErrInvalidAction:       http.StatusBadRequest,
		irrigation.ErrRainConflict:        http.StatusBadRequest,
		actuator.ErrActuatorUnavailable:   http.StatusServiceUnavailable,
		errors.New("database is on fire"): http.StatusInternalServerError,
	}
	for err, expected := range testCases {
		assert.Equal(t, expected, statusFor(err), "error %v", err)
	}
}
