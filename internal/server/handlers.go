package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/prite36/smart-irrigation/internal/actuator"
	"github.com/prite36/smart-irrigation/internal/irrigation"
	"github.com/prite36/smart-irrigation/internal/irrigationlog"
	"github.com/prite36/smart-irrigation/internal/models"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = fmt.Errorf("%w: no data received", irrigation.ErrValidation)

type InfoResponse struct {
	Message           string    `json:"message"`
	Version           string    `json:"version"`
	Status            string    `json:"status"`
	ActuatorConnected bool      `json:"actuator_connected"`
	Features          []string  `json:"features"`
	Timestamp         time.Time `json:"timestamp"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type RainStoppedResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	irrigation.RainStoppedResult
}

type RainAlertResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Paused  bool   `json:"paused"`
}

type MotorLogResponse struct {
	Logs              []models.LogEntry `json:"logs"`
	Total             int               `json:"total"`
	ActuatorConnected bool              `json:"actuator_connected"`
}

type controlRequest struct {
	Action   string `json:"action"`
	Duration *int   `json:"duration"`
}

type rainStoppedRequest struct {
	SoilMoisture *float64 `json:"soil_moisture"`
}

func InfoHandler(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, InfoResponse{
			Message:           "Smart irrigation API server",
			Version:           Version,
			Status:            "running",
			ActuatorConnected: ctrl.View().ActuatorConnected,
			Features:          []string{"Rain Management", "Automatic Irrigation", "Motor Logging"},
			Timestamp:         time.Now(),
		})
	}
}

func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func GetSensorsHandler(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ctrl.View())
	}
}

// UpdateSensorsHandler merges a partial reading. A body with only
// unrecognised fields is acknowledged without changing the snapshot.
func UpdateSensorsHandler(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if len(body) == 0 {
			writeError(w, errEmptyBody)
			return
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			writeError(w, fmt.Errorf("%w: %v", irrigation.ErrValidation, err))
			return
		}
		if len(fields) == 0 {
			writeError(w, errEmptyBody)
			return
		}

		var update models.SensorUpdate
		if err := json.Unmarshal(body, &update); err != nil {
			writeError(w, fmt.Errorf("%w: %v", irrigation.ErrValidation, err))
			return
		}
		if update.IsEmpty() {
			log.Printf("[WARN] Sensor update carried no recognised fields: %s", body)
			writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: ctrl.Touch()})
			return
		}

		snap, err := ctrl.Ingest(update)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: snap})
	}
}

func AnalyzeHandler(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ctrl.Analyze(r.Context()))
	}
}

func RainAlertHandler(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paused := ctrl.RainAlert(r.Context())
		writeJSON(w, http.StatusOK, RainAlertResponse{
			Success: true,
			Message: "Rain alert processed",
			Paused:  paused,
		})
	}
}

func RainStoppedHandler(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rainStoppedRequest
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, fmt.Errorf("%w: %v", irrigation.ErrValidation, err))
				return
			}
		}

		result, err := ctrl.RainStopped(r.Context(), req.SoilMoisture)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, RainStoppedResponse{
			Success:           true,
			Message:           "Rain stopped processed",
			RainStoppedResult: result,
		})
	}
}

func ControlHandler(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if len(bytes.TrimSpace(body)) == 0 {
			writeError(w, errEmptyBody)
			return
		}

		var req controlRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, fmt.Errorf("%w: %v", irrigation.ErrValidation, err))
			return
		}

		switch req.Action {
		case "start":
			duration := irrigation.DefaultManualDuration
			if req.Duration != nil {
				duration = *req.Duration
			}
			if err := ctrl.ManualStart(r.Context(), duration); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, SuccessResponse{
				Success: true,
				Message: fmt.Sprintf("Irrigation started for %d minutes", duration),
			})
		case "stop":
			if err := ctrl.ManualStop(r.Context()); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Irrigation stopped"})
		default:
			writeError(w, fmt.Errorf("%w %q", irrigation.ErrInvalidAction, req.Action))
		}
	}
}

func MotorLogHandler(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs := ctrl.RecentLog(irrigationlog.DefaultRecent)
		writeJSON(w, http.StatusOK, MotorLogResponse{
			Logs:              logs,
			Total:             len(logs),
			ActuatorConnected: ctrl.View().ActuatorConnected,
		})
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read request body: %v", irrigation.ErrValidation, err)
	}
	return body, nil
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, irrigation.ErrValidation),
		errors.Is(err, irrigation.ErrInvalidAction),
		errors.Is(err, irrigation.ErrRainConflict):
		return http.StatusBadRequest
	}

	switch actuator.Kind(err) {
	case actuator.KindUnavailable:
		return http.StatusServiceUnavailable
	case actuator.KindRejected:
		return http.StatusBadGateway
	case actuator.KindUnreachable:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[ERROR] Request failed: %v", err)
	}
	writeJSON(w, status, ErrorResponse{Success: false, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] Failed to encode response: %v", err)
	}
}
