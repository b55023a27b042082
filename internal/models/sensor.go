package models

import "time"

type ConnectionStatus string

const (
	Connected    ConnectionStatus = "connected"
	Disconnected ConnectionStatus = "disconnected"
)

// SensorSnapshot is the latest merged view of the field sensors.
type SensorSnapshot struct {
	Temperature      float64          `json:"temperature"`
	SoilMoisture     float64          `json:"soil_moisture"`
	Humidity         float64          `json:"humidity"`
	WaterLevel       float64          `json:"water_level"`
	RainDetected     bool             `json:"rain_detected"`
	PumpRunning      bool             `json:"pump_running"`
	ActuatorAddress  string           `json:"actuator_address,omitempty"`
	LastUpdated      time.Time        `json:"last_updated"`
	ConnectionStatus ConnectionStatus `json:"connection_status"`
}

// SensorUpdate is a partial snapshot. Nil fields keep their previous value.
type SensorUpdate struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	SoilMoisture    *float64 `json:"soil_moisture,omitempty"`
	Humidity        *float64 `json:"humidity,omitempty"`
	WaterLevel      *float64 `json:"water_level,omitempty"`
	RainDetected    *bool    `json:"rain_detected,omitempty"`
	PumpRunning     *bool    `json:"pump_running,omitempty"`
	ActuatorAddress *string  `json:"actuator_address,omitempty"`
	// ESP32IP is the field name older pump firmware reports its address under.
	ESP32IP *string `json:"esp32_ip,omitempty"`
}

// Address returns the actuator address carried by the update, if any.
func (u SensorUpdate) Address() (string, bool) {
	if u.ActuatorAddress != nil && *u.ActuatorAddress != "" {
		return *u.ActuatorAddress, true
	}
	if u.ESP32IP != nil && *u.ESP32IP != "" {
		return *u.ESP32IP, true
	}
	return "", false
}

// IsEmpty reports whether the update carries no recognised field.
func (u SensorUpdate) IsEmpty() bool {
	return u.Temperature == nil && u.SoilMoisture == nil && u.Humidity == nil &&
		u.WaterLevel == nil && u.RainDetected == nil && u.PumpRunning == nil &&
		u.ActuatorAddress == nil && u.ESP32IP == nil
}

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyModerate Urgency = "moderate"
	UrgencyCritical Urgency = "critical"
)

// Decision is the outcome of one irrigation analysis.
type Decision struct {
	ShouldIrrigate  bool      `json:"should_irrigate"`
	DurationMinutes int       `json:"duration_minutes"`
	Reason          string    `json:"reason"`
	Urgency         Urgency   `json:"urgency"`
	Timestamp       time.Time `json:"timestamp"`
}
