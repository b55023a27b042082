package decision

import (
	"fmt"
	"time"

	"github.com/prite36/smart-irrigation/internal/models"
)

const (
	CriticalDurationMinutes = 15
	ExtendedDurationMinutes = 15
	ModerateDurationMinutes = 10
)

// Thresholds are the fixed limits the rule chain is evaluated against.
type Thresholds struct {
	SoilMoistureMin      float64 `mapstructure:"soil_moisture_min"`
	SoilMoistureCritical float64 `mapstructure:"soil_moisture_critical"`
	WaterLevelMin        float64 `mapstructure:"water_level_min"`
	TemperatureMax       float64 `mapstructure:"temperature_max"`
	HumidityMin          float64 `mapstructure:"humidity_min"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		SoilMoistureMin:      30,
		SoilMoistureCritical: 20,
		WaterLevelMin:        200,
		TemperatureMax:       35,
		HumidityMin:          40,
	}
}

// Engine maps a sensor snapshot to an irrigation decision.
type Engine struct {
	thresholds Thresholds
	now        func() time.Time
}

func NewEngine(t Thresholds) *Engine {
	return &Engine{thresholds: t, now: time.Now}
}

func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Analyze evaluates the rules in order; the first match wins.
func (e *Engine) Analyze(s models.SensorSnapshot) models.Decision {
	d := models.Decision{
		Urgency:   models.UrgencyLow,
		Timestamp: e.now(),
	}
	t := e.thresholds

	switch {
	case s.RainDetected:
		d.Reason = "Rain detected - irrigation not needed"
	case s.WaterLevel < t.WaterLevelMin:
		d.Reason = fmt.Sprintf("Water level too low (%vL)", s.WaterLevel)
	case s.SoilMoisture <= t.SoilMoistureCritical:
		d.ShouldIrrigate = true
		d.DurationMinutes = CriticalDurationMinutes
		d.Urgency = models.UrgencyCritical
		d.Reason = fmt.Sprintf("Critical irrigation needed - soil moisture: %v%%", s.SoilMoisture)
	case s.SoilMoisture <= t.SoilMoistureMin:
		d.ShouldIrrigate = true
		d.Urgency = models.UrgencyModerate
		if s.Temperature > t.TemperatureMax && s.Humidity < t.HumidityMin {
			d.DurationMinutes = ExtendedDurationMinutes
			d.Reason = fmt.Sprintf("Extended irrigation - hot & dry (T:%v°C, H:%v%%)", s.Temperature, s.Humidity)
		} else {
			d.DurationMinutes = ModerateDurationMinutes
			d.Reason = fmt.Sprintf("Moderate irrigation needed - soil moisture: %v%%", s.SoilMoisture)
		}
	default:
		d.Reason = fmt.Sprintf("Soil conditions optimal - moisture: %v%%", s.SoilMoisture)
	}
	return d
}

// ShouldResumeAfterRain decides whether a rain-paused session continues.
// It shares SoilMoistureMin with the moderate rule of Analyze.
func (e *Engine) ShouldResumeAfterRain(soilMoisture float64) (bool, string) {
	if soilMoisture >= e.thresholds.SoilMoistureMin {
		return false, fmt.Sprintf("Irrigation cancelled - sufficient moisture after rain (%v%%)", soilMoisture)
	}
	return true, fmt.Sprintf("Even after rain, soil needs water. Current moisture: %v%%", soilMoisture)
}

// ResumeDuration is half of the interrupted session, never below five minutes.
func ResumeDuration(pausedMinutes int) int {
	return max(5, pausedMinutes/2)
}
