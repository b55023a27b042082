// Package metrics exports irrigation activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prite36/smart-irrigation/internal/actuator"
	"github.com/prite36/smart-irrigation/internal/models"
)

const namespace = "irrigation"

// Metrics is safe to use as a nil pointer; every method then does nothing.
type Metrics struct {
	registry      *prometheus.Registry
	actions       *prometheus.CounterVec
	actuatorCalls *prometheus.CounterVec
	status        *prometheus.GaugeVec
	sensorUpdates prometheus.Counter
	soilMoisture  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Committed irrigation actions by type.",
		}, []string{"action"}),
		actuatorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuator_calls_total",
			Help:      "Pump actuator calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "status",
			Help:      "1 for the current irrigation status, 0 otherwise.",
		}, []string{"status"}),
		sensorUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_updates_total",
			Help:      "Accepted sensor updates.",
		}),
		soilMoisture: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "soil_moisture_percent",
			Help:      "Last reported soil moisture.",
		}),
	}

	m.registry.MustRegister(
		m.actions,
		m.actuatorCalls,
		m.status,
		m.sensorUpdates,
		m.soilMoisture,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.setStatus(models.StatusIdle)
	return m
}

// Record implements irrigationlog.Sink.
func (m *Metrics) Record(entry models.LogEntry) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(string(entry.Action)).Inc()
	m.setStatus(statusAfter(entry.Action))
}

// ObserveActuatorCall implements actuator.Observer.
func (m *Metrics) ObserveActuatorCall(op string, err error) {
	if m == nil {
		return
	}
	m.actuatorCalls.WithLabelValues(op, actuator.Kind(err)).Inc()
}

// SensorUpdated implements irrigation.SensorObserver.
func (m *Metrics) SensorUpdated(s models.SensorSnapshot) {
	if m == nil {
		return
	}
	m.sensorUpdates.Inc()
	m.soilMoisture.Set(s.SoilMoisture)
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) setStatus(current models.StatusKind) {
	for _, s := range []models.StatusKind{models.StatusIdle, models.StatusActive, models.StatusPausedForRain} {
		v := 0.0
		if s == current {
			v = 1
		}
		m.status.WithLabelValues(string(s)).Set(v)
	}
}

func statusAfter(action models.Action) models.StatusKind {
	switch action {
	case models.ActionAIAutoStart, models.ActionManualStart, models.ActionResumedAfterRain:
		return models.StatusActive
	case models.ActionPausedDueToRain:
		return models.StatusPausedForRain
	default:
		return models.StatusIdle
	}
}
