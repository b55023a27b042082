// Package influx exports irrigation actions and sensor readings as time-series points.
package influx

import (
	"fmt"
	"log"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/prite36/smart-irrigation/internal/models"
)

const (
	actionMeasurement = "irrigation_action"
	sensorMeasurement = "sensor_snapshot"
)

type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

type pointWriter interface {
	WritePoint(point *write.Point)
}

type Writer struct {
	client influxdb2.Client
	points pointWriter
}

// NewWriter uses the asynchronous write API so sinks never wait on the network.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go logErrors(writeAPI)

	return &Writer{client: client, points: writeAPI}, nil
}

func logErrors(w api.WriteAPI) {
	for err := range w.Errors() {
		log.Printf("[ERROR] Influx write failed: %v", err)
	}
}

// Record implements irrigationlog.Sink.
func (w *Writer) Record(entry models.LogEntry) {
	w.points.WritePoint(actionPoint(entry))
}

// SensorUpdated writes the merged snapshot after an accepted update.
func (w *Writer) SensorUpdated(s models.SensorSnapshot) {
	w.points.WritePoint(sensorPoint(s))
}

// Close flushes pending points and releases the client.
func (w *Writer) Close() {
	w.client.Close()
}

func actionPoint(entry models.LogEntry) *write.Point {
	fields := map[string]interface{}{
		"duration_minutes": entry.Duration,
	}
	if entry.SoilMoisture != nil {
		fields["soil_moisture"] = *entry.SoilMoisture
	}
	if entry.Reason != "" {
		fields["reason"] = entry.Reason
	}
	return influxdb2.NewPoint(actionMeasurement,
		map[string]string{"action": string(entry.Action)},
		fields,
		entry.Timestamp,
	)
}

func sensorPoint(s models.SensorSnapshot) *write.Point {
	return influxdb2.NewPoint(sensorMeasurement,
		map[string]string{"connection": string(s.ConnectionStatus)},
		map[string]interface{}{
			"temperature":   s.Temperature,
			"soil_moisture": s.SoilMoisture,
			"humidity":      s.Humidity,
			"water_level":   s.WaterLevel,
			"rain_detected": s.RainDetected,
			"pump_running":  s.PumpRunning,
		},
		s.LastUpdated,
	)
}
