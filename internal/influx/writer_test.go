package influx

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prite36/smart-irrigation/internal/models"
)

type capturingWriter struct {
	points []*write.Point
}

func (c *capturingWriter) WritePoint(p *write.Point) {
	c.points = append(c.points, p)
}

func fieldMap(p *write.Point) map[string]interface{} {
	out := map[string]interface{}{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tagMap(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func TestRecordWritesActionPoint(t *testing.T) {
	capture := &capturingWriter{}
	w := &Writer{points: capture}
	moisture := 35.0
	at := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)

	w.Record(models.LogEntry{
		Timestamp:    at,
		Action:       models.ActionCancelledAfterRain,
		Reason:       "Irrigation cancelled - sufficient moisture after rain (35%)",
		SoilMoisture: &moisture,
	})

	require.Len(t, capture.points, 1)
	p := capture.points[0]
	assert.Equal(t, actionMeasurement, p.Name())
	assert.Equal(t, at, p.Time())
	assert.Equal(t, "cancelled_after_rain", tagMap(p)["action"])

	fields := fieldMap(p)
	assert.Equal(t, int64(0), fields["duration_minutes"])
	assert.Equal(t, 35.0, fields["soil_moisture"])
	assert.Contains(t, fields, "reason")
}

func TestActionPointOmitsMissingMoisture(t *testing.T) {
	p := actionPoint(models.LogEntry{Action: models.ActionManualStop})

	fields := fieldMap(p)
	assert.NotContains(t, fields, "soil_moisture")
	assert.NotContains(t, fields, "reason")
}

func TestSensorPoint(t *testing.T) {
	p := sensorPoint(models.SensorSnapshot{
		SoilMoisture:     22.5,
		RainDetected:     true,
		ConnectionStatus: models.Connected,
	})

	assert.Equal(t, sensorMeasurement, p.Name())
	assert.Equal(t, "connected", tagMap(p)["connection"])
	assert.Equal(t, 22.5, fieldMap(p)["soil_moisture"])
	assert.Equal(t, true, fieldMap(p)["rain_detected"])
}

func TestNewWriterRequiresCompleteConfig(t *testing.T) {
	_, err := NewWriter(Config{URL: "http://localhost:8086"})
	assert.Error(t, err)
}
