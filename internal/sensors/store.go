package sensors

import (
	"errors"
	"time"

	"github.com/prite36/smart-irrigation/internal/models"
)

// ErrEmptyUpdate is returned when an update carries no sensor field.
var ErrEmptyUpdate = errors.New("no sensor data received")

// Store holds the latest sensor snapshot and the registered actuator address.
// It is not safe for concurrent use; the irrigation controller serializes access.
type Store struct {
	snapshot models.SensorSnapshot
	now      func() time.Time
}

// DefaultSnapshot is the state the service starts with before any device reports.
func DefaultSnapshot() models.SensorSnapshot {
	return models.SensorSnapshot{
		Temperature:      25.5,
		SoilMoisture:     37.2,
		Humidity:         68,
		WaterLevel:       750,
		LastUpdated:      time.Now(),
		ConnectionStatus: models.Disconnected,
	}
}

func NewStore() *Store {
	return &Store{snapshot: DefaultSnapshot(), now: time.Now}
}

// NewStoreWith starts from the given snapshot, mostly useful in tests.
func NewStoreWith(initial models.SensorSnapshot) *Store {
	return &Store{snapshot: initial, now: time.Now}
}

// Ingest merges the present fields of update into the snapshot.
func (s *Store) Ingest(update models.SensorUpdate) (models.SensorSnapshot, error) {
	if update.IsEmpty() {
		return s.snapshot, ErrEmptyUpdate
	}

	if update.Temperature != nil {
		s.snapshot.Temperature = *update.Temperature
	}
	if update.SoilMoisture != nil {
		s.snapshot.SoilMoisture = *update.SoilMoisture
	}
	if update.Humidity != nil {
		s.snapshot.Humidity = *update.Humidity
	}
	if update.WaterLevel != nil {
		s.snapshot.WaterLevel = *update.WaterLevel
	}
	if update.RainDetected != nil {
		s.snapshot.RainDetected = *update.RainDetected
	}
	if update.PumpRunning != nil {
		s.snapshot.PumpRunning = *update.PumpRunning
	}
	// Single actuator: the last device to report its address wins.
	if addr, ok := update.Address(); ok {
		s.snapshot.ActuatorAddress = addr
	}

	return s.Touch(), nil
}

// Touch records that the device reported in without changing any reading.
func (s *Store) Touch() models.SensorSnapshot {
	s.snapshot.LastUpdated = s.now()
	s.snapshot.ConnectionStatus = models.Connected
	return s.snapshot
}

func (s *Store) Snapshot() models.SensorSnapshot {
	return s.snapshot
}

func (s *Store) SetPumpRunning(running bool) {
	s.snapshot.PumpRunning = running
}

func (s *Store) SetRainDetected(detected bool) {
	s.snapshot.RainDetected = detected
}

// ActuatorAddress returns the registered actuator address.
func (s *Store) ActuatorAddress() (string, bool) {
	return s.snapshot.ActuatorAddress, s.snapshot.ActuatorAddress != ""
}
