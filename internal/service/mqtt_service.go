package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/prite36/smart-irrigation/internal/irrigation"
	"github.com/prite36/smart-irrigation/internal/models"
	mqttclient "github.com/prite36/smart-irrigation/internal/mqtt"
)

const messageTimeout = 30 * time.Second

// RainController is the part of the irrigation controller fed by MQTT.
type RainController interface {
	Ingest(update models.SensorUpdate) (models.SensorSnapshot, error)
	RainAlert(ctx context.Context) bool
	RainStopped(ctx context.Context, soilMoisture *float64) (irrigation.RainStoppedResult, error)
}

// MQTTService routes device telemetry from the broker into the controller,
// mirroring what the HTTP sensor and rain endpoints do.
type MQTTService struct {
	controller RainController
	topics     mqttclient.Topics
}

func NewMQTTService(controller RainController, topics mqttclient.Topics) *MQTTService {
	return &MQTTService{controller: controller, topics: topics}
}

type rainStoppedPayload struct {
	SoilMoisture *float64 `json:"soil_moisture"`
}

// HandleMessage is a paho message handler.
func (s *MQTTService) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
	defer cancel()

	switch msg.Topic() {
	case s.topics.Sensors:
		var update models.SensorUpdate
		if err := json.Unmarshal(msg.Payload(), &update); err != nil {
			log.Printf("[WARN] Ignoring invalid sensor payload on %s: %v", msg.Topic(), err)
			return
		}
		if _, err := s.controller.Ingest(update); err != nil {
			log.Printf("[WARN] Sensor update from %s rejected: %v", msg.Topic(), err)
		}

	case s.topics.RainAlert:
		s.controller.RainAlert(ctx)

	case s.topics.RainStopped:
		var payload rainStoppedPayload
		if len(msg.Payload()) > 0 {
			if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
				log.Printf("[WARN] Ignoring invalid soil moisture on %s: %v", msg.Topic(), err)
			}
		}
		result, err := s.controller.RainStopped(ctx, payload.SoilMoisture)
		if err != nil {
			log.Printf("[ERROR] Rain stopped via MQTT: %v", err)
			return
		}
		log.Printf("[INFO] Rain stopped via MQTT: %s", result.Outcome)

	default:
		log.Printf("[WARN] No handler for topic: %s", msg.Topic())
	}
}
