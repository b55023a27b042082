package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/prite36/smart-irrigation/internal/models"
)

const (
	publishTimeout    = 5 * time.Second
	connectMaxElapsed = 30 * time.Second
)

type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Topics are the broker paths the service listens and publishes on.
type Topics struct {
	Sensors     string
	RainAlert   string
	RainStopped string
	Events      string
}

func NewTopics(prefix string) Topics {
	return Topics{
		Sensors:     prefix + "/sensors",
		RainAlert:   prefix + "/rain/alert",
		RainStopped: prefix + "/rain/stopped",
		Events:      prefix + "/events/irrigation",
	}
}

// Client wraps a paho connection for device telemetry and action events.
type Client struct {
	client  mqtt.Client
	topics  Topics
	handler mqtt.MessageHandler
}

// NewClient connects with exponential backoff. Incoming messages on the
// subscribed topics are passed to handler.
func NewClient(cfg Config, handler mqtt.MessageHandler) (*Client, error) {
	c := &Client{topics: NewTopics(cfg.TopicPrefix), handler: handler}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetDefaultPublishHandler(handler)
	opts.OnConnect = c.connectHandler
	opts.OnConnectionLost = c.connectionLostHandler

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectMaxElapsed

	err := backoff.Retry(func() error {
		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("[WARN] Failed to connect to MQTT broker %s: %v", cfg.Broker, token.Error())
			return token.Error()
		}
		c.client = client
		return nil
	}, bo)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return c, nil
}

func (c *Client) Topics() Topics {
	return c.topics
}

// connectHandler (re)subscribes on every successful connection.
func (c *Client) connectHandler(client mqtt.Client) {
	log.Println("[INFO] Connected to MQTT broker")

	filters := map[string]byte{
		c.topics.Sensors:     1,
		c.topics.RainAlert:   1,
		c.topics.RainStopped: 1,
	}
	if token := client.SubscribeMultiple(filters, c.handler); token.Wait() && token.Error() != nil {
		log.Printf("[ERROR] Failed to subscribe to sensor topics: %v", token.Error())
		return
	}
	log.Printf("[INFO] Subscribed to %s, %s and %s", c.topics.Sensors, c.topics.RainAlert, c.topics.RainStopped)
}

func (c *Client) connectionLostHandler(client mqtt.Client, err error) {
	log.Printf("[WARN] Connection to MQTT broker lost: %v", err)
}

func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout publishing to topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("error publishing to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Record implements irrigationlog.Sink by publishing the entry as JSON.
func (c *Client) Record(entry models.LogEntry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		log.Printf("[ERROR] Failed to encode irrigation event: %v", err)
		return
	}
	if err := c.Publish(c.topics.Events, payload); err != nil {
		log.Printf("[ERROR] Failed to publish irrigation event: %v", err)
	}
}

func (c *Client) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		log.Println("[INFO] MQTT connection closed")
	}
}
