package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prite36/smart-irrigation/internal/actuator"
	"github.com/prite36/smart-irrigation/internal/config"
	"github.com/prite36/smart-irrigation/internal/decision"
	"github.com/prite36/smart-irrigation/internal/history"
	"github.com/prite36/smart-irrigation/internal/influx"
	"github.com/prite36/smart-irrigation/internal/irrigation"
	"github.com/prite36/smart-irrigation/internal/irrigationlog"
	"github.com/prite36/smart-irrigation/internal/metrics"
	"github.com/prite36/smart-irrigation/internal/mqtt"
	"github.com/prite36/smart-irrigation/internal/scheduler"
	"github.com/prite36/smart-irrigation/internal/sensors"
	"github.com/prite36/smart-irrigation/internal/server"
	"github.com/prite36/smart-irrigation/internal/slack"
	"github.com/prite36/smart-irrigation/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

// App wires the irrigation controller to its inputs and outputs. Only the
// HTTP API is mandatory; every other integration is enabled by configuration.
type App struct {
	cfg        *config.Config
	controller *irrigation.Controller
	metrics    *metrics.Metrics
	hub        *websocket.Hub
	server     *http.Server
	scheduler  *scheduler.Scheduler
	mqttClient *mqtt.Client
	history    *history.Recorder
	influx     *influx.Writer
}

func NewApp(cfg *config.Config) (*App, error) {
	initial := sensors.DefaultSnapshot()
	initial.ActuatorAddress = cfg.Actuator.Address

	controller := irrigation.NewController(
		decision.NewEngine(cfg.Thresholds),
		sensors.NewStoreWith(initial),
		irrigationlog.New(),
		irrigation.Options{StopPumpOnRain: cfg.Irrigation.StopPumpOnRain},
	)

	a := &App{
		cfg:        cfg,
		controller: controller,
		metrics:    metrics.New(),
		hub:        websocket.NewHub(),
	}

	controller.UsePump(actuator.NewPumpController(controller, cfg.Actuator.Timeout, a.metrics))
	controller.AddSink(a.metrics)
	controller.AddSink(a.hub)
	controller.AddSensorObserver(a.metrics)
	controller.AddSensorObserver(a.hub)

	if err := a.initIntegrations(); err != nil {
		a.Stop()
		return nil, err
	}

	a.server = server.New(controller, server.Options{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		Metrics:     a.metrics.Handler(),
		WebSocket:   a.hub.ServeWS,
	})
	return a, nil
}

func (a *App) initIntegrations() error {
	cfg := a.cfg

	if cfg.Database.Driver != "" {
		recorder, err := history.Open(cfg.Database.Driver, cfg.DSN())
		if err != nil {
			return err
		}
		a.history = recorder
		a.controller.AddSink(recorder)
		log.Printf("[INFO] Irrigation history mirrored to %s", cfg.Database.Driver)
	}

	if cfg.Influx.URL != "" {
		writer, err := influx.NewWriter(influx.Config{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		})
		if err != nil {
			return err
		}
		a.influx = writer
		a.controller.AddSink(writer)
		a.controller.AddSensorObserver(writer)
	}

	if notifier := slack.NewClient(cfg.Slack.BotToken, cfg.Slack.ChannelID); notifier != nil {
		a.controller.AddSink(notifier)
	}

	if cfg.MQTT.Broker != "" {
		bridge := NewMQTTService(a.controller, mqtt.NewTopics(cfg.MQTT.TopicPrefix))
		client, err := mqtt.NewClient(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, bridge.HandleMessage)
		if err != nil {
			return err
		}
		a.mqttClient = client
		a.controller.AddSink(client)
	}

	if cfg.Schedule.AnalyzeInterval > 0 {
		sched, err := scheduler.NewScheduler(a.controller, cfg.Schedule.AnalyzeInterval, cfg.Schedule.Timezone)
		if err != nil {
			return err
		}
		a.scheduler = sched
	}
	return nil
}

// Handler exposes the API routes, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Start serves until SIGINT or SIGTERM, then shuts down.
func (a *App) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.hub.Run(ctx)

	if a.scheduler != nil {
		if err := a.scheduler.Start(); err != nil {
			a.Stop()
			return err
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("[INFO] Irrigation service listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Println("[INFO] Irrigation system started. Press Ctrl+C to stop.")

	var err error
	select {
	case <-ctx.Done():
	case err = <-serverErr:
		err = fmt.Errorf("http server failed: %w", err)
	}

	a.Stop()
	return err
}

func (a *App) Stop() {
	log.Println("[INFO] Shutting down...")

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			log.Printf("[WARN] HTTP shutdown: %v", err)
		}
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.mqttClient != nil {
		a.mqttClient.Close()
	}
	if a.influx != nil {
		a.influx.Close()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			log.Printf("[WARN] Closing history database: %v", err)
		}
	}

	log.Println("[INFO] Irrigation system stopped")
}
