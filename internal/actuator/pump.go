package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every request to the actuator.
const DefaultTimeout = 10 * time.Second

const (
	OpStart = "start"
	OpStop  = "stop"
)

// Registry is where the pump controller finds the actuator address and
// records the pump state after a confirmed command.
type Registry interface {
	ActuatorAddress() (string, bool)
	SetPumpRunning(running bool)
}

// Observer is notified about the outcome of every actuator call.
type Observer interface {
	ObserveActuatorCall(op string, err error)
}

// PumpController drives the pump over HTTP. A failed call is reported once
// and never retried here.
type PumpController struct {
	registry Registry
	client   *http.Client
	observer Observer
}

type startRequest struct {
	Duration int `json:"duration"`
}

func NewPumpController(registry Registry, timeout time.Duration, observer Observer) *PumpController {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PumpController{
		registry: registry,
		client:   &http.Client{Timeout: timeout},
		observer: observer,
	}
}

// Start asks the actuator to run the pump for the given number of minutes.
func (p *PumpController) Start(ctx context.Context, durationMinutes int) error {
	body, err := json.Marshal(startRequest{Duration: durationMinutes})
	if err != nil {
		return err
	}
	if err := p.call(ctx, OpStart, body); err != nil {
		return err
	}
	p.registry.SetPumpRunning(true)
	log.Printf("[INFO] Pump started for %d minutes", durationMinutes)
	return nil
}

// Stop asks the actuator to stop the pump.
func (p *PumpController) Stop(ctx context.Context) error {
	if err := p.call(ctx, OpStop, nil); err != nil {
		return err
	}
	p.registry.SetPumpRunning(false)
	log.Println("[INFO] Pump stopped")
	return nil
}

func (p *PumpController) call(ctx context.Context, op string, body []byte) (err error) {
	defer func() {
		if p.observer != nil {
			p.observer.ObserveActuatorCall(op, err)
		}
	}()

	addr, ok := p.registry.ActuatorAddress()
	if !ok {
		log.Printf("[WARN] Cannot %s pump - actuator address not available", op)
		return ErrActuatorUnavailable
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, BaseURL(addr)+"/pump/"+op, reader)
	if err != nil {
		return &UnreachableError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.Printf("[ERROR] Actuator communication error on %s: %v", op, err)
		return &UnreachableError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("[ERROR] Pump %s failed - HTTP %d", op, resp.StatusCode)
		return &RejectedError{Op: op, StatusCode: resp.StatusCode}
	}
	return nil
}

// BaseURL turns a registered address such as "192.168.1.40" or
// "http://pump.local:8080/" into a URL prefix without trailing slash.
func BaseURL(addr string) string {
	addr = strings.TrimRight(strings.TrimSpace(addr), "/")
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return addr
}
