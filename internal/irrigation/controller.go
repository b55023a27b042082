// Package irrigation holds the rain-aware irrigation state machine.
//
// Controller is the single exclusion boundary for the sensor snapshot, the
// irrigation status and the action log. Two locks are used:
//
//   - mu guards the data and is never held across network I/O.
//   - transitions serializes every status transition from the moment state is
//     read until the result is committed, including the actuator call.
//
// Readers only take mu, so they are never blocked by a slow actuator, while two
// callers can never both observe Idle and both start the pump. Committed log
// entries reach the sinks only after both locks are released.
package irrigation

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prite36/smart-irrigation/internal/actuator"
	"github.com/prite36/smart-irrigation/internal/decision"
	"github.com/prite36/smart-irrigation/internal/irrigationlog"
	"github.com/prite36/smart-irrigation/internal/models"
	"github.com/prite36/smart-irrigation/internal/sensors"
)

// DefaultManualDuration is used when a manual start does not name a duration.
const DefaultManualDuration = 10

// Pump is the actuator capability the controller drives.
type Pump interface {
	Start(ctx context.Context, durationMinutes int) error
	Stop(ctx context.Context) error
}

// Options tunes controller behaviour.
type Options struct {
	// StopPumpOnRain also stops the physical pump when rain pauses a session.
	// When false the pause is logical only.
	StopPumpOnRain bool
}

// Controller owns all irrigation state and drives the pump through every
// status transition.
type Controller struct {
	mu          sync.Mutex
	transitions sync.Mutex

	engine  *decision.Engine
	store   *sensors.Store
	actions *irrigationlog.Log
	pump    Pump
	opts    Options

	status    models.IrrigationStatus
	rainStart *time.Time
	rainEnd   *time.Time
	messages  []models.StatusMessage

	sinks     []irrigationlog.Sink
	observers []SensorObserver
	now       func() time.Time
}

// SensorObserver is notified with the merged snapshot after each accepted update.
type SensorObserver interface {
	SensorUpdated(snapshot models.SensorSnapshot)
}

// NewController creates an idle controller. Attach the actuator with UsePump.
func NewController(engine *decision.Engine, store *sensors.Store, actions *irrigationlog.Log, opts Options) *Controller {
	return &Controller{
		engine:  engine,
		store:   store,
		actions: actions,
		opts:    opts,
		status:  models.Idle(),
		now:     time.Now,
	}
}

// UsePump attaches the actuator. The pump usually takes the controller
// itself as its actuator.Registry, so it is wired after construction.
func (c *Controller) UsePump(p Pump) {
	c.transitions.Lock()
	defer c.transitions.Unlock()
	c.pump = p
}

// AddSink registers a receiver for committed log entries.
func (c *Controller) AddSink(s irrigationlog.Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// AddSensorObserver registers a receiver for accepted sensor updates.
func (c *Controller) AddSensorObserver(o SensorObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// ActuatorAddress implements actuator.Registry.
func (c *Controller) ActuatorAddress() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ActuatorAddress()
}

// SetPumpRunning implements actuator.Registry.
func (c *Controller) SetPumpRunning(running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.SetPumpRunning(running)
}

// Ingest merges a partial sensor update into the snapshot.
func (c *Controller) Ingest(update models.SensorUpdate) (models.SensorSnapshot, error) {
	c.mu.Lock()
	snap, err := c.store.Ingest(update)
	observers := append([]SensorObserver{}, c.observers...)
	c.mu.Unlock()
	if err != nil {
		return snap, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	for _, o := range observers {
		o.SensorUpdated(snap)
	}
	return snap, nil
}

// Touch stamps the snapshot as freshly reported without changing any reading.
func (c *Controller) Touch() models.SensorSnapshot {
	c.mu.Lock()
	snap := c.store.Touch()
	observers := append([]SensorObserver{}, c.observers...)
	c.mu.Unlock()

	for _, o := range observers {
		o.SensorUpdated(snap)
	}
	return snap
}

// View is the observable service state.
type View struct {
	models.SensorSnapshot
	IrrigationState   models.IrrigationStateView `json:"irrigation_state"`
	ActuatorConnected bool                       `json:"actuator_connected"`
}

// View returns the snapshot together with the irrigation state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.store.Snapshot()
	state := models.IrrigationStateView{
		Status:        c.status.Kind(),
		RainStartTime: c.rainStart,
		RainEndTime:   c.rainEnd,
		Messages:      append([]models.StatusMessage{}, c.messages...),
	}
	if s, ok := c.status.ActiveSession(); ok {
		state.ActiveIrrigation = &s
	}
	if r, ok := c.status.PauseRecord(); ok {
		state.PausedDueToRain = &r
	}
	return View{
		SensorSnapshot:    snap,
		IrrigationState:   state,
		ActuatorConnected: snap.ActuatorAddress != "",
	}
}

// Status returns the current irrigation status.
func (c *Controller) Status() models.IrrigationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Snapshot returns a copy of the latest sensor readings.
func (c *Controller) Snapshot() models.SensorSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Snapshot()
}

// RecentLog returns up to n log entries, newest first.
func (c *Controller) RecentLog(n int) []models.LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actions.Recent(n)
}

// AnalysisResult is the engine decision plus what the controller did with it.
type AnalysisResult struct {
	models.Decision
	AutoStarted    bool   `json:"auto_started"`
	AutoStartError string `json:"auto_start_error,omitempty"`
}

// Analyze runs the decision engine and starts an automatic session when the
// controller is idle, it is not raining and the engine asks for water.
func (c *Controller) Analyze(ctx context.Context) AnalysisResult {
	result, entry := c.analyze(ctx)
	if entry != nil {
		c.dispatch(*entry)
		log.Printf("[INFO] Automatic irrigation started for %d minutes: %s", result.DurationMinutes, result.Reason)
	}
	return result
}

func (c *Controller) analyze(ctx context.Context) (AnalysisResult, *models.LogEntry) {
	c.transitions.Lock()
	defer c.transitions.Unlock()

	c.mu.Lock()
	snap := c.store.Snapshot()
	d := c.engine.Analyze(snap)
	eligible := d.ShouldIrrigate && !snap.RainDetected && c.status.Kind() == models.StatusIdle
	c.mu.Unlock()

	result := AnalysisResult{Decision: d}
	if !eligible {
		return result, nil
	}

	if err := c.startPump(ctx, d.DurationMinutes); err != nil {
		log.Printf("[WARN] Automatic irrigation not started: %v", err)
		result.AutoStartError = err.Error()
		return result, nil
	}

	c.mu.Lock()
	c.status = models.Active(models.IrrigationSession{
		Type:            models.SessionAIAutomatic,
		DurationMinutes: d.DurationMinutes,
		StartTime:       c.now(),
		Reason:          d.Reason,
	})
	entry := c.appendLocked(models.LogEntry{
		Action:   models.ActionAIAutoStart,
		Duration: d.DurationMinutes,
		Reason:   d.Reason,
	})
	c.mu.Unlock()

	result.AutoStarted = true
	return result, &entry
}

// ManualStart starts a manual session. Any current session is replaced.
func (c *Controller) ManualStart(ctx context.Context, durationMinutes int) error {
	if durationMinutes < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrValidation)
	}

	entry, err := c.manualStart(ctx, durationMinutes)
	if err != nil {
		return err
	}
	c.dispatch(entry)
	log.Printf("[INFO] Manual irrigation started for %d minutes", durationMinutes)
	return nil
}

func (c *Controller) manualStart(ctx context.Context, durationMinutes int) (models.LogEntry, error) {
	c.transitions.Lock()
	defer c.transitions.Unlock()

	c.mu.Lock()
	raining := c.store.Snapshot().RainDetected
	c.mu.Unlock()
	if raining {
		return models.LogEntry{}, ErrRainConflict
	}

	if err := c.startPump(ctx, durationMinutes); err != nil {
		return models.LogEntry{}, fmt.Errorf("failed to start pump: %w", err)
	}

	c.mu.Lock()
	c.status = models.Active(models.IrrigationSession{
		Type:            models.SessionManual,
		DurationMinutes: durationMinutes,
		StartTime:       c.now(),
	})
	entry := c.appendLocked(models.LogEntry{
		Action:   models.ActionManualStart,
		Duration: durationMinutes,
	})
	c.mu.Unlock()
	return entry, nil
}

// ManualStop stops the pump and returns to Idle from any state. The actuator
// is called even when nothing is running.
func (c *Controller) ManualStop(ctx context.Context) error {
	entry, err := c.manualStop(ctx)
	if err != nil {
		return err
	}
	c.dispatch(entry)
	log.Println("[INFO] Manual irrigation stopped")
	return nil
}

func (c *Controller) manualStop(ctx context.Context) (models.LogEntry, error) {
	c.transitions.Lock()
	defer c.transitions.Unlock()

	if err := c.stopPump(ctx); err != nil {
		return models.LogEntry{}, fmt.Errorf("failed to stop pump: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = models.Idle()
	return c.appendLocked(models.LogEntry{Action: models.ActionManualStop}), nil
}

// RainAlert marks rain and pauses an active session. It reports whether a
// session was paused.
func (c *Controller) RainAlert(ctx context.Context) bool {
	entry := c.rainAlert(ctx)
	if entry == nil {
		return false
	}
	c.dispatch(*entry)
	return true
}

func (c *Controller) rainAlert(ctx context.Context) *models.LogEntry {
	c.transitions.Lock()
	defer c.transitions.Unlock()

	c.mu.Lock()
	now := c.now()
	c.store.SetRainDetected(true)
	c.rainStart = &now

	session, active := c.status.ActiveSession()
	if !active {
		c.mu.Unlock()
		log.Println("[INFO] Rain alert received while no irrigation is active")
		return nil
	}

	c.status = models.PausedForRain(models.RainPauseRecord{Session: session, RainStartTime: now})
	c.setMessageLocked("paused", "Due to rain, irrigation has been paused", now)
	entry := c.appendLocked(models.LogEntry{
		Action:   models.ActionPausedDueToRain,
		Duration: session.DurationMinutes,
		Reason:   "Rain detected - irrigation paused automatically",
	})
	c.mu.Unlock()

	log.Printf("[INFO] Rain alert: %s irrigation paused at %s", session.Type, now.Format(time.RFC3339))

	if c.opts.StopPumpOnRain {
		if err := c.stopPump(ctx); err != nil {
			log.Printf("[ERROR] Rain pause recorded but pump could not be stopped: %v", err)
		}
	}
	return &entry
}

// RainOutcome is what a rain-stopped event did to a paused session.
type RainOutcome string

const (
	RainOutcomeNone         RainOutcome = "none"
	RainOutcomeResumed      RainOutcome = "resumed"
	RainOutcomeCancelled    RainOutcome = "cancelled"
	RainOutcomeResumeFailed RainOutcome = "resume_failed"
)

// RainStoppedResult describes how a rain pause was resolved.
type RainStoppedResult struct {
	Outcome         RainOutcome `json:"outcome"`
	Reason          string      `json:"reason,omitempty"`
	DurationMinutes int         `json:"duration_minutes,omitempty"`
}

// RainStopped clears the rain flag and resolves a rain pause, either resuming
// with half the original duration or cancelling when the soil is moist enough.
// soilMoisture overrides the snapshot reading when not nil.
func (c *Controller) RainStopped(ctx context.Context, soilMoisture *float64) (RainStoppedResult, error) {
	result, entry, err := c.rainStopped(ctx, soilMoisture)
	if entry != nil {
		c.dispatch(*entry)
	}
	return result, err
}

func (c *Controller) rainStopped(ctx context.Context, soilMoisture *float64) (RainStoppedResult, *models.LogEntry, error) {
	c.transitions.Lock()
	defer c.transitions.Unlock()

	c.mu.Lock()
	now := c.now()
	c.store.SetRainDetected(false)
	c.rainEnd = &now

	record, paused := c.status.PauseRecord()
	if !paused {
		c.mu.Unlock()
		return RainStoppedResult{Outcome: RainOutcomeNone}, nil, nil
	}

	moisture := c.store.Snapshot().SoilMoisture
	if soilMoisture != nil {
		moisture = *soilMoisture
	}
	resume, reason := c.engine.ShouldResumeAfterRain(moisture)

	if !resume {
		c.status = models.Idle()
		c.setMessageLocked("cancelled", "Irrigation cancelled - sufficient moisture after rain", now)
		entry := c.appendLocked(models.LogEntry{
			Action:       models.ActionCancelledAfterRain,
			Reason:       reason,
			SoilMoisture: &moisture,
		})
		c.mu.Unlock()

		log.Printf("[INFO] Rain stopped: %s", reason)
		return RainStoppedResult{Outcome: RainOutcomeCancelled, Reason: reason}, &entry, nil
	}
	c.mu.Unlock()

	duration := decision.ResumeDuration(record.Session.DurationMinutes)
	if err := c.startPump(ctx, duration); err != nil {
		log.Printf("[ERROR] Rain stopped: could not resume irrigation for %d minutes: %v", duration, err)
		c.mu.Lock()
		c.setMessageLocked("resume_failed", fmt.Sprintf("Could not resume irrigation after rain: %v", err), c.now())
		c.mu.Unlock()
		return RainStoppedResult{Outcome: RainOutcomeResumeFailed, Reason: reason, DurationMinutes: duration}, nil,
			fmt.Errorf("failed to resume irrigation after rain: %w", err)
	}

	c.mu.Lock()
	started := c.now()
	c.status = models.Active(models.IrrigationSession{
		Type:            models.SessionResumedAfterRain,
		DurationMinutes: duration,
		StartTime:       started,
	})
	c.setMessageLocked("resumed", fmt.Sprintf("Timer resumed after rain - %d minutes remaining", duration), started)
	entry := c.appendLocked(models.LogEntry{
		Action:       models.ActionResumedAfterRain,
		Duration:     duration,
		Reason:       reason,
		SoilMoisture: &moisture,
	})
	c.mu.Unlock()

	log.Printf("[INFO] Rain stopped: irrigation resumed for %d minutes", duration)
	return RainStoppedResult{Outcome: RainOutcomeResumed, Reason: reason, DurationMinutes: duration}, &entry, nil
}

// startPump and stopPump detach from the caller's cancellation: once a command
// is sent, its outcome is always committed. The pump's own timeout bounds it.
func (c *Controller) startPump(ctx context.Context, durationMinutes int) error {
	if c.pump == nil {
		return actuator.ErrActuatorUnavailable
	}
	return c.pump.Start(context.WithoutCancel(ctx), durationMinutes)
}

func (c *Controller) stopPump(ctx context.Context) error {
	if c.pump == nil {
		return actuator.ErrActuatorUnavailable
	}
	return c.pump.Stop(context.WithoutCancel(ctx))
}

// appendLocked stamps and stores an entry. c.mu must be held.
func (c *Controller) appendLocked(entry models.LogEntry) models.LogEntry {
	entry.ID = uuid.NewString()
	entry.Timestamp = c.now()
	if entry.SoilMoisture == nil {
		m := c.store.Snapshot().SoilMoisture
		entry.SoilMoisture = &m
	}
	c.actions.Append(entry)
	return entry
}

// setMessageLocked replaces the status message. c.mu must be held.
func (c *Controller) setMessageLocked(kind, message string, at time.Time) {
	c.messages = []models.StatusMessage{{Type: kind, Message: message, Timestamp: at}}
}

// dispatch fans an entry out to the sinks. It must be called with neither
// c.mu nor c.transitions held.
func (c *Controller) dispatch(entry models.LogEntry) {
	c.mu.Lock()
	sinks := append([]irrigationlog.Sink{}, c.sinks...)
	c.mu.Unlock()

	for _, s := range sinks {
		s.Record(entry)
	}
}

// IsActuatorFailure reports whether err came from the actuator layer.
func IsActuatorFailure(err error) bool {
	switch actuator.Kind(err) {
	case actuator.KindUnavailable, actuator.KindRejected, actuator.KindUnreachable:
		return true
	}
	return false
}
