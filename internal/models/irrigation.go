package models

import (
	"time"

	"gorm.io/gorm"
)

type SessionType string

const (
	SessionManual           SessionType = "manual"
	SessionAIAutomatic      SessionType = "ai_automatic"
	SessionResumedAfterRain SessionType = "resumed_after_rain"
)

// IrrigationSession is one running irrigation cycle.
type IrrigationSession struct {
	Type            SessionType `json:"type"`
	DurationMinutes int         `json:"duration_minutes"`
	StartTime       time.Time   `json:"start_time"`
	Reason          string      `json:"reason,omitempty"`
}

// RainPauseRecord keeps the session that was interrupted by rain.
type RainPauseRecord struct {
	Session       IrrigationSession `json:"session"`
	RainStartTime time.Time         `json:"rain_start_time"`
}

type StatusKind string

const (
	StatusIdle          StatusKind = "idle"
	StatusActive        StatusKind = "active"
	StatusPausedForRain StatusKind = "paused_for_rain"
)

// IrrigationStatus is exactly one of Idle, Active or PausedForRain.
// Build it with Idle, Active or PausedForRain; the zero value is Idle.
type IrrigationStatus struct {
	kind    StatusKind
	session *IrrigationSession
	pause   *RainPauseRecord
}

func Idle() IrrigationStatus {
	return IrrigationStatus{kind: StatusIdle}
}

func Active(session IrrigationSession) IrrigationStatus {
	return IrrigationStatus{kind: StatusActive, session: &session}
}

func PausedForRain(record RainPauseRecord) IrrigationStatus {
	return IrrigationStatus{kind: StatusPausedForRain, pause: &record}
}

func (s IrrigationStatus) Kind() StatusKind {
	if s.kind == "" {
		return StatusIdle
	}
	return s.kind
}

// ActiveSession returns the running session when the status is Active.
func (s IrrigationStatus) ActiveSession() (IrrigationSession, bool) {
	if s.kind != StatusActive || s.session == nil {
		return IrrigationSession{}, false
	}
	return *s.session, true
}

// PauseRecord returns the pause record when the status is PausedForRain.
func (s IrrigationStatus) PauseRecord() (RainPauseRecord, bool) {
	if s.kind != StatusPausedForRain || s.pause == nil {
		return RainPauseRecord{}, false
	}
	return *s.pause, true
}

// StatusMessage is the latest human readable note about a rain transition.
type StatusMessage struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// IrrigationStateView is the JSON shape of the irrigation status for clients.
type IrrigationStateView struct {
	Status           StatusKind         `json:"status"`
	ActiveIrrigation *IrrigationSession `json:"active_irrigation"`
	PausedDueToRain  *RainPauseRecord   `json:"paused_due_to_rain"`
	RainStartTime    *time.Time         `json:"rain_start_time"`
	RainEndTime      *time.Time         `json:"rain_end_time"`
	Messages         []StatusMessage    `json:"irrigation_messages"`
}

type Action string

const (
	ActionAIAutoStart        Action = "ai_auto_start"
	ActionManualStart        Action = "manual_start"
	ActionManualStop         Action = "manual_stop"
	ActionPausedDueToRain    Action = "paused_due_to_rain"
	ActionResumedAfterRain   Action = "resumed_after_rain"
	ActionCancelledAfterRain Action = "cancelled_after_rain"
)

// LogEntry is an immutable record of one control action.
type LogEntry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Action       Action    `json:"action"`
	Duration     int       `json:"duration,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	SoilMoisture *float64  `json:"soil_moisture,omitempty"`
}

// ActionHistory is the audit row mirrored from the action log.
type ActionHistory struct {
	gorm.Model
	EntryID      string    `gorm:"type:varchar(36);uniqueIndex;not null"`
	OccurredAt   time.Time `gorm:"not null"`
	Action       Action    `gorm:"type:varchar(32);not null"`
	Duration     int       `gorm:"not null"` // in minutes
	SoilMoisture *float64
	Notes        string
}

func (ActionHistory) TableName() string {
	return "irrigation_action_history"
}
