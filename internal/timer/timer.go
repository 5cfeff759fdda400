// Package timer models focus sessions and the transitions between their
// states. Timestamps are supplied by the caller so the rules stay pure.
package timer

import (
	"errors"
	"time"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

var (
	ErrAlreadyRunning     = errors.New("a timer session is already active")
	ErrNoActiveSession    = errors.New("no active timer session")
	ErrInvalidTransition  = errors.New("invalid timer transition")
	ErrInvalidSyncSession = errors.New("invalid synced session")
)

// MaxSessionLength is how long a session may run before it is auto-stopped.
const MaxSessionLength = 12 * time.Hour

// History page sizes.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// ClampHistoryLimit keeps history page sizes in [1, MaxHistoryLimit].
func ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

type Session struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	TaskID          *string    `json:"taskId,omitempty"`
	ProjectID       *string    `json:"projectId,omitempty"`
	ClientID        *string    `json:"clientId,omitempty"`
	Status          Status     `json:"status"`
	StartedAt       time.Time  `json:"startedAt"`
	PausedAt        *time.Time `json:"pausedAt,omitempty"`
	PausedSeconds   int64      `json:"pausedSeconds"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds int64      `json:"durationSeconds"`
	XPEarned        int64      `json:"xpEarned"`
}

// Active reports whether the session still occupies the user's timer.
func (s *Session) Active() bool {
	return s.Status == StatusRunning || s.Status == StatusPaused
}

// Pause stops the clock on a running session.
func (s *Session) Pause(now time.Time) error {
	if s.Status != StatusRunning {
		return ErrInvalidTransition
	}
	s.Status = StatusPaused
	s.PausedAt = &now
	return nil
}

// Resume restarts a paused session, banking the paused interval.
func (s *Session) Resume(now time.Time) error {
	if s.Status != StatusPaused || s.PausedAt == nil {
		return ErrInvalidTransition
	}
	s.PausedSeconds += secondsBetween(*s.PausedAt, now)
	s.PausedAt = nil
	s.Status = StatusRunning
	return nil
}

// Stop completes the session and fixes its focused duration.
func (s *Session) Stop(now time.Time) error {
	if !s.Active() {
		return ErrInvalidTransition
	}
	if s.Status == StatusPaused && s.PausedAt != nil {
		s.PausedSeconds += secondsBetween(*s.PausedAt, now)
		s.PausedAt = nil
	}
	s.Status = StatusCompleted
	s.EndedAt = &now
	s.DurationSeconds = secondsBetween(s.StartedAt, now) - s.PausedSeconds
	if s.DurationSeconds < 0 {
		s.DurationSeconds = 0
	}
	return nil
}

// Elapsed is the focused time so far, excluding pauses.
func (s *Session) Elapsed(now time.Time) time.Duration {
	if s.Status == StatusCompleted {
		return time.Duration(s.DurationSeconds) * time.Second
	}
	end := now
	if s.Status == StatusPaused && s.PausedAt != nil {
		end = *s.PausedAt
	}
	secs := secondsBetween(s.StartedAt, end) - s.PausedSeconds
	if secs < 0 {
		secs = 0
	}
	return time.Duration(secs) * time.Second
}

// Focused returns the completed duration.
func (s *Session) Focused() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

// Stale reports whether the session has been open longer than MaxSessionLength.
func (s *Session) Stale(now time.Time) bool {
	return s.Active() && now.Sub(s.StartedAt) > MaxSessionLength
}

func secondsBetween(from, to time.Time) int64 {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

type StartRequest struct {
	TaskID    *string `json:"taskId,omitempty"`
	ProjectID *string `json:"projectId,omitempty"`
}

// SyncSession is a session completed offline and uploaded later.
type SyncSession struct {
	ClientID      string    `json:"clientId"`
	StartedAt     time.Time `json:"startedAt"`
	EndedAt       time.Time `json:"endedAt"`
	PausedSeconds int64     `json:"pausedSeconds"`
	TaskID        *string   `json:"taskId,omitempty"`
	ProjectID     *string   `json:"projectId,omitempty"`
}

type SyncRequest struct {
	Sessions []SyncSession `json:"sessions"`
}

type SyncResult struct {
	Stored   int        `json:"stored"`
	Skipped  int        `json:"skipped"`
	XPEarned int64      `json:"xpEarned"`
	Sessions []*Session `json:"sessions"`
}

// MaxSyncBatch bounds a single sync upload.
const MaxSyncBatch = 100

// ToSession validates an uploaded session and converts it to a completed one.
func (s SyncSession) ToSession(userID string, now time.Time) (*Session, error) {
	if s.ClientID == "" {
		return nil, ErrInvalidSyncSession
	}
	if !s.EndedAt.After(s.StartedAt) || s.EndedAt.After(now.Add(time.Minute)) {
		return nil, ErrInvalidSyncSession
	}
	if s.PausedSeconds < 0 || s.EndedAt.Sub(s.StartedAt) > MaxSessionLength {
		return nil, ErrInvalidSyncSession
	}

	clientID := s.ClientID
	session := &Session{
		UserID:        userID,
		TaskID:        s.TaskID,
		ProjectID:     s.ProjectID,
		ClientID:      &clientID,
		Status:        StatusRunning,
		StartedAt:     s.StartedAt,
		PausedSeconds: s.PausedSeconds,
	}
	if err := session.Stop(s.EndedAt); err != nil {
		return nil, err
	}
	return session, nil
}

// Event is pushed to connected clients when a session changes.
type Event struct {
	Type    string   `json:"type"`
	Session *Session `json:"session"`
	XP      int64    `json:"xp,omitempty"`
	Level   int      `json:"level,omitempty"`
}

const (
	EventStarted = "timer.started"
	EventPaused  = "timer.paused"
	EventResumed = "timer.resumed"
	EventStopped = "timer.stopped"
	EventSynced  = "timer.synced"
)
