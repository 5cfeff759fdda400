// Package progression holds the XP, level and streak arithmetic. Everything
// here is pure so the services can recompute it on every read.
package progression

import (
	"math"
	"time"
)

// BaseXPPerLevel scales the level curve.
const BaseXPPerLevel = 100

// PomodoroMinutes is the session length that earns the focus bonus.
const PomodoroMinutes = 25

const (
	pomodoroBonusXP    = 10
	streakBonusPercent = 5
	maxStreakBonused   = 10
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// State is the XP-bearing slice of a user.
type State struct {
	Level     int   `json:"level"`
	TotalXP   int64 `json:"totalXP"`
	CurrentXP int64 `json:"currentXP"`
}

// XPForNextLevel returns the XP needed to go from level to level+1.
func XPForNextLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(math.Floor(float64(BaseXPPerLevel) * math.Pow(float64(level), 1.2)))
}

// Normalize clamps a state into its valid range.
func Normalize(s State) State {
	if s.Level < 1 {
		s.Level = 1
	}
	if s.TotalXP < 0 {
		s.TotalXP = 0
	}
	if s.CurrentXP < 0 {
		s.CurrentXP = 0
	}
	return s
}

// ApplyXP adds gained XP and rolls over as many level-ups as it pays for.
// Negative gains are ignored.
func ApplyXP(s State, gained int64) (State, int) {
	s = Normalize(s)
	if gained <= 0 {
		return s, 0
	}

	s.TotalXP += gained
	s.CurrentXP += gained

	levels := 0
	for s.CurrentXP >= XPForNextLevel(s.Level) {
		s.CurrentXP -= XPForNextLevel(s.Level)
		s.Level++
		levels++
	}
	return s, levels
}

// StreakBonusPercent is 5% per streak day, capped at ten days.
func StreakBonusPercent(streak int) int64 {
	if streak < 0 {
		streak = 0
	}
	if streak > maxStreakBonused {
		streak = maxStreakBonused
	}
	return int64(streak * streakBonusPercent)
}

// SessionXP awards one XP per full focused minute plus a pomodoro bonus,
// scaled by the streak bonus.
func SessionXP(focused time.Duration, streak int) int64 {
	minutes := int64(focused / time.Minute)
	if minutes <= 0 {
		return 0
	}
	base := minutes
	if minutes >= PomodoroMinutes {
		base += pomodoroBonusXP
	}
	return base * (100 + StreakBonusPercent(streak)) / 100
}

// TaskXP is the reward for completing a task of the given priority.
func TaskXP(priority string) int64 {
	switch priority {
	case PriorityLow:
		return 10
	case PriorityHigh:
		return 30
	default:
		return 20
	}
}

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// NextStreak returns the streak after activity on today. changed is false
// when the user already had activity today.
func NextStreak(current int, lastActive *time.Time, today time.Time) (int, bool) {
	today = truncateDay(today)
	if lastActive == nil {
		return 1, true
	}

	last := truncateDay(*lastActive)
	switch {
	case last.Equal(today):
		if current < 1 {
			return 1, true
		}
		return current, false
	case last.AddDate(0, 0, 1).Equal(today):
		return current + 1, true
	default:
		return 1, true
	}
}

// Progress returns current/threshold clamped to [0, 1].
func Progress(current, threshold float64) float64 {
	if threshold <= 0 {
		return 1
	}
	p := current / threshold
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
