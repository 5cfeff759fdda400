package leaderboard

import (
	"fmt"
	"time"
)

type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all-time"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// ParsePeriod accepts the query values the clients send; empty means all-time.
func ParsePeriod(raw string) (Period, error) {
	switch raw {
	case "", "all-time", "alltime", "all":
		return PeriodAllTime, nil
	case "weekly", "week":
		return PeriodWeekly, nil
	case "monthly", "month":
		return PeriodMonthly, nil
	}
	return "", fmt.Errorf("unknown leaderboard period %q", raw)
}

// ClampLimit keeps page sizes in [1, MaxLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

type LeaderboardEntry struct {
	Rank             int     `json:"rank"`
	UserID           string  `json:"userId"`
	Username         string  `json:"username"`
	AvatarURL        *string `json:"avatarUrl,omitempty"`
	Level            int     `json:"level"`
	XP               int64   `json:"xp"`
	TotalTimeSeconds int64   `json:"totalTime"`
	TasksCompleted   int     `json:"tasksCompleted"`
	Streak           int     `json:"streak"`
}

type Leaderboard struct {
	Period       Period              `json:"period"`
	Entries      []*LeaderboardEntry `json:"entries"`
	UserPosition *LeaderboardEntry   `json:"userPosition"`
	TotalUsers   int                 `json:"totalUsers"`
}

// FindUser returns the entry for userID in entries, if present.
func FindUser(entries []*LeaderboardEntry, userID string) *LeaderboardEntry {
	for _, e := range entries {
		if e.UserID == userID {
			return e
		}
	}
	return nil
}

// PeriodStart is the UTC instant a period's window opens: Monday 00:00 for
// weekly, the 1st for monthly, and the zero time for all-time.
func PeriodStart(p Period, now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}
