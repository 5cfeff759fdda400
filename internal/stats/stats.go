package stats

import "time"

type Summary struct {
	TodaySeconds          int64   `json:"todaySeconds"`
	WeekSeconds           int64   `json:"weekSeconds"`
	MonthSeconds          int64   `json:"monthSeconds"`
	YearSeconds           int64   `json:"yearSeconds"`
	TotalSeconds          int64   `json:"totalSeconds"`
	SessionsCompleted     int     `json:"sessionsCompleted"`
	TasksCompleted        int     `json:"tasksCompleted"`
	ProjectsCreated       int     `json:"projectsCreated"`
	LongestSessionSeconds int64   `json:"longestSessionSeconds"`
	AverageSessionSeconds float64 `json:"averageSessionSeconds"`
	CurrentStreak         int     `json:"currentStreak"`
	LongestStreak         int     `json:"longestStreak"`
}

type DailyStat struct {
	Date         string `json:"date"` // YYYY-MM-DD
	FocusSeconds int64  `json:"focusSeconds"`
	XPEarned     int64  `json:"xpEarned"`
	Sessions     int    `json:"sessions"`
}

type ProjectStat struct {
	ProjectID    *string `json:"projectId"`
	ProjectName  string  `json:"projectName"`
	Color        string  `json:"color,omitempty"`
	FocusSeconds int64   `json:"focusSeconds"`
	Sessions     int     `json:"sessions"`
}

const (
	DefaultDays = 7
	MaxDays     = 90
	dateLayout  = "2006-01-02"
)

// ClampDays keeps the daily window in [1, MaxDays].
func ClampDays(days int) int {
	if days <= 0 {
		return DefaultDays
	}
	if days > MaxDays {
		return MaxDays
	}
	return days
}

// FillDays returns one entry per day ending at today (inclusive), taking
// values from known and zero-filling the rest.
func FillDays(known map[string]DailyStat, today time.Time, days int) []DailyStat {
	days = ClampDays(days)
	out := make([]DailyStat, 0, days)
	start := today.AddDate(0, 0, -(days - 1))
	for i := 0; i < days; i++ {
		key := start.AddDate(0, 0, i).Format(dateLayout)
		stat, ok := known[key]
		if !ok {
			stat = DailyStat{Date: key}
		}
		stat.Date = key
		out = append(out, stat)
	}
	return out
}

// DateKey formats t the way DailyStat.Date is keyed.
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}
