package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"focusQuestAPI/internal/leaderboard"
	"focusQuestAPI/internal/stats"
	"focusQuestAPI/internal/user"
)

type AnalyticsService struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewAnalyticsService(db *pgxpool.Pool) *AnalyticsService {
	return &AnalyticsService{db: db, now: time.Now}
}

func (s *AnalyticsService) Summary(ctx context.Context, userID string) (*stats.Summary, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	week := leaderboard.PeriodStart(leaderboard.PeriodWeekly, now)
	month := leaderboard.PeriodStart(leaderboard.PeriodMonthly, now)
	year := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)

	summary := &stats.Summary{}
	err := s.db.QueryRow(ctx, `
		WITH done AS (
			SELECT duration_seconds, ended_at
			FROM timer_sessions
			WHERE user_id = $1 AND status = 'completed'
		)
		SELECT
			COALESCE(SUM(duration_seconds) FILTER (WHERE ended_at >= $2), 0)::bigint,
			COALESCE(SUM(duration_seconds) FILTER (WHERE ended_at >= $3), 0)::bigint,
			COALESCE(SUM(duration_seconds) FILTER (WHERE ended_at >= $4), 0)::bigint,
			COALESCE(SUM(duration_seconds) FILTER (WHERE ended_at >= $5), 0)::bigint,
			COALESCE(SUM(duration_seconds), 0)::bigint,
			(COUNT(*) FILTER (WHERE duration_seconds > 0))::int,
			COALESCE(MAX(duration_seconds), 0)::bigint,
			COALESCE(AVG(duration_seconds) FILTER (WHERE duration_seconds > 0), 0)::float8
		FROM done
	`, userID, today, week, month, year).Scan(
		&summary.TodaySeconds,
		&summary.WeekSeconds,
		&summary.MonthSeconds,
		&summary.YearSeconds,
		&summary.TotalSeconds,
		&summary.SessionsCompleted,
		&summary.LongestSessionSeconds,
		&summary.AverageSessionSeconds,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("failed to summarize sessions: %w", err)
	}

	err = s.db.QueryRow(ctx, `
		SELECT u.streak, u.longest_streak,
		       (SELECT COUNT(*) FROM tasks t WHERE t.user_id = u.id AND t.completed)::int,
		       (SELECT COUNT(*) FROM projects p WHERE p.user_id = u.id)::int
		FROM users u
		WHERE u.id = $1
	`, userID).Scan(&summary.CurrentStreak, &summary.LongestStreak, &summary.TasksCompleted, &summary.ProjectsCreated)
	if err != nil {
		if isNoRows(err) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("failed to summarize user: %w", err)
	}

	return summary, nil
}

// Daily returns one entry per UTC day for the last days days, oldest first.
func (s *AnalyticsService) Daily(ctx context.Context, userID string, days int) ([]stats.DailyStat, error) {
	days = stats.ClampDays(days)
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -(days - 1))

	known := make(map[string]stats.DailyStat)

	rows, err := s.db.Query(ctx, `
		SELECT (ended_at AT TIME ZONE 'UTC')::date, SUM(duration_seconds)::bigint, COUNT(*)::int
		FROM timer_sessions
		WHERE user_id = $1 AND status = 'completed' AND ended_at >= $2
		GROUP BY 1
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily focus: %w", err)
	}
	for rows.Next() {
		var day time.Time
		var d stats.DailyStat
		if err := rows.Scan(&day, &d.FocusSeconds, &d.Sessions); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan daily focus: %w", err)
		}
		known[stats.DateKey(day)] = d
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `
		SELECT (created_at AT TIME ZONE 'UTC')::date, SUM(amount)::bigint
		FROM xp_events
		WHERE user_id = $1 AND created_at >= $2
		GROUP BY 1
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily xp: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day time.Time
		var xp int64
		if err := rows.Scan(&day, &xp); err != nil {
			return nil, fmt.Errorf("failed to scan daily xp: %w", err)
		}
		key := stats.DateKey(day)
		d := known[key]
		d.XPEarned = xp
		known[key] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats.FillDays(known, today, days), nil
}

// Projects breaks focus time down by project over the last days days.
// Sessions without a project are grouped under "No project".
func (s *AnalyticsService) Projects(ctx context.Context, userID string, days int) ([]stats.ProjectStat, error) {
	days = stats.ClampDays(days)
	since := s.now().UTC().AddDate(0, 0, -days)

	rows, err := s.db.Query(ctx, `
		SELECT ts.project_id, COALESCE(p.name, 'No project'), COALESCE(p.color, ''),
		       SUM(ts.duration_seconds)::bigint, COUNT(*)::int
		FROM timer_sessions ts
		LEFT JOIN projects p ON p.id = ts.project_id
		WHERE ts.user_id = $1 AND ts.status = 'completed' AND ts.ended_at >= $2
		GROUP BY ts.project_id, p.name, p.color
		ORDER BY 4 DESC
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query project breakdown: %w", err)
	}
	defer rows.Close()

	out := make([]stats.ProjectStat, 0)
	for rows.Next() {
		var ps stats.ProjectStat
		if err := rows.Scan(&ps.ProjectID, &ps.ProjectName, &ps.Color, &ps.FocusSeconds, &ps.Sessions); err != nil {
			return nil, fmt.Errorf("failed to scan project breakdown: %w", err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}
