package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"focusQuestAPI/internal/cache"
	"focusQuestAPI/internal/leaderboard"
	"focusQuestAPI/internal/user"
)

// rankedUsers ranks every user by XP earned since $1. For all-time the
// stored total is used instead of summing events.
const rankedUsers = `
	WITH period_xp AS (
		SELECT user_id, SUM(amount)::bigint AS xp
		FROM xp_events
		WHERE created_at >= $1
		GROUP BY user_id
	),
	ranked AS (
		SELECT u.id, u.username, NULLIF(u.avatar_url, '') AS avatar_url, u.level, u.streak,
		       CASE WHEN $2 THEN u.total_xp ELSE COALESCE(px.xp, 0) END AS xp,
		       COALESCE((SELECT SUM(ts.duration_seconds) FROM timer_sessions ts
		                 WHERE ts.user_id = u.id AND ts.status = 'completed' AND ts.ended_at >= $1), 0)::bigint AS total_time,
		       (SELECT COUNT(*) FROM tasks t
		        WHERE t.user_id = u.id AND t.completed AND t.completed_at >= $1)::int AS tasks_completed
		FROM users u
		LEFT JOIN period_xp px ON px.user_id = u.id
	)
	SELECT RANK() OVER (ORDER BY xp DESC)::int AS rank,
	       id, username, avatar_url, level, xp, total_time, tasks_completed, streak
	FROM ranked`

func scanEntry(row pgx.Row) (*leaderboard.LeaderboardEntry, error) {
	e := &leaderboard.LeaderboardEntry{}
	err := row.Scan(
		&e.Rank,
		&e.UserID,
		&e.Username,
		&e.AvatarURL,
		&e.Level,
		&e.XP,
		&e.TotalTimeSeconds,
		&e.TasksCompleted,
		&e.Streak,
	)
	return e, err
}

type LeaderboardService struct {
	db      *pgxpool.Pool
	board   *cache.LeaderboardCache
	rebuild singleflight.Group
	now     func() time.Time
}

func NewLeaderboardService(db *pgxpool.Pool, board *cache.LeaderboardCache) *LeaderboardService {
	return &LeaderboardService{db: db, board: board, now: time.Now}
}

// Get returns the top entries for a period along with the caller's own
// position, whether or not it made the page.
func (s *LeaderboardService) Get(ctx context.Context, period leaderboard.Period, limit int, userID string) (*leaderboard.Leaderboard, error) {
	limit = leaderboard.ClampLimit(limit)

	var entries []*leaderboard.LeaderboardEntry
	var err error
	if period == leaderboard.PeriodAllTime && s.board != nil {
		entries, err = s.topFromCache(ctx, limit)
		if errors.Is(err, cache.ErrMiss) {
			entries, err = s.reloadAndTop(ctx, limit)
		}
		if err != nil && !errors.Is(err, cache.ErrMiss) {
			zap.S().Warnf("Leaderboard cache read failed, using database: %v", err)
		}
	}
	if entries == nil {
		entries, err = s.topFromDB(ctx, period, limit)
		if err != nil {
			return nil, err
		}
	}

	board := &leaderboard.Leaderboard{Period: period, Entries: entries}

	if err := s.db.QueryRow(ctx, `SELECT COUNT(*)::int FROM users`).Scan(&board.TotalUsers); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	if userID != "" {
		board.UserPosition = leaderboard.FindUser(entries, userID)
		if board.UserPosition == nil {
			board.UserPosition, err = s.Position(ctx, period, userID)
			if err != nil && !errors.Is(err, user.ErrNotFound) {
				return nil, err
			}
		}
	}
	return board, nil
}

// Position returns a single user's entry for the period.
func (s *LeaderboardService) Position(ctx context.Context, period leaderboard.Period, userID string) (*leaderboard.LeaderboardEntry, error) {
	if period == leaderboard.PeriodAllTime && s.board != nil {
		e, err := s.positionFromCache(ctx, userID)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, cache.ErrMiss) && !errors.Is(err, user.ErrNotFound) {
			zap.S().Warnf("Leaderboard cache rank failed, using database: %v", err)
		}
	}

	since := leaderboard.PeriodStart(period, s.now())
	e, err := scanEntry(s.db.QueryRow(ctx, `SELECT * FROM (`+rankedUsers+`) r WHERE r.id = $3`,
		since, period == leaderboard.PeriodAllTime, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get leaderboard position: %w", err)
	}
	return e, nil
}

func (s *LeaderboardService) topFromDB(ctx context.Context, period leaderboard.Period, limit int) ([]*leaderboard.LeaderboardEntry, error) {
	since := leaderboard.PeriodStart(period, s.now())
	rows, err := s.db.Query(ctx, rankedUsers+` ORDER BY rank, username LIMIT $3`,
		since, period == leaderboard.PeriodAllTime, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]*leaderboard.LeaderboardEntry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// topFromCache reads the ranking from Redis and fills in profile fields
// from the database.
func (s *LeaderboardService) topFromCache(ctx context.Context, limit int) ([]*leaderboard.LeaderboardEntry, error) {
	scored, err := s.board.Top(ctx, int64(limit))
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(scored))
	for _, su := range scored {
		ids = append(ids, su.UserID)
	}
	profiles, err := s.loadProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]*leaderboard.LeaderboardEntry, 0, len(scored))
	for _, su := range scored {
		e, ok := profiles[su.UserID]
		if !ok {
			// deleted since the last rebuild
			continue
		}
		e.Rank = int(su.Rank)
		e.XP = su.XP
		entries = append(entries, e)
	}
	return entries, nil
}

// reloadAndTop rebuilds an empty or evicted ranking, then reads it again.
// Concurrent callers share one rebuild.
func (s *LeaderboardService) reloadAndTop(ctx context.Context, limit int) ([]*leaderboard.LeaderboardEntry, error) {
	_, err, _ := s.rebuild.Do("all-time", func() (any, error) {
		return nil, s.RebuildCache(ctx)
	})
	if err != nil {
		return nil, err
	}
	return s.topFromCache(ctx, limit)
}

func (s *LeaderboardService) positionFromCache(ctx context.Context, userID string) (*leaderboard.LeaderboardEntry, error) {
	scored, err := s.board.Rank(ctx, userID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.loadProfiles(ctx, []string{userID})
	if err != nil {
		return nil, err
	}
	e, ok := profiles[userID]
	if !ok {
		return nil, user.ErrNotFound
	}
	e.Rank = int(scored.Rank)
	e.XP = scored.XP
	return e, nil
}

// loadProfiles reads the non-XP leaderboard fields for the given users.
func (s *LeaderboardService) loadProfiles(ctx context.Context, ids []string) (map[string]*leaderboard.LeaderboardEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.username, NULLIF(u.avatar_url, ''), u.level, u.streak,
		       COALESCE((SELECT SUM(ts.duration_seconds) FROM timer_sessions ts
		                 WHERE ts.user_id = u.id AND ts.status = 'completed'), 0)::bigint,
		       (SELECT COUNT(*) FROM tasks t WHERE t.user_id = u.id AND t.completed)::int
		FROM users u
		WHERE u.id::text = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard profiles: %w", err)
	}
	defer rows.Close()

	profiles := make(map[string]*leaderboard.LeaderboardEntry, len(ids))
	for rows.Next() {
		e := &leaderboard.LeaderboardEntry{}
		if err := rows.Scan(&e.UserID, &e.Username, &e.AvatarURL, &e.Level, &e.Streak, &e.TotalTimeSeconds, &e.TasksCompleted); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard profile: %w", err)
		}
		profiles[e.UserID] = e
	}
	return profiles, rows.Err()
}

// RebuildCache reloads the Redis ranking from users.total_xp.
func (s *LeaderboardService) RebuildCache(ctx context.Context) error {
	if s.board == nil {
		return nil
	}

	rows, err := s.db.Query(ctx, `SELECT id::text, total_xp FROM users`)
	if err != nil {
		return fmt.Errorf("failed to read xp totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var id string
		var xp int64
		if err := rows.Scan(&id, &xp); err != nil {
			return fmt.Errorf("failed to scan xp total: %w", err)
		}
		totals[id] = xp
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if err := s.board.Replace(ctx, totals); err != nil {
		return err
	}
	zap.S().Debugf("[Scheduler] Leaderboard cache rebuilt with %d users", len(totals))
	return nil
}
