package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"focusQuestAPI/internal/progression"
	"focusQuestAPI/internal/task"
	"focusQuestAPI/internal/timer"
	"focusQuestAPI/internal/user"
)

const sessionColumns = `id, user_id, task_id, project_id, client_id, status, started_at, paused_at,
	paused_seconds, ended_at, duration_seconds, xp_earned`

func scanSession(row pgx.Row) (*timer.Session, error) {
	s := &timer.Session{}
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.TaskID,
		&s.ProjectID,
		&s.ClientID,
		&s.Status,
		&s.StartedAt,
		&s.PausedAt,
		&s.PausedSeconds,
		&s.EndedAt,
		&s.DurationSeconds,
		&s.XPEarned,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// StopResult is returned when a session is completed.
type StopResult struct {
	Session      *timer.Session        `json:"session"`
	XPEarned     int64                 `json:"xpEarned"`
	LevelsGained int                   `json:"levelsGained"`
	User         *user.User            `json:"user"`
	Unlocked     []UnlockedAchievement `json:"achievementsUnlocked"`
}

type UnlockedAchievement struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	XPBonus int64  `json:"xpBonus"`
}

type TimerService struct {
	db           *pgxpool.Pool
	users        *UserService
	achievements *AchievementService
	hub          *TimerHub
	now          func() time.Time
}

func NewTimerService(db *pgxpool.Pool, users *UserService, achievements *AchievementService, hub *TimerHub) *TimerService {
	return &TimerService{db: db, users: users, achievements: achievements, hub: hub, now: time.Now}
}

// Start opens a running session. A task's project is used when no project
// is given.
func (s *TimerService) Start(ctx context.Context, userID string, req *timer.StartRequest) (*timer.Session, error) {
	taskID, projectID := req.TaskID, req.ProjectID

	if taskID != nil {
		var taskProject *string
		err := s.db.QueryRow(ctx, `SELECT project_id FROM tasks WHERE id = $1 AND user_id = $2`, *taskID, userID).Scan(&taskProject)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
				return nil, task.ErrNotFound
			}
			return nil, fmt.Errorf("failed to look up task: %w", err)
		}
		if projectID == nil {
			projectID = taskProject
		}
	}
	if projectID != nil {
		if err := ensureProjectOwner(ctx, s.db, userID, *projectID); err != nil {
			return nil, err
		}
	}

	query := `
	INSERT INTO timer_sessions (user_id, task_id, project_id, status, started_at)
	VALUES ($1, $2, $3, 'running', $4)
	RETURNING ` + sessionColumns

	session, err := scanSession(s.db.QueryRow(ctx, query, userID, taskID, projectID, s.now().UTC()))
	if err != nil {
		if isUniqueViolation(err, "idx_timer_sessions_active") {
			return nil, timer.ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to start timer: %w", err)
	}

	s.publish(userID, timer.Event{Type: timer.EventStarted, Session: session})
	return session, nil
}

func (s *TimerService) Pause(ctx context.Context, userID string) (*timer.Session, error) {
	return s.transition(ctx, userID, timer.EventPaused, func(session *timer.Session, now time.Time) error {
		return session.Pause(now)
	})
}

func (s *TimerService) Resume(ctx context.Context, userID string) (*timer.Session, error) {
	return s.transition(ctx, userID, timer.EventResumed, func(session *timer.Session, now time.Time) error {
		return session.Resume(now)
	})
}

func (s *TimerService) transition(ctx context.Context, userID, event string, apply func(*timer.Session, time.Time) error) (*timer.Session, error) {
	var session *timer.Session
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		session, err = lockActiveSession(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := apply(session, s.now().UTC()); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE timer_sessions SET status = $2, paused_at = $3, paused_seconds = $4 WHERE id = $1
		`, session.ID, session.Status, session.PausedAt, session.PausedSeconds)
		if err != nil {
			return fmt.Errorf("failed to update timer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(userID, timer.Event{Type: event, Session: session})
	return session, nil
}

// Stop completes the active session, then credits streak, XP and task time.
func (s *TimerService) Stop(ctx context.Context, userID string) (*StopResult, error) {
	var result *StopResult
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		session, err := lockActiveSession(ctx, tx, userID)
		if err != nil {
			return err
		}
		result, err = completeSession(ctx, tx, session, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	sessionsCompletedTotal.WithLabelValues("manual").Inc()
	s.afterCompletion(ctx, userID, result)
	s.publish(userID, timer.Event{Type: timer.EventStopped, Session: result.Session, XP: result.XPEarned, Level: result.User.Level})
	return result, nil
}

// completeSession stops a locked session at end and applies its rewards.
func completeSession(ctx context.Context, tx pgx.Tx, session *timer.Session, end time.Time) (*StopResult, error) {
	if err := session.Stop(end); err != nil {
		return nil, err
	}

	u, err := lockUser(ctx, tx, session.UserID)
	if err != nil {
		return nil, err
	}

	xp, levels, err := creditSession(ctx, tx, u, session)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE timer_sessions
		SET status = 'completed', paused_at = NULL, paused_seconds = $2, ended_at = $3, duration_seconds = $4, xp_earned = $5
		WHERE id = $1
	`, session.ID, session.PausedSeconds, session.EndedAt, session.DurationSeconds, xp)
	if err != nil {
		return nil, fmt.Errorf("failed to complete timer: %w", err)
	}
	session.XPEarned = xp

	return &StopResult{Session: session, XPEarned: xp, LevelsGained: levels, User: u}, nil
}

// creditSession applies streak, XP and task time for a completed session
// that belongs to the locked user u.
func creditSession(ctx context.Context, tx pgx.Tx, u *user.User, session *timer.Session) (int64, int, error) {
	if session.DurationSeconds > 0 {
		if err := recordActivity(ctx, tx, u, *session.EndedAt); err != nil {
			return 0, 0, err
		}
	}

	xp := progression.SessionXP(session.Focused(), u.Streak)
	levels, err := applyXP(ctx, tx, u, xp, "session")
	if err != nil {
		return 0, 0, err
	}

	if session.TaskID != nil && session.DurationSeconds > 0 {
		_, err := tx.Exec(ctx, `
			UPDATE tasks SET time_spent_seconds = time_spent_seconds + $3 WHERE id = $1 AND user_id = $2
		`, *session.TaskID, session.UserID, session.DurationSeconds)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to update task time: %w", err)
		}
	}
	return xp, levels, nil
}

// afterCompletion runs the work that must not roll back a completed session.
func (s *TimerService) afterCompletion(ctx context.Context, userID string, result *StopResult) {
	s.users.cacheXP(ctx, userID, result.XPEarned)
	if s.achievements == nil {
		return
	}

	unlocked, refreshed, err := s.achievements.Sync(ctx, userID)
	if err != nil {
		zap.S().Warnf("Achievement sync failed for %s: %v", userID, err)
		return
	}
	for _, a := range unlocked {
		result.Unlocked = append(result.Unlocked, UnlockedAchievement{Code: a.Code, Name: a.Name, XPBonus: a.XPBonus})
	}
	if refreshed != nil {
		result.User = refreshed
	}
}

// Active returns the running or paused session, or ErrNoActiveSession.
func (s *TimerService) Active(ctx context.Context, userID string) (*timer.Session, error) {
	session, err := scanSession(s.db.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM timer_sessions WHERE user_id = $1 AND status <> 'completed'
	`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, timer.ErrNoActiveSession
		}
		return nil, fmt.Errorf("failed to get active timer: %w", err)
	}
	return session, nil
}

// History lists completed sessions, newest first.
func (s *TimerService) History(ctx context.Context, userID string, limit, offset int) ([]*timer.Session, error) {
	limit = timer.ClampHistoryLimit(limit)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM timer_sessions
		WHERE user_id = $1 AND status = 'completed'
		ORDER BY ended_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list timer history: %w", err)
	}
	defer rows.Close()

	sessions := make([]*timer.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Sync stores sessions completed offline. Uploads are idempotent on the
// client id; repeats are counted as skipped.
func (s *TimerService) Sync(ctx context.Context, userID string, req *timer.SyncRequest) (*timer.SyncResult, error) {
	if len(req.Sessions) > timer.MaxSyncBatch {
		return nil, fmt.Errorf("at most %d sessions can be synced at once", timer.MaxSyncBatch)
	}

	now := s.now().UTC()
	result := &timer.SyncResult{Sessions: make([]*timer.Session, 0, len(req.Sessions))}
	var levels int

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		u, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		for _, upload := range req.Sessions {
			session, err := upload.ToSession(userID, now)
			if err != nil {
				result.Skipped++
				continue
			}
			if !ownsRefs(ctx, tx, userID, session) {
				result.Skipped++
				continue
			}

			stored, err := scanSession(tx.QueryRow(ctx, `
				INSERT INTO timer_sessions (user_id, task_id, project_id, client_id, status, started_at, paused_seconds, ended_at, duration_seconds)
				VALUES ($1, $2, $3, $4, 'completed', $5, $6, $7, $8)
				ON CONFLICT (user_id, client_id) DO NOTHING
				RETURNING `+sessionColumns,
				userID, session.TaskID, session.ProjectID, session.ClientID, session.StartedAt,
				session.PausedSeconds, session.EndedAt, session.DurationSeconds))
			if errors.Is(err, pgx.ErrNoRows) {
				result.Skipped++
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to store synced session: %w", err)
			}

			xp, gained, err := creditSession(ctx, tx, u, stored)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `UPDATE timer_sessions SET xp_earned = $2 WHERE id = $1`, stored.ID, xp); err != nil {
				return fmt.Errorf("failed to record synced xp: %w", err)
			}
			stored.XPEarned = xp
			levels += gained

			result.Stored++
			result.XPEarned += xp
			result.Sessions = append(result.Sessions, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Stored > 0 {
		sessionsCompletedTotal.WithLabelValues("sync").Add(float64(result.Stored))
		stop := &StopResult{XPEarned: result.XPEarned, LevelsGained: levels}
		s.afterCompletion(ctx, userID, stop)
		s.publish(userID, timer.Event{Type: timer.EventSynced, XP: result.XPEarned})
	}
	return result, nil
}

// ownsRefs drops references to tasks or projects the user does not own.
func ownsRefs(ctx context.Context, tx pgx.Tx, userID string, session *timer.Session) bool {
	if session.TaskID != nil {
		var ok bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id::text = $1 AND user_id = $2)`, *session.TaskID, userID).Scan(&ok)
		if err != nil || !ok {
			return false
		}
	}
	if session.ProjectID != nil {
		var ok bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id::text = $1 AND user_id = $2)`, *session.ProjectID, userID).Scan(&ok)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// AutoStopStale completes sessions left open longer than MaxSessionLength,
// ending them at the cap.
func (s *TimerService) AutoStopStale(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-timer.MaxSessionLength)

	rows, err := s.db.Query(ctx, `
		SELECT user_id FROM timer_sessions WHERE status <> 'completed' AND started_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale timers: %w", err)
	}
	userIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("failed to read stale timers: %w", err)
	}

	stopped := 0
	for _, userID := range userIDs {
		var result *StopResult
		err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
			session, err := lockActiveSession(ctx, tx, userID)
			if err != nil {
				return err
			}
			if !session.Stale(s.now().UTC()) {
				return timer.ErrNoActiveSession
			}
			result, err = completeSession(ctx, tx, session, session.StartedAt.Add(timer.MaxSessionLength))
			return err
		})
		if errors.Is(err, timer.ErrNoActiveSession) {
			continue
		}
		if err != nil {
			zap.S().Errorf("[Scheduler] Failed to auto-stop timer for %s: %v", userID, err)
			continue
		}

		stopped++
		sessionsCompletedTotal.WithLabelValues("auto").Inc()
		s.afterCompletion(ctx, userID, result)
		s.publish(userID, timer.Event{Type: timer.EventStopped, Session: result.Session, XP: result.XPEarned, Level: result.User.Level})
	}
	return stopped, nil
}

func (s *TimerService) publish(userID string, event timer.Event) {
	if s.hub != nil {
		s.hub.Publish(userID, event)
	}
}

func lockActiveSession(ctx context.Context, tx pgx.Tx, userID string) (*timer.Session, error) {
	session, err := scanSession(tx.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM timer_sessions
		WHERE user_id = $1 AND status <> 'completed'
		FOR UPDATE
	`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, timer.ErrNoActiveSession
		}
		return nil, fmt.Errorf("failed to lock active timer: %w", err)
	}
	return session, nil
}
