package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"focusQuestAPI/internal/achievement"
	"focusQuestAPI/internal/user"
)

// maxSyncRounds bounds the unlock cascade (bonus XP can unlock level badges).
const maxSyncRounds = 3

type AchievementService struct {
	db      *pgxpool.Pool
	catalog *achievement.Catalog
	users   *UserService
}

func NewAchievementService(db *pgxpool.Pool, catalog *achievement.Catalog, users *UserService) *AchievementService {
	return &AchievementService{db: db, catalog: catalog, users: users}
}

// Stats gathers the aggregates every achievement and skill is measured on.
func (s *AchievementService) Stats(ctx context.Context, userID string) (achievement.Stats, error) {
	var st achievement.Stats
	var longestSeconds, totalSeconds int64

	err := s.db.QueryRow(ctx, `
		SELECT u.streak, u.level,
		       (SELECT COUNT(*) FROM tasks t WHERE t.user_id = u.id AND t.completed)::int,
		       (SELECT COUNT(*) FROM timer_sessions ts WHERE ts.user_id = u.id AND ts.status = 'completed' AND ts.duration_seconds > 0)::int,
		       COALESCE((SELECT MAX(ts.duration_seconds) FROM timer_sessions ts WHERE ts.user_id = u.id AND ts.status = 'completed'), 0)::bigint,
		       COALESCE((SELECT SUM(ts.duration_seconds) FROM timer_sessions ts WHERE ts.user_id = u.id AND ts.status = 'completed'), 0)::bigint,
		       (SELECT COUNT(*) FROM projects p WHERE p.user_id = u.id)::int
		FROM users u
		WHERE u.id = $1
	`, userID).Scan(
		&st.Streak,
		&st.Level,
		&st.TasksCompleted,
		&st.SessionsCompleted,
		&longestSeconds,
		&totalSeconds,
		&st.ProjectsCreated,
	)
	if err != nil {
		if isNoRows(err) || isInvalidUUID(err) {
			return st, user.ErrNotFound
		}
		return st, fmt.Errorf("failed to load achievement stats: %w", err)
	}

	st.LongestSessionMinutes = float64(longestSeconds) / 60
	st.TotalFocusHours = float64(totalSeconds) / 3600
	return st, nil
}

func (s *AchievementService) unlockedAt(ctx context.Context, userID string) (map[string]time.Time, error) {
	rows, err := s.db.Query(ctx, `SELECT achievement_code, unlocked_at FROM user_achievements WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unlocked achievements: %w", err)
	}
	defer rows.Close()

	unlocked := make(map[string]time.Time)
	for rows.Next() {
		var code string
		var at time.Time
		if err := rows.Scan(&code, &at); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		unlocked[code] = at
	}
	return unlocked, rows.Err()
}

// List returns every achievement with the user's progress.
func (s *AchievementService) List(ctx context.Context, userID string) ([]*achievement.AchievementWithStatus, error) {
	st, err := s.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlocked, err := s.unlockedAt(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.catalog.EvaluateAchievements(st, unlocked), nil
}

// Skills returns the skill trees with the user's progress.
func (s *AchievementService) Skills(ctx context.Context, userID string) ([]*achievement.SkillTreeWithStatus, error) {
	st, err := s.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.catalog.EvaluateSkills(st), nil
}

// Sync persists newly met achievements and pays their XP bonus. It returns
// the unlocked achievements and, when any bonus was paid, the updated user.
func (s *AchievementService) Sync(ctx context.Context, userID string) ([]achievement.Achievement, *user.User, error) {
	var all []achievement.Achievement
	var refreshed *user.User

	for round := 0; round < maxSyncRounds; round++ {
		st, err := s.Stats(ctx, userID)
		if err != nil {
			return all, refreshed, err
		}
		unlocked, err := s.unlockedAt(ctx, userID)
		if err != nil {
			return all, refreshed, err
		}

		fresh := s.catalog.NewlyUnlocked(st, unlocked)
		if len(fresh) == 0 {
			break
		}

		var bonus int64
		var inserted []achievement.Achievement
		err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
			for _, a := range fresh {
				tag, err := tx.Exec(ctx, `
					INSERT INTO user_achievements (user_id, achievement_code)
					VALUES ($1, $2)
					ON CONFLICT DO NOTHING
				`, userID, a.Code)
				if err != nil {
					return fmt.Errorf("failed to record achievement %s: %w", a.Code, err)
				}
				if tag.RowsAffected() == 0 {
					continue
				}
				inserted = append(inserted, a)
				bonus += a.XPBonus
			}
			if bonus == 0 {
				return nil
			}

			u, err := lockUser(ctx, tx, userID)
			if err != nil {
				return err
			}
			for _, a := range inserted {
				if _, err := applyXP(ctx, tx, u, a.XPBonus, "achievement:"+a.Code); err != nil {
					return err
				}
			}
			refreshed = u
			return nil
		})
		if err != nil {
			return all, refreshed, err
		}

		for _, a := range inserted {
			zap.S().Infof("User %s unlocked achievement %s", userID, a.Code)
		}
		all = append(all, inserted...)
		s.users.cacheXP(ctx, userID, bonus)

		if bonus == 0 {
			break
		}
	}
	return all, refreshed, nil
}
