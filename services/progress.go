package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"focusQuestAPI/internal/progression"
	"focusQuestAPI/internal/user"
)

const userColumns = `id, username, email, COALESCE(avatar_url, ''), google_id, COALESCE(password_hash, ''),
	level, total_xp, current_xp, streak, longest_streak, last_active_date, preferences,
	last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.AvatarURL,
		&u.GoogleID,
		&u.PasswordHash,
		&u.Level,
		&u.TotalXP,
		&u.CurrentXP,
		&u.Streak,
		&u.LongestStreak,
		&u.LastActiveDate,
		&u.Preferences,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	u.Derive()
	return u, nil
}

// lockUser loads a user row FOR UPDATE inside tx.
func lockUser(ctx context.Context, tx pgx.Tx, userID string) (*user.User, error) {
	u, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return u, nil
}

// applyXP grants amount to a locked user, records an xp event and writes the
// new level state back. It returns the number of levels gained.
func applyXP(ctx context.Context, tx pgx.Tx, u *user.User, amount int64, reason string) (int, error) {
	if amount <= 0 {
		return 0, nil
	}

	state, levels := progression.ApplyXP(u.Progression(), amount)

	_, err := tx.Exec(ctx, `
		UPDATE users
		SET level = $2, total_xp = $3, current_xp = $4, updated_at = NOW()
		WHERE id = $1
	`, u.ID, state.Level, state.TotalXP, state.CurrentXP)
	if err != nil {
		return 0, fmt.Errorf("failed to update user xp: %w", err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO xp_events (user_id, amount, reason) VALUES ($1, $2, $3)`, u.ID, amount, reason)
	if err != nil {
		return 0, fmt.Errorf("failed to record xp event: %w", err)
	}

	u.Level, u.TotalXP, u.CurrentXP = state.Level, state.TotalXP, state.CurrentXP
	u.Derive()
	xpAwardedTotal.WithLabelValues(reasonLabel(reason)).Add(float64(amount))
	return levels, nil
}

// recordActivity advances the streak of a locked user for activity on day.
// Activity older than the last active date leaves the streak alone.
func recordActivity(ctx context.Context, tx pgx.Tx, u *user.User, day time.Time) error {
	day = day.UTC()
	if u.LastActiveDate != nil && u.LastActiveDate.After(day) {
		return nil
	}

	streak, changed := progression.NextStreak(u.Streak, u.LastActiveDate, day)
	if !changed {
		return nil
	}

	longest := u.LongestStreak
	if streak > longest {
		longest = streak
	}

	_, err := tx.Exec(ctx, `
		UPDATE users
		SET streak = $2, longest_streak = $3, last_active_date = $4::date, updated_at = NOW()
		WHERE id = $1
	`, u.ID, streak, longest, day)
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}

	u.Streak = streak
	u.LongestStreak = longest
	u.LastActiveDate = &day
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
