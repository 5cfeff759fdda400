package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"focusQuestAPI/internal/auth"
	"focusQuestAPI/internal/cache"
	"focusQuestAPI/internal/user"
)

type UserService struct {
	db    *pgxpool.Pool
	board *cache.LeaderboardCache
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

// SetLeaderboardCache enables write-through of XP changes to Redis.
func (s *UserService) SetLeaderboardCache(board *cache.LeaderboardCache) {
	s.board = board
}

func (s *UserService) Register(ctx context.Context, req *user.RegisterRequest) (*user.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	query := `
	INSERT INTO users (username, email, password_hash, last_login)
	VALUES ($1, $2, $3, NOW())
	RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, req.Username, req.Email, hash))
	if err != nil {
		switch {
		case isUniqueViolation(err, "users_email_key"):
			return nil, user.ErrEmailTaken
		case isUniqueViolation(err, "users_username_key"):
			return nil, user.ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	zap.S().Infof("Registered user %s (%s)", u.ID, u.Username)
	s.trackUser(ctx, u.ID)
	return u, nil
}

// Authenticate checks an email/password pair and stamps last_login.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, u.ID); err != nil {
		zap.S().Warnf("Failed to stamp last login for %s: %v", u.ID, err)
	}
	return u, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) || isInvalidUUID(err) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// UpsertGoogleUser finds the account for a Google profile. It matches on
// google_id first, then links an existing account with the same email, and
// otherwise creates a new user with a username derived from the profile name.
func (s *UserService) UpsertGoogleUser(ctx context.Context, profile user.GoogleProfile) (*user.User, error) {
	if profile.GoogleID == "" || profile.Email == "" {
		return nil, fmt.Errorf("google profile is missing id or email")
	}
	email := strings.ToLower(strings.TrimSpace(profile.Email))

	u, err := scanUser(s.db.QueryRow(ctx, `
		UPDATE users
		SET last_login = NOW(), avatar_url = COALESCE(NULLIF(avatar_url, ''), $2), updated_at = NOW()
		WHERE google_id = $1
		RETURNING `+userColumns, profile.GoogleID, profile.AvatarURL))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up google user: %w", err)
	}

	u, err = scanUser(s.db.QueryRow(ctx, `
		UPDATE users
		SET google_id = $1, last_login = NOW(), avatar_url = COALESCE(NULLIF(avatar_url, ''), $3), updated_at = NOW()
		WHERE email = $2
		RETURNING `+userColumns, profile.GoogleID, email, profile.AvatarURL))
	if err == nil {
		zap.S().Infof("Linked Google account to existing user %s", u.ID)
		return u, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to link google account: %w", err)
	}

	base := usernameBase(profile.Name, email)
	for attempt := 0; attempt < 5; attempt++ {
		username := base
		if attempt > 0 {
			username = fmt.Sprintf("%s_%04d", base, rand.Intn(10000))
		}

		u, err = scanUser(s.db.QueryRow(ctx, `
			INSERT INTO users (username, email, google_id, avatar_url, last_login)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING `+userColumns, username, email, profile.GoogleID, profile.AvatarURL))
		if err == nil {
			zap.S().Infof("Created user %s from Google sign-in", u.ID)
			s.trackUser(ctx, u.ID)
			return u, nil
		}
		if !isUniqueViolation(err, "users_username_key") {
			return nil, fmt.Errorf("failed to create google user: %w", err)
		}
	}
	return nil, user.ErrUsernameTaken
}

// usernameBase turns a display name (or the local part of the email) into a
// username candidate that passes ValidateUsername.
func usernameBase(name, email string) string {
	candidate := strings.ReplaceAll(slug.Make(name), "-", "_")
	if candidate == "" {
		local, _, _ := strings.Cut(email, "@")
		candidate = strings.ReplaceAll(slug.Make(local), "-", "_")
	}
	if len(candidate) < 3 {
		candidate = "focuser"
	}
	if len(candidate) > 24 {
		candidate = candidate[:24]
	}
	return candidate
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *user.UpdateProfileRequest) (*user.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username != "" {
		if err := user.ValidateUsername(req.Username); err != nil {
			return nil, err
		}
	}

	query := `
	UPDATE users
	SET username = COALESCE(NULLIF($2, ''), username),
	    avatar_url = COALESCE(NULLIF($3, ''), avatar_url),
	    updated_at = NOW()
	WHERE id = $1
	RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, userID, req.Username, req.AvatarURL))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, err
		}
		if isUniqueViolation(err, "users_username_key") {
			return nil, user.ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return u, nil
}

// UpdatePreferences merges the given keys into the stored preferences object.
func (s *UserService) UpdatePreferences(ctx context.Context, userID string, prefs json.RawMessage) (*user.User, error) {
	var obj map[string]any
	if err := json.Unmarshal(prefs, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("preferences must be a JSON object")
	}

	query := `
	UPDATE users
	SET preferences = preferences || $2::jsonb, updated_at = NOW()
	WHERE id = $1
	RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, userID, string(prefs)))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}
	return u, nil
}

func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	if s.board != nil {
		if err := s.board.Remove(ctx, userID); err != nil {
			zap.S().Warnf("Failed to drop %s from leaderboard cache: %v", userID, err)
		}
	}
	return nil
}

// cacheXP mirrors an XP grant into the Redis ranking.
func (s *UserService) cacheXP(ctx context.Context, userID string, amount int64) {
	if amount <= 0 {
		return
	}
	s.updateCache(ctx, userID, amount)
}

// trackUser adds a new account to the Redis ranking with no XP.
func (s *UserService) trackUser(ctx context.Context, userID string) {
	s.updateCache(ctx, userID, 0)
}

// updateCache only logs failures: the scheduled rebuild repairs drift.
func (s *UserService) updateCache(ctx context.Context, userID string, amount int64) {
	if s.board == nil {
		return
	}
	err := s.board.IncrXP(ctx, userID, amount)
	if errors.Is(err, cache.ErrMiss) {
		zap.S().Debugf("Leaderboard cache not loaded, skipping update for %s", userID)
		return
	}
	if err != nil {
		zap.S().Warnf("Failed to update leaderboard cache for %s: %v", userID, err)
	}
}
