package user

import (
	"encoding/json"
	"errors"
	"time"

	"focusQuestAPI/internal/progression"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrUsernameTaken = errors.New("username already taken")
)

type User struct {
	ID             string          `json:"id"`
	Username       string          `json:"username"`
	Email          string          `json:"email"`
	AvatarURL      string          `json:"avatarUrl,omitempty"`
	GoogleID       *string         `json:"-"`
	PasswordHash   string          `json:"-"`
	Level          int             `json:"level"`
	TotalXP        int64           `json:"totalXP"`
	CurrentXP      int64           `json:"currentXP"`
	XPToNextLevel  int64           `json:"xpToNextLevel"`
	Streak         int             `json:"streak"`
	LongestStreak  int             `json:"longestStreak"`
	LastActiveDate *time.Time      `json:"lastActiveDate,omitempty"`
	Preferences    json.RawMessage `json:"preferences"`
	LastLogin      *time.Time      `json:"lastLogin,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Progression returns the XP-bearing fields as a progression.State.
func (u *User) Progression() progression.State {
	return progression.State{Level: u.Level, TotalXP: u.TotalXP, CurrentXP: u.CurrentXP}
}

// Derive fills the fields that are computed rather than stored.
func (u *User) Derive() {
	u.XPToNextLevel = progression.XPForNextLevel(u.Level)
	if len(u.Preferences) == 0 {
		u.Preferences = json.RawMessage(`{}`)
	}
}

// GoogleProfile is the subset of Google userinfo used for sign-in.
type GoogleProfile struct {
	GoogleID  string
	Email     string
	Name      string
	AvatarURL string
}
