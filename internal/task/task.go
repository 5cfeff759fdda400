package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"focusQuestAPI/internal/progression"
)

var ErrNotFound = errors.New("task not found")

type Task struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	ProjectID        *string    `json:"projectId,omitempty"`
	Title            string     `json:"title"`
	Completed        bool       `json:"completed"`
	TimeSpentSeconds int64      `json:"timeSpent"`
	XPReward         int64      `json:"xpReward"`
	Priority         string     `json:"priority"`
	CreatedAt        time.Time  `json:"createdAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

type CreateTaskRequest struct {
	Title     string  `json:"title"`
	ProjectID *string `json:"projectId,omitempty"`
	Priority  string  `json:"priority,omitempty"`
}

func (r *CreateTaskRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(r.Title) > 200 {
		return fmt.Errorf("title must be at most 200 characters")
	}
	if r.Priority == "" {
		r.Priority = progression.PriorityMedium
	}
	if !progression.ValidPriority(r.Priority) {
		return fmt.Errorf("priority must be one of low, medium, high")
	}
	return nil
}

type UpdateTaskRequest struct {
	Title     *string `json:"title,omitempty"`
	ProjectID *string `json:"projectId,omitempty"`
	Priority  *string `json:"priority,omitempty"`
}

func (r *UpdateTaskRequest) Validate() error {
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" || len(title) > 200 {
			return fmt.Errorf("title must be between 1 and 200 characters")
		}
		r.Title = &title
	}
	if r.Priority != nil && !progression.ValidPriority(*r.Priority) {
		return fmt.Errorf("priority must be one of low, medium, high")
	}
	return nil
}

type ListFilter struct {
	ProjectID *string
	Completed *bool
}

// CompleteResult reports the outcome of completing a task.
type CompleteResult struct {
	Task         *Task `json:"task"`
	XPEarned     int64 `json:"xpEarned"`
	LevelsGained int   `json:"levelsGained"`
	// AlreadyCompleted is true when nothing changed.
	AlreadyCompleted bool `json:"alreadyCompleted"`
}
