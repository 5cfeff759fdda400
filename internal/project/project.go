package project

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var ErrNotFound = errors.New("project not found")

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const DefaultColor = "#6366f1"

type Project struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	Color            string    `json:"color"`
	Description      string    `json:"description"`
	Archived         bool      `json:"archived"`
	TotalTimeSeconds int64     `json:"totalTime"`
	TaskCount        int       `json:"taskCount"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

func (r *CreateProjectRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" || len(r.Name) > 100 {
		return fmt.Errorf("name must be between 1 and 100 characters")
	}
	if r.Color == "" {
		r.Color = DefaultColor
	}
	if !colorPattern.MatchString(r.Color) {
		return fmt.Errorf("color must be a hex value like #1a2b3c")
	}
	return nil
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Color       *string `json:"color,omitempty"`
	Description *string `json:"description,omitempty"`
	Archived    *bool   `json:"archived,omitempty"`
}

func (r *UpdateProjectRequest) Validate() error {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" || len(name) > 100 {
			return fmt.Errorf("name must be between 1 and 100 characters")
		}
		r.Name = &name
	}
	if r.Color != nil && !colorPattern.MatchString(*r.Color) {
		return fmt.Errorf("color must be a hex value like #1a2b3c")
	}
	return nil
}
