package feedback

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxMessageLength = 5000

type Feedback struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"userId,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Rating    *int      `json:"rating,omitempty"`
	Emailed   bool      `json:"emailed"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateFeedbackRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
	Rating  *int   `json:"rating,omitempty"`
}

func (r *CreateFeedbackRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Message = strings.TrimSpace(r.Message)

	if r.Message == "" {
		return fmt.Errorf("message is required")
	}
	if utf8.RuneCountInString(r.Message) > MaxMessageLength {
		return fmt.Errorf("message must be at most %d characters", MaxMessageLength)
	}
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return fmt.Errorf("email is not valid")
		}
	}
	if r.Rating != nil && (*r.Rating < 1 || *r.Rating > 5) {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	return nil
}

// Subject is the email subject line for a feedback message.
func (f *Feedback) Subject() string {
	name := f.Name
	if name == "" {
		name = "Anonymous"
	}
	return fmt.Sprintf("New feedback from %s", name)
}

// Body renders the plain-text email body.
func (f *Feedback) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", valueOr(f.Name, "Anonymous"))
	fmt.Fprintf(&b, "Email: %s\n", valueOr(f.Email, "not provided"))
	if f.UserID != nil {
		fmt.Fprintf(&b, "User ID: %s\n", *f.UserID)
	}
	if f.Rating != nil {
		fmt.Fprintf(&b, "Rating: %d/5\n", *f.Rating)
	}
	fmt.Fprintf(&b, "Submitted: %s\n\n", f.CreatedAt.UTC().Format(time.RFC1123))
	b.WriteString(f.Message)
	b.WriteString("\n")
	return b.String()
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
