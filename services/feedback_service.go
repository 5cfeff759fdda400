package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"focusQuestAPI/internal/feedback"
	"focusQuestAPI/internal/mailer"
)

type FeedbackService struct {
	db         *pgxpool.Pool
	dispatcher *EmailDispatcher
	recipient  string
}

func NewFeedbackService(db *pgxpool.Pool, dispatcher *EmailDispatcher, recipient string) *FeedbackService {
	return &FeedbackService{db: db, dispatcher: dispatcher, recipient: recipient}
}

// Submit stores the feedback and queues it for email. The message is kept
// even when mail cannot be queued.
func (s *FeedbackService) Submit(ctx context.Context, userID *string, req *feedback.CreateFeedbackRequest) (*feedback.Feedback, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	fb := &feedback.Feedback{
		UserID:  userID,
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
		Rating:  req.Rating,
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO feedback (user_id, name, email, message, rating)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, userID, fb.Name, fb.Email, fb.Message, fb.Rating).Scan(&fb.ID, &fb.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}

	if s.dispatcher == nil || s.recipient == "" {
		zap.S().Infof("Feedback %s stored; email delivery is not configured", fb.ID)
		return fb, nil
	}

	job := &EmailJob{
		Message: mailer.Message{
			To:      s.recipient,
			ReplyTo: fb.Email,
			Subject: fb.Subject(),
			Body:    fb.Body(),
		},
		OnSent: func(ctx context.Context) {
			if _, err := s.db.Exec(ctx, `UPDATE feedback SET emailed = true WHERE id = $1`, fb.ID); err != nil {
				zap.S().Warnf("Failed to mark feedback %s as emailed: %v", fb.ID, err)
			}
		},
	}
	if err := s.dispatcher.Enqueue(job); err != nil {
		zap.S().Warnf("Feedback %s not emailed: %v", fb.ID, err)
	}
	return fb, nil
}
