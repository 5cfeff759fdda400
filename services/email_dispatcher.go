package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"focusQuestAPI/internal/mailer"
)

// ErrQueueFull is returned when the dispatcher cannot accept more mail.
var ErrQueueFull = errors.New("email queue is full")

// EmailSender delivers one message.
type EmailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// EmailJob is a queued message. OnSent runs after a successful delivery.
type EmailJob struct {
	Message mailer.Message
	OnSent  func(ctx context.Context)
}

// EmailDispatcher sends mail from a bounded queue on a small worker pool so
// request handlers never wait on SMTP.
type EmailDispatcher struct {
	sender      EmailSender
	workers     int
	maxAttempts int
	backoff     time.Duration
	jobQueue    chan *EmailJob
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewEmailDispatcher(sender EmailSender, workers, queueSize int) *EmailDispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &EmailDispatcher{
		sender:      sender,
		workers:     workers,
		maxAttempts: 3,
		backoff:     2 * time.Second,
		jobQueue:    make(chan *EmailJob, queueSize),
		stopChan:    make(chan struct{}),
	}
	d.startWorkers()
	return d
}

func (d *EmailDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *EmailDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *EmailDispatcher) processJob(job *EmailJob) {
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := d.sender.Send(ctx, job.Message)
		if err == nil {
			if job.OnSent != nil {
				job.OnSent(ctx)
			}
			cancel()
			feedbackEmailsTotal.WithLabelValues("sent").Inc()
			return
		}
		cancel()

		zap.S().Warnf("Email to %s failed (attempt %d/%d): %v", job.Message.To, attempt, d.maxAttempts, err)
		if attempt == d.maxAttempts {
			break
		}

		select {
		case <-time.After(d.backoff * time.Duration(attempt)):
		case <-d.stopChan:
			feedbackEmailsTotal.WithLabelValues("abandoned").Inc()
			return
		}
	}
	feedbackEmailsTotal.WithLabelValues("failed").Inc()
	zap.S().Errorf("Giving up on email to %s: %s", job.Message.To, job.Message.Subject)
}

// Enqueue adds a job without blocking.
func (d *EmailDispatcher) Enqueue(job *EmailJob) error {
	select {
	case <-d.stopChan:
		return ErrQueueFull
	default:
	}

	select {
	case d.jobQueue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop waits for in-flight sends to finish. Queued jobs that have not
// started are dropped.
func (d *EmailDispatcher) Stop() {
	d.stopOnce.Do(func() {
		zap.S().Info("Stopping email dispatcher...")
		close(d.stopChan)
		d.wg.Wait()
		zap.S().Info("Email dispatcher stopped")
	})
}
