package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"focusQuestAPI/internal/mailer"
)

type recordingSender struct {
	mu       sync.Mutex
	sent     []mailer.Message
	failures int32
	calls    int32
	block    chan struct{}
}

func (s *recordingSender) Send(ctx context.Context, msg mailer.Message) error {
	atomic.AddInt32(&s.calls, 1)
	if s.block != nil {
		<-s.block
	}
	if atomic.AddInt32(&s.failures, -1) >= 0 {
		return errors.New("smtp: 421 try again later")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func newTestDispatcher(sender EmailSender, workers, queue int) *EmailDispatcher {
	d := NewEmailDispatcher(sender, workers, queue)
	d.backoff = time.Millisecond
	return d
}

func TestEmailDispatcher_DeliversAndCallsOnSent(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &recordingSender{}
	d := newTestDispatcher(sender, 2, 10)

	var delivered atomic.Bool
	require.NoError(t, d.Enqueue(&EmailJob{
		Message: mailer.Message{To: "owner@example.com", Subject: "New feedback"},
		OnSent:  func(ctx context.Context) { delivered.Store(true) },
	}))

	require.Eventually(t, delivered.Load, time.Second, 5*time.Millisecond)
	d.Stop()

	assert.Equal(t, 1, sender.sentCount())
}

func TestEmailDispatcher_RetriesTransientFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &recordingSender{failures: 2}
	d := newTestDispatcher(sender, 1, 10)

	require.NoError(t, d.Enqueue(&EmailJob{Message: mailer.Message{To: "owner@example.com"}}))

	require.Eventually(t, func() bool { return sender.sentCount() == 1 }, time.Second, 5*time.Millisecond)
	d.Stop()

	assert.Equal(t, int32(3), atomic.LoadInt32(&sender.calls))
}

func TestEmailDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &recordingSender{failures: 100}
	d := newTestDispatcher(sender, 1, 10)

	var delivered atomic.Bool
	require.NoError(t, d.Enqueue(&EmailJob{
		Message: mailer.Message{To: "owner@example.com"},
		OnSent:  func(ctx context.Context) { delivered.Store(true) },
	}))

	require.Eventually(t, func() bool { return atomic.LoadInt32(&sender.calls) == 3 }, time.Second, 5*time.Millisecond)
	d.Stop()

	assert.False(t, delivered.Load())
	assert.Zero(t, sender.sentCount())
}

func TestEmailDispatcher_QueueFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &recordingSender{block: make(chan struct{})}
	d := newTestDispatcher(sender, 1, 1)

	require.NoError(t, d.Enqueue(&EmailJob{Message: mailer.Message{To: "a@example.com"}}))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&sender.calls) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, d.Enqueue(&EmailJob{Message: mailer.Message{To: "b@example.com"}}))
	assert.ErrorIs(t, d.Enqueue(&EmailJob{Message: mailer.Message{To: "c@example.com"}}), ErrQueueFull)

	close(sender.block)
	d.Stop()
}

func TestEmailDispatcher_StopIsIdempotentAndRejectsNewJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := newTestDispatcher(&recordingSender{}, 3, 10)
	d.Stop()
	d.Stop()

	assert.ErrorIs(t, d.Enqueue(&EmailJob{}), ErrQueueFull)
}
