package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsJobsUntilShutdown(t *testing.T) {
	var ok, failing atomic.Int32
	s, err := NewScheduler(
		ScheduledJob{Name: "counter", Interval: 20 * time.Millisecond, Run: func(ctx context.Context) error {
			ok.Add(1)
			return nil
		}},
		ScheduledJob{Name: "flaky", Interval: 20 * time.Millisecond, Run: func(ctx context.Context) error {
			failing.Add(1)
			return errors.New("database unavailable")
		}},
	)
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return ok.Load() >= 2 && failing.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Shutdown())

	after := ok.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, ok.Load(), "no runs after shutdown")
}

func TestScheduler_RejectsInvalidInterval(t *testing.T) {
	_, err := NewScheduler(ScheduledJob{Name: "broken", Interval: 0, Run: func(context.Context) error { return nil }})
	assert.Error(t, err)
}
