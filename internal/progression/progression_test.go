package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestXPForNextLevel(t *testing.T) {
	assert.Equal(t, int64(100), XPForNextLevel(1))
	assert.Equal(t, int64(229), XPForNextLevel(2))
	assert.Equal(t, int64(100), XPForNextLevel(0), "levels below one use the first step")
	assert.Greater(t, XPForNextLevel(10), XPForNextLevel(9))
}

func TestApplyXP_LevelsUpAcrossMultipleThresholds(t *testing.T) {
	state, levels := ApplyXP(State{Level: 1}, 350)

	// 100 to reach level 2, 229 more to reach level 3, 21 left over.
	assert.Equal(t, 2, levels)
	assert.Equal(t, 3, state.Level)
	assert.Equal(t, int64(350), state.TotalXP)
	assert.Equal(t, int64(21), state.CurrentXP)
}

func TestApplyXP_NoLevelUp(t *testing.T) {
	state, levels := ApplyXP(State{Level: 1, TotalXP: 10, CurrentXP: 10}, 40)

	assert.Equal(t, 0, levels)
	assert.Equal(t, 1, state.Level)
	assert.Equal(t, int64(50), state.CurrentXP)
}

func TestApplyXP_NegativeInputsNeverGoBelowZero(t *testing.T) {
	state, levels := ApplyXP(State{Level: 0, TotalXP: -5, CurrentXP: -1}, -100)

	assert.Equal(t, 0, levels)
	assert.Equal(t, State{Level: 1, TotalXP: 0, CurrentXP: 0}, state)
}

func TestSessionXP(t *testing.T) {
	cases := []struct {
		name     string
		focused  time.Duration
		streak   int
		expected int64
	}{
		{"under a minute", 59 * time.Second, 0, 0},
		{"ten minutes", 10 * time.Minute, 0, 10},
		{"partial minutes floor", 10*time.Minute + 59*time.Second, 0, 10},
		{"pomodoro bonus", 25 * time.Minute, 0, 35},
		{"streak multiplier", 10 * time.Minute, 4, 12},
		{"streak capped", 20 * time.Minute, 30, 30},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SessionXP(tc.focused, tc.streak))
		})
	}
}

func TestTaskXP(t *testing.T) {
	assert.Equal(t, int64(10), TaskXP(PriorityLow))
	assert.Equal(t, int64(20), TaskXP(PriorityMedium))
	assert.Equal(t, int64(30), TaskXP(PriorityHigh))
	assert.Equal(t, int64(20), TaskXP("urgent"))
	assert.False(t, ValidPriority("urgent"))
}

func TestNextStreak(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	sameDay := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	lastWeek := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)

	streak, changed := NextStreak(0, nil, today)
	assert.Equal(t, 1, streak)
	assert.True(t, changed)

	streak, changed = NextStreak(4, &sameDay, today)
	assert.Equal(t, 4, streak)
	assert.False(t, changed)

	streak, changed = NextStreak(4, &yesterday, today)
	assert.Equal(t, 5, streak)
	assert.True(t, changed)

	streak, changed = NextStreak(9, &lastWeek, today)
	assert.Equal(t, 1, streak)
	assert.True(t, changed)
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0.5, Progress(3, 6))
	assert.Equal(t, 1.0, Progress(10, 7))
	assert.Equal(t, 0.0, Progress(-2, 7))
	assert.Equal(t, 1.0, Progress(0, 0))
}
