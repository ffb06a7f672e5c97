package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckCooldown_NoMark(t *testing.T) {
	v := CheckCooldown(nil, ResetRequestCooldown, time.Now())
	assert.True(t, v.Allowed)
	assert.Zero(t, v.Remaining)
}

func TestCheckCooldown_Elapsed(t *testing.T) {
	now := time.Now()
	mark := now.Add(-25 * time.Hour)

	v := CheckCooldown(&mark, PasswordResetCooldown, now)
	assert.True(t, v.Allowed)
}

func TestCheckCooldown_Denied(t *testing.T) {
	now := time.Now()
	mark := now.Add(-3 * time.Minute)

	v := CheckCooldown(&mark, ResetRequestCooldown, now)
	assert.False(t, v.Allowed)
	assert.Equal(t, 2, v.RemainingMinutes())
}

func TestCheckCooldown_ExactBoundary(t *testing.T) {
	now := time.Now()
	mark := now.Add(-ResetRequestCooldown)

	v := CheckCooldown(&mark, ResetRequestCooldown, now)
	assert.True(t, v.Allowed)
}

// Two checks without the gated action in between must agree, and the
// remaining time must not grow.
func TestCheckCooldown_Idempotent(t *testing.T) {
	base := time.Now()
	mark := base.Add(-10 * time.Hour)

	first := CheckCooldown(&mark, PasswordResetCooldown, base)
	second := CheckCooldown(&mark, PasswordResetCooldown, base.Add(50*time.Millisecond))

	assert.False(t, first.Allowed)
	assert.False(t, second.Allowed)
	assert.LessOrEqual(t, second.Remaining, first.Remaining)
	assert.Equal(t, first.RemainingHours(), second.RemainingHours())
}

func TestRemainingUnits(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		minutes   int
		hours     int
		days      int
	}{
		{"ninety seconds", 90 * time.Second, 2, 1, 1},
		{"exact hour", time.Hour, 60, 1, 1},
		{"day and a bit", 25 * time.Hour, 1500, 25, 2},
		{"six days", 6 * 24 * time.Hour, 8640, 144, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Verdict{Remaining: tt.remaining}
			assert.Equal(t, tt.minutes, v.RemainingMinutes())
			assert.Equal(t, tt.hours, v.RemainingHours())
			assert.Equal(t, tt.days, v.RemainingDays())
		})
	}
}

func TestCheckCooldown_ProfileEditWindow(t *testing.T) {
	now := time.Now()
	mark := now.Add(-2 * 24 * time.Hour)

	v := CheckCooldown(&mark, ProfileEditCooldown, now)
	assert.False(t, v.Allowed)
	assert.Equal(t, 5, v.RemainingDays())
}
