package ratelimit

import (
	"math"
	"time"
)

// Cooldown windows for sensitive account actions. Each window is
// measured against a timestamp persisted on the user row.
const (
	ResetRequestCooldown  = 5 * time.Minute
	PasswordResetCooldown = 24 * time.Hour
	ProfileEditCooldown   = 7 * 24 * time.Hour
)

// Verdict is the outcome of a cooldown check. When denied, Remaining
// holds the time left before the action is allowed again.
type Verdict struct {
	Allowed   bool
	Remaining time.Duration
}

// CheckCooldown decides whether a mark-gated action may run.
// It is pure computation over an already-fetched timestamp: a Denied
// verdict never writes anything, and only the gated action itself
// advances the mark on success. Two concurrent requests can therefore
// both see Allowed before either writes; the single-row UPDATE per
// identity is the only serialization.
func CheckCooldown(mark *time.Time, cooldown time.Duration, now time.Time) Verdict {
	if mark == nil {
		return Verdict{Allowed: true}
	}

	elapsed := now.Sub(*mark)
	if elapsed >= cooldown {
		return Verdict{Allowed: true}
	}

	return Verdict{Allowed: false, Remaining: cooldown - elapsed}
}

// RemainingMinutes reports the remaining wait rounded up to whole minutes.
func (v Verdict) RemainingMinutes() int {
	return int(math.Ceil(v.Remaining.Minutes()))
}

// RemainingHours reports the remaining wait rounded up to whole hours.
func (v Verdict) RemainingHours() int {
	return int(math.Ceil(v.Remaining.Hours()))
}

// RemainingDays reports the remaining wait rounded up to whole days.
func (v Verdict) RemainingDays() int {
	return int(math.Ceil(v.Remaining.Hours() / 24))
}
