package ratelimit

import "fmt"

// Unit is the time unit a cooldown's remaining wait is reported in.
// Each action reports in the unit matching its window size.
type Unit string

const (
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
	UnitDays    Unit = "days"
)

// Error carries a Denied verdict across service boundaries so HTTP
// handlers can answer 429 with the remaining wait.
type Error struct {
	Verdict Verdict
	Unit    Unit
}

func (e *Error) Error() string {
	switch e.Unit {
	case UnitHours:
		return fmt.Sprintf("rate limited: try again in %d hour(s)", e.Verdict.RemainingHours())
	case UnitDays:
		return fmt.Sprintf("rate limited: try again in %d day(s)", e.Verdict.RemainingDays())
	default:
		return fmt.Sprintf("rate limited: try again in %d minute(s)", e.Verdict.RemainingMinutes())
	}
}

// Fields returns the machine-readable response body for a 429. The
// remaining-time key matches the unit of the violated cooldown.
func (e *Error) Fields() map[string]any {
	fields := map[string]any{"rateLimited": true}
	switch e.Unit {
	case UnitHours:
		fields["hoursRemaining"] = e.Verdict.RemainingHours()
	case UnitDays:
		fields["daysRemaining"] = e.Verdict.RemainingDays()
	default:
		fields["minutesRemaining"] = e.Verdict.RemainingMinutes()
	}
	return fields
}
