package assessment

import "time"

// Remaining computes time left in an attempt against the test's minute
// budget. Pure; safe to poll concurrently. The result may be negative once
// the attempt is overdue — callers decide whether to clamp or force-submit
// (the HTTP layer clamps for display).
func Remaining(timeLimitMin int, startedAt, now time.Time) (minutes, seconds int) {
	left := time.Duration(timeLimitMin)*time.Minute - now.Sub(startedAt)
	total := int(left / time.Second)
	return total / 60, total % 60
}
