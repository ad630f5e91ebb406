package model

import "time"

// IsOverdue reports whether r has a deadline strictly before the calendar day of asOf
// while not being done. A missing or malformed deadline is never overdue.
func IsOverdue(r TaskRecord, asOf time.Time) bool {
	if r.Status == StatusDone {
		return false
	}
	deadline, ok := r.Deadline.Time()
	if !ok {
		return false
	}
	today, _ := DateOf(asOf).Time()
	return deadline.Before(today)
}

// DaysUntilDeadline returns whole days from asOf's day to the deadline (negative when past).
func DaysUntilDeadline(r TaskRecord, asOf time.Time) (int, bool) {
	deadline, ok := r.Deadline.Time()
	if !ok {
		return 0, false
	}
	today, _ := DateOf(asOf).Time()
	return int(deadline.Sub(today).Hours() / 24), true
}
