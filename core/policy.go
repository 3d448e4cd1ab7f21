package core

import "time"

// DefaultCancelWindow is how long before an event's start attendance
// becomes locked in. Matches the product rule "can't be canceled within
// 2 days of its start date".
const DefaultCancelWindow = 48 * time.Hour

// AllowedToCancel reports whether attendance may still be withdrawn at
// now for an event starting at start. The boundary instant counts as
// inside the window: cancellation requires strictly more than window
// remaining. This predicate gates both the controller and any UI
// affordance, so the two can never disagree.
func AllowedToCancel(start, now time.Time, window time.Duration) bool {
	return start.Sub(now) > window
}
