package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RosterWatcher keeps an eventually-consistent view of who is attending
// upcoming events by re-querying the store on a fixed interval, the way
// the event screens poll for concurrent RSVP changes from other
// devices. It holds no invariant of its own: it only answers with the
// last snapshot and logs deltas between refreshes.
type RosterWatcher struct {
	store AttendanceStore
	now   func() time.Time

	mu   sync.Mutex
	last map[string]Attendance
}

func NewRosterWatcher(store AttendanceStore, now func() time.Time) *RosterWatcher {
	if now == nil {
		now = time.Now
	}

	return &RosterWatcher{
		store: store,
		now:   now,
		last:  map[string]Attendance{},
	}
}

// Refresh re-reads attendance for every upcoming event and replaces the
// snapshot. Invoked by the poll timer; safe to call concurrently with
// Snapshot.
func (w *RosterWatcher) Refresh(ctx context.Context) error {
	events, err := w.store.ListEvents(ctx)
	if err != nil {
		return ErrStore(err)
	}

	now := w.now()
	next := map[string]Attendance{}

	for _, event := range events {
		if !event.StartsAt.After(now) {
			continue
		}

		attendance, err := w.store.GetAttendance(ctx, event.Id)
		if err != nil {
			return ErrStore(err)
		}

		next[event.Id] = attendance
	}

	w.mu.Lock()
	prev := w.last
	w.last = next
	w.mu.Unlock()

	for id, attendance := range next {
		before := len(prev[id].AttendeeIds)

		after := len(attendance.AttendeeIds)
		if before != after {
			log.Ctx(ctx).Info().Str("event_id", id).
				Int("attendees_before", before).Int("attendees_after", after).
				Msg("event roster changed")
		}
	}

	return nil
}

// Snapshot returns the last refreshed attendance for an event and
// whether the event was present in the last refresh.
func (w *RosterWatcher) Snapshot(eventId string) (Attendance, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	attendance, ok := w.last[eventId]

	return attendance, ok
}
