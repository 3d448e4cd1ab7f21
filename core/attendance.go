package core

import (
	"context"
	"sync/atomic"
	"time"
)

// AttendanceController owns the RSVP state machine for (user, event)
// pairs. Role is never cached: every query re-derives it from the
// store, so changes made from other devices or by the host show up on
// the next read. No mutation is applied locally until the store
// acknowledges it, so abandonment never needs a rollback.
type AttendanceController interface {
	Join(ctx context.Context, eventId string, userId string) (Role, error)
	Cancel(ctx context.Context, eventId string, userId string) (Role, error)
	CurrentRole(ctx context.Context, eventId string, userId string) (Role, error)
	// InFlight reports whether a Join or Cancel is outstanding. Advisory
	// only: callers are expected to disable repeat invocation while an
	// operation is in flight, the controller does not dedupe.
	InFlight() bool
}

type attendanceController struct {
	store    AttendanceStore
	window   time.Duration
	now      func() time.Time
	inFlight atomic.Bool
}

func NewAttendanceController(store AttendanceStore, window time.Duration, now func() time.Time) AttendanceController {
	if now == nil {
		now = time.Now
	}

	return &attendanceController{
		store:  store,
		window: window,
		now:    now,
	}
}

func (c *attendanceController) Join(ctx context.Context, eventId string, userId string) (Role, error) {
	c.inFlight.Store(true)
	defer c.inFlight.Store(false)

	role, err := c.CurrentRole(ctx, eventId, userId)
	if err != nil {
		return RoleNone, err
	}

	if role != RoleNone {
		return role, ErrAlreadyJoined
	}

	err = c.store.AddAttendee(ctx, eventId, userId)
	if err != nil {
		return RoleNone, ErrStore(err)
	}

	return RoleAttendee, nil
}

func (c *attendanceController) Cancel(ctx context.Context, eventId string, userId string) (Role, error) {
	c.inFlight.Store(true)
	defer c.inFlight.Store(false)

	event, err := c.store.GetEventById(ctx, eventId)
	if err != nil {
		return RoleAttendee, ErrStore(err)
	}

	// Policy first: inside the window nothing is mutated.
	if !AllowedToCancel(event.StartsAt, c.now(), c.window) {
		return RoleAttendee, ErrWindowClosed
	}

	err = c.store.RemoveAttendee(ctx, eventId, userId)
	if err != nil {
		// Removal failed, so the attendee relation still holds.
		return RoleAttendee, ErrStore(err)
	}

	return RoleNone, nil
}

func (c *attendanceController) CurrentRole(ctx context.Context, eventId string, userId string) (Role, error) {
	attendance, err := c.store.GetAttendance(ctx, eventId)
	if err != nil {
		return RoleNone, ErrStore(err)
	}

	return attendance.RoleOf(userId), nil
}

func (c *attendanceController) InFlight() bool {
	return c.inFlight.Load()
}
