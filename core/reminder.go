package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Notifier is the OS-level notification facility: it reports or
// requests a permission grant, and accepts scheduling requests that it
// later delivers out-of-process. Delivery is fire-and-forget; once a
// job is accepted the service is its durable owner.
type Notifier interface {
	Permission(ctx context.Context) (bool, error)
	RequestPermission(ctx context.Context) (bool, error)
	Schedule(ctx context.Context, content NotificationContent, delaySeconds int64) (string, error)
}

// ScheduleResult is the outcome for a single reminder spec. Reminders
// are independent user intents, so ScheduleAll reports one outcome per
// spec instead of aborting the batch on the first failure.
type ScheduleResult struct {
	Spec      ReminderSpec
	Scheduled *ScheduledReminder
	Err       error
}

// ReminderScheduler holds the per-event reminder specs added during the
// current session and the trigger instants already handed to the
// notification service. The scheduled set is advisory and
// session-scoped; the notification service keeps the durable record.
type ReminderScheduler interface {
	AddReminder(eventId string, date time.Time, timeOfDay time.Time) ReminderSpec
	ScheduleAll(ctx context.Context, event *Event) []ScheduleResult
	PendingReminders(eventId string) []ReminderSpec
}

type reminderScheduler struct {
	notifier Notifier
	now      func() time.Time

	mu        sync.Mutex
	specs     map[string][]ReminderSpec
	scheduled map[string]map[time.Time]struct{}
	granted   bool
}

func NewReminderScheduler(notifier Notifier, now func() time.Time) ReminderScheduler {
	if now == nil {
		now = time.Now
	}

	return &reminderScheduler{
		notifier:  notifier,
		now:       now,
		specs:     map[string][]ReminderSpec{},
		scheduled: map[string]map[time.Time]struct{}{},
	}
}

// AddReminder appends a spec. Pure local state: nothing is scheduled
// until ScheduleAll. Duplicate (date, time) pairs are allowed here,
// dedup happens on the computed trigger at scheduling time.
func (s *reminderScheduler) AddReminder(eventId string, date time.Time, timeOfDay time.Time) ReminderSpec {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec := ReminderSpec{
		Id:        uuid.NewString(),
		EventId:   eventId,
		Date:      date,
		TimeOfDay: timeOfDay,
	}
	s.specs[eventId] = append(s.specs[eventId], spec)

	return spec
}

// ScheduleAll walks the event's specs in insertion order and hands each
// one to the notification service. Re-invoking it never creates a
// second job for an already-scheduled trigger. A permission denial
// marks every remaining spec and stops the batch; any other failure is
// local to its spec.
func (s *reminderScheduler) ScheduleAll(ctx context.Context, event *Event) []ScheduleResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	specs := s.specs[event.Id]
	results := make([]ScheduleResult, 0, len(specs))

	done := s.scheduled[event.Id]
	if done == nil {
		done = map[time.Time]struct{}{}
		s.scheduled[event.Id] = done
	}

	var blocked error

	for _, spec := range specs {
		if blocked != nil {
			results = append(results, ScheduleResult{Spec: spec, Err: blocked})
			continue
		}

		trigger := spec.TriggerAt()
		now := s.now()

		if !trigger.After(now) {
			results = append(results, ScheduleResult{Spec: spec, Err: ErrPastTrigger})
			continue
		}

		if _, ok := done[trigger]; ok {
			results = append(results, ScheduleResult{Spec: spec, Err: ErrDuplicateTrigger})
			continue
		}

		err := s.ensurePermission(ctx)
		if err != nil {
			// A single denial covers the whole batch, do not prompt again
			// per reminder.
			blocked = err
			results = append(results, ScheduleResult{Spec: spec, Err: blocked})

			continue
		}

		delay := int64(trigger.Sub(now) / time.Second)
		if delay < 1 {
			delay = 1
		}

		content := NotificationContent{
			Title: fmt.Sprintf("Reminder for %s", event.Name),
			Body:  fmt.Sprintf("Don't forget about your event: %s!", event.Name),
		}

		handle, err := s.notifier.Schedule(ctx, content, delay)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("event_id", event.Id).Str("spec_id", spec.Id).
				Msg("failed to schedule reminder")
			results = append(results, ScheduleResult{Spec: spec, Err: fmt.Errorf("%w: %w", ErrNotificationService, err)})

			continue
		}

		done[trigger] = struct{}{}
		results = append(results, ScheduleResult{
			Spec:      spec,
			Scheduled: &ScheduledReminder{JobHandle: handle, TriggerAt: trigger},
		})
	}

	return results
}

func (s *reminderScheduler) PendingReminders(eventId string) []ReminderSpec {
	s.mu.Lock()
	defer s.mu.Unlock()

	specs := make([]ReminderSpec, len(s.specs[eventId]))
	copy(specs, s.specs[eventId])

	return specs
}

// ensurePermission checks the current grant and prompts at most once.
// A successful grant is remembered for the session; a denial is not, so
// a later ScheduleAll may prompt again.
func (s *reminderScheduler) ensurePermission(ctx context.Context) error {
	if s.granted {
		return nil
	}

	granted, err := s.notifier.Permission(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationService, err)
	}

	if !granted {
		granted, err = s.notifier.RequestPermission(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNotificationService, err)
		}

		if !granted {
			return ErrPermissionDenied
		}
	}

	s.granted = true

	return nil
}
