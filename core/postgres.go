package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"gatherly/pkg/resources"
)

// AttendanceStore is the remote persistence service holding events and
// the host/attendee relation. The core is a pure logic layer over these
// request/response calls; any of them may fail or time out.
type AttendanceStore interface {
	SaveEvent(ctx context.Context, event *Event, hostUserId string) (*Event, error)
	GetEventById(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context) ([]Event, error)
	ListEventsByRole(ctx context.Context, userId string, role Role) ([]Event, error)
	DeleteEvent(ctx context.Context, id string) error
	GetAttendance(ctx context.Context, eventId string) (Attendance, error)
	AddAttendee(ctx context.Context, eventId string, userId string) error
	RemoveAttendee(ctx context.Context, eventId string, userId string) error
}

type store struct {
	tracer  trace.Tracer
	metrics *DBMetrics
	pool    resources.DBInstance
}

func NewStore(pool resources.DBInstance) AttendanceStore {
	return &store{
		tracer:  otel.GetTracerProvider().Tracer("gatherly/core"),
		metrics: NewDBMetrics(),
		pool:    pool,
	}
}

// SaveEvent inserts the event and the creator's host attendance in one
// transaction, so an event never exists without its host relation.
func (s *store) SaveEvent(ctx context.Context, event *Event, hostUserId string) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { s.metrics.Observe(ctx, "save_event", start, err) }()

	ctx, span := s.tracer.Start(ctx, "store.SaveEvent")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var saved Event

	err = tx.QueryRow(ctx,
		"INSERT INTO events (name, description, starts_at) "+
			"VALUES ($1, $2, $3) "+
			"RETURNING id, name, description, starts_at, created_at",
		event.Name, event.Description, event.StartsAt).
		Scan(&saved.Id, &saved.Name, &saved.Description, &saved.StartsAt, &saved.CreatedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO event_users (event_id, user_id, role) VALUES ($1, $2, $3)",
		saved.Id, hostUserId, string(RoleHost))
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to insert host attendance: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &saved, nil
}

func (s *store) GetEventById(ctx context.Context, id string) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { s.metrics.Observe(ctx, "get_event_by_id", start, err) }()

	ctx, span := s.tracer.Start(ctx, "store.GetEventById")
	defer span.End()

	var e Event

	err = s.pool.QueryRow(
		ctx,
		`SELECT id, name, description, starts_at, created_at
		 FROM events
		 WHERE id = $1`,
		id,
	).Scan(
		&e.Id,
		&e.Name,
		&e.Description,
		&e.StartsAt,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}

		return nil, fmt.Errorf("failed to get event by id: %w", err)
	}

	return &e, nil
}

func (s *store) ListEvents(ctx context.Context) ([]Event, error) {
	start := time.Now()

	var err error

	defer func() { s.metrics.Observe(ctx, "list_events", start, err) }()

	ctx, span := s.tracer.Start(ctx, "store.ListEvents")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, starts_at, created_at
		 FROM events
		 ORDER BY starts_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *store) ListEventsByRole(ctx context.Context, userId string, role Role) ([]Event, error) {
	start := time.Now()

	var err error

	defer func() { s.metrics.Observe(ctx, "list_events_by_role", start, err) }()

	ctx, span := s.tracer.Start(ctx, "store.ListEventsByRole")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT e.id, e.name, e.description, e.starts_at, e.created_at
		 FROM events e
		 JOIN event_users eu ON eu.event_id = e.id
		 WHERE eu.user_id = $1 AND eu.role = $2
		 ORDER BY e.starts_at`,
		userId, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to list events by role: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *store) DeleteEvent(ctx context.Context, id string) error {
	start := time.Now()

	var err error

	defer func() { s.metrics.Observe(ctx, "delete_event", start, err) }()

	ctx, span := s.tracer.Start(ctx, "store.DeleteEvent")
	defer span.End()

	tag, err := s.pool.Exec(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}

	return nil
}

func (s *store) GetAttendance(ctx context.Context, eventId string) (Attendance, error) {
	start := time.Now()

	var err error

	defer func() { s.metrics.Observe(ctx, "get_attendance", start, err) }()

	ctx, span := s.tracer.Start(ctx, "store.GetAttendance")
	defer span.End()

	attendance := Attendance{
		HostIds:     map[string]struct{}{},
		AttendeeIds: map[string]struct{}{},
	}

	rows, err := s.pool.Query(ctx,
		"SELECT user_id, role FROM event_users WHERE event_id = $1",
		eventId)
	if err != nil {
		return Attendance{}, fmt.Errorf("failed to get attendance: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userId string
			role   string
		)

		err = rows.Scan(&userId, &role)
		if err != nil {
			return Attendance{}, fmt.Errorf("failed to scan attendance row: %w", err)
		}

		switch Role(role) {
		case RoleHost:
			attendance.HostIds[userId] = struct{}{}
		case RoleAttendee:
			attendance.AttendeeIds[userId] = struct{}{}
		}
	}

	err = rows.Err()
	if err != nil {
		return Attendance{}, fmt.Errorf("failed to read attendance rows: %w", err)
	}

	return attendance, nil
}

func (s *store) AddAttendee(ctx context.Context, eventId string, userId string) error {
	start := time.Now()

	var err error

	defer func() { s.metrics.Observe(ctx, "add_attendee", start, err) }()

	ctx, span := s.tracer.Start(ctx, "store.AddAttendee")
	defer span.End()

	_, err = s.pool.Exec(ctx,
		"INSERT INTO event_users (event_id, user_id, role) VALUES ($1, $2, $3)",
		eventId, userId, string(RoleAttendee))
	if err != nil {
		return fmt.Errorf("failed to add attendee: %w", err)
	}

	return nil
}

func (s *store) RemoveAttendee(ctx context.Context, eventId string, userId string) error {
	start := time.Now()

	var err error

	defer func() { s.metrics.Observe(ctx, "remove_attendee", start, err) }()

	ctx, span := s.tracer.Start(ctx, "store.RemoveAttendee")
	defer span.End()

	_, err = s.pool.Exec(ctx,
		"DELETE FROM event_users WHERE event_id = $1 AND user_id = $2 AND role = $3",
		eventId, userId, string(RoleAttendee))
	if err != nil {
		return fmt.Errorf("failed to remove attendee: %w", err)
	}

	return nil
}

func scanEvents(rows pgx.Rows) ([]Event, error) {
	var events []Event

	for rows.Next() {
		var e Event

		err := rows.Scan(&e.Id, &e.Name, &e.Description, &e.StartsAt, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		events = append(events, e)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to read event rows: %w", err)
	}

	return events, nil
}

/*

 */

type DBMetrics struct {
	qTotal   metric.Int64Counter
	qErrors  metric.Int64Counter
	qLatency metric.Float64Histogram
}

func NewDBMetrics() *DBMetrics {
	meter := otel.Meter("gatherly/db")

	qTotal, _ := meter.Int64Counter("db.query.total")
	qErrors, _ := meter.Int64Counter("db.query.errors.total")
	qLatency, _ := meter.Float64Histogram("db.query.duration.ms")

	return &DBMetrics{qTotal: qTotal, qErrors: qErrors, qLatency: qLatency}
}

func (m *DBMetrics) Observe(ctx context.Context, op string, start time.Time, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgres"),
		attribute.String("db.operation", op),
	}

	m.qTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	ms := float64(time.Since(start).Milliseconds())
	m.qLatency.Record(ctx, ms, metric.WithAttributes(attrs...))

	if err != nil {
		m.qErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
