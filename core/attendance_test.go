package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore is a mock of the AttendanceStore interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveEvent(ctx context.Context, event *Event, hostUserId string) (*Event, error) {
	args := m.Called(ctx, event, hostUserId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Event), args.Error(1)
}

func (m *MockStore) GetEventById(ctx context.Context, id string) (*Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Event), args.Error(1)
}

func (m *MockStore) ListEvents(ctx context.Context) ([]Event, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]Event), args.Error(1)
}

func (m *MockStore) ListEventsByRole(ctx context.Context, userId string, role Role) ([]Event, error) {
	args := m.Called(ctx, userId, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]Event), args.Error(1)
}

func (m *MockStore) DeleteEvent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) GetAttendance(ctx context.Context, eventId string) (Attendance, error) {
	args := m.Called(ctx, eventId)
	return args.Get(0).(Attendance), args.Error(1)
}

func (m *MockStore) AddAttendee(ctx context.Context, eventId string, userId string) error {
	args := m.Called(ctx, eventId, userId)
	return args.Error(0)
}

func (m *MockStore) RemoveAttendee(ctx context.Context, eventId string, userId string) error {
	args := m.Called(ctx, eventId, userId)
	return args.Error(0)
}

func attendanceWith(hosts []string, attendees []string) Attendance {
	attendance := Attendance{
		HostIds:     map[string]struct{}{},
		AttendeeIds: map[string]struct{}{},
	}

	for _, id := range hosts {
		attendance.HostIds[id] = struct{}{}
	}

	for _, id := range attendees {
		attendance.AttendeeIds[id] = struct{}{}
	}

	return attendance
}

func TestAttendanceController_Join(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name       string
		attendance Attendance
		readErr    error
		addErr     error
		wantRole   Role
		wantErr    error
		wantAdd    bool
	}{
		{
			name:       "success",
			attendance: attendanceWith([]string{"host-1"}, nil),
			wantRole:   RoleAttendee,
			wantAdd:    true,
		},
		{
			name:       "already attendee",
			attendance: attendanceWith([]string{"host-1"}, []string{"user-1"}),
			wantRole:   RoleAttendee,
			wantErr:    ErrAlreadyJoined,
		},
		{
			name:       "already host",
			attendance: attendanceWith([]string{"user-1"}, nil),
			wantRole:   RoleHost,
			wantErr:    ErrAlreadyJoined,
		},
		{
			name:       "attendance read failure",
			attendance: Attendance{},
			readErr:    errors.New("network down"),
			wantRole:   RoleNone,
		},
		{
			name:       "mutation failure",
			attendance: attendanceWith(nil, nil),
			addErr:     errors.New("insert failed"),
			wantRole:   RoleNone,
			wantAdd:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockStore := new(MockStore)
			mockStore.On("GetAttendance", mock.Anything, "event-1").Return(tt.attendance, tt.readErr)

			if tt.wantAdd {
				mockStore.On("AddAttendee", mock.Anything, "event-1", "user-1").Return(tt.addErr)
			}

			controller := NewAttendanceController(mockStore, DefaultCancelWindow, time.Now)

			role, err := controller.Join(ctx, "event-1", "user-1")

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else if tt.readErr != nil || tt.addErr != nil {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantRole, role)
			mockStore.AssertExpectations(t)

			// AlreadyJoined must not issue the mutation.
			if !tt.wantAdd {
				mockStore.AssertNotCalled(t, "AddAttendee", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestAttendanceController_Cancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name       string
		startsIn   time.Duration
		removeErr  error
		wantRole   Role
		wantErr    error
		wantRemove bool
	}{
		{
			name:       "outside window",
			startsIn:   72 * time.Hour,
			wantRole:   RoleNone,
			wantRemove: true,
		},
		{
			name:     "inside window",
			startsIn: 24 * time.Hour,
			wantRole: RoleAttendee,
			wantErr:  ErrWindowClosed,
		},
		{
			name:     "exactly at boundary",
			startsIn: DefaultCancelWindow,
			wantRole: RoleAttendee,
			wantErr:  ErrWindowClosed,
		},
		{
			name:       "just outside boundary",
			startsIn:   DefaultCancelWindow + time.Second,
			wantRole:   RoleNone,
			wantRemove: true,
		},
		{
			name:       "mutation failure keeps attendee",
			startsIn:   72 * time.Hour,
			removeErr:  errors.New("delete failed"),
			wantRole:   RoleAttendee,
			wantRemove: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			event := &Event{Id: "event-1", Name: "Test", StartsAt: now.Add(tt.startsIn)}

			mockStore := new(MockStore)
			mockStore.On("GetEventById", mock.Anything, "event-1").Return(event, nil)

			if tt.wantRemove {
				mockStore.On("RemoveAttendee", mock.Anything, "event-1", "user-1").Return(tt.removeErr)
			}

			controller := NewAttendanceController(mockStore, DefaultCancelWindow, func() time.Time { return now })

			role, err := controller.Cancel(ctx, "event-1", "user-1")

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else if tt.removeErr != nil {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantRole, role)
			mockStore.AssertExpectations(t)

			// Inside the window nothing may be mutated.
			if !tt.wantRemove {
				mockStore.AssertNotCalled(t, "RemoveAttendee", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestAttendanceController_CurrentRole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name       string
		attendance Attendance
		readErr    error
		wantRole   Role
		wantErr    bool
	}{
		{
			name:       "none",
			attendance: attendanceWith([]string{"host-1"}, []string{"user-2"}),
			wantRole:   RoleNone,
		},
		{
			name:       "attendee",
			attendance: attendanceWith([]string{"host-1"}, []string{"user-1"}),
			wantRole:   RoleAttendee,
		},
		{
			name:       "host",
			attendance: attendanceWith([]string{"user-1"}, nil),
			wantRole:   RoleHost,
		},
		{
			name:       "host wins on dual-role anomaly",
			attendance: attendanceWith([]string{"user-1"}, []string{"user-1"}),
			wantRole:   RoleHost,
		},
		{
			name:       "store failure",
			attendance: Attendance{},
			readErr:    errors.New("timeout"),
			wantRole:   RoleNone,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockStore := new(MockStore)
			mockStore.On("GetAttendance", mock.Anything, "event-1").Return(tt.attendance, tt.readErr)

			controller := NewAttendanceController(mockStore, DefaultCancelWindow, time.Now)

			role, err := controller.CurrentRole(ctx, "event-1", "user-1")

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantRole, role)
		})
	}
}

// Walks the full RSVP lifecycle around the cancellation window: join,
// cancel while allowed, re-join, then hit the closed window.
func TestAttendanceController_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	start := time.Now().Add(72 * time.Hour)
	event := &Event{Id: "event-1", Name: "Launch Party", StartsAt: start}

	now := start.Add(-72 * time.Hour)

	empty := attendanceWith([]string{"host-1"}, nil)
	withUser := attendanceWith([]string{"host-1"}, []string{"user-1"})

	// GetAttendance reads in call order: join precheck, role after join,
	// role after cancel, re-join precheck, role after closed window.
	mockStore := new(MockStore)
	mockStore.On("GetAttendance", mock.Anything, "event-1").Return(empty, nil).Once()
	mockStore.On("GetAttendance", mock.Anything, "event-1").Return(withUser, nil).Once()
	mockStore.On("GetAttendance", mock.Anything, "event-1").Return(empty, nil).Twice()
	mockStore.On("GetAttendance", mock.Anything, "event-1").Return(withUser, nil).Once()
	mockStore.On("GetEventById", mock.Anything, "event-1").Return(event, nil)
	mockStore.On("AddAttendee", mock.Anything, "event-1", "user-1").Return(nil)
	mockStore.On("RemoveAttendee", mock.Anything, "event-1", "user-1").Return(nil)

	controller := NewAttendanceController(mockStore, DefaultCancelWindow, func() time.Time { return now })

	// Join: 72h before start.
	role, err := controller.Join(ctx, "event-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, RoleAttendee, role)

	role, err = controller.CurrentRole(ctx, "event-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, RoleAttendee, role)

	// +10h: 62h remain, cancellation allowed.
	now = now.Add(10 * time.Hour)

	role, err = controller.Cancel(ctx, "event-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, RoleNone, role)

	role, err = controller.CurrentRole(ctx, "event-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, RoleNone, role)

	// Re-join.
	role, err = controller.Join(ctx, "event-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, RoleAttendee, role)

	// +30h: 42h remain, window closed.
	now = now.Add(20 * time.Hour)

	role, err = controller.Cancel(ctx, "event-1", "user-1")
	require.ErrorIs(t, err, ErrWindowClosed)
	assert.Equal(t, RoleAttendee, role)

	role, err = controller.CurrentRole(ctx, "event-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, RoleAttendee, role)
}
