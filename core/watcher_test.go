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

func TestRosterWatcher_Refresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now()

	t.Run("snapshots upcoming events only", func(t *testing.T) {
		t.Parallel()

		upcoming := Event{Id: "event-1", Name: "Upcoming", StartsAt: now.Add(24 * time.Hour)}
		past := Event{Id: "event-2", Name: "Past", StartsAt: now.Add(-time.Hour)}

		mockStore := new(MockStore)
		mockStore.On("ListEvents", mock.Anything).Return([]Event{upcoming, past}, nil)
		mockStore.On("GetAttendance", mock.Anything, "event-1").
			Return(attendanceWith([]string{"host-1"}, []string{"user-1"}), nil)

		watcher := NewRosterWatcher(mockStore, func() time.Time { return now })

		require.NoError(t, watcher.Refresh(ctx))

		attendance, ok := watcher.Snapshot("event-1")
		require.True(t, ok)
		assert.Equal(t, RoleAttendee, attendance.RoleOf("user-1"))

		_, ok = watcher.Snapshot("event-2")
		assert.False(t, ok)

		mockStore.AssertNotCalled(t, "GetAttendance", mock.Anything, "event-2")
	})

	t.Run("refresh replaces the snapshot", func(t *testing.T) {
		t.Parallel()

		event := Event{Id: "event-1", Name: "Upcoming", StartsAt: now.Add(24 * time.Hour)}

		mockStore := new(MockStore)
		mockStore.On("ListEvents", mock.Anything).Return([]Event{event}, nil)
		mockStore.On("GetAttendance", mock.Anything, "event-1").
			Return(attendanceWith([]string{"host-1"}, nil), nil).Once()
		mockStore.On("GetAttendance", mock.Anything, "event-1").
			Return(attendanceWith([]string{"host-1"}, []string{"user-1"}), nil).Once()

		watcher := NewRosterWatcher(mockStore, func() time.Time { return now })

		require.NoError(t, watcher.Refresh(ctx))

		attendance, ok := watcher.Snapshot("event-1")
		require.True(t, ok)
		assert.Equal(t, RoleNone, attendance.RoleOf("user-1"))

		// A join from another device shows up on the next poll.
		require.NoError(t, watcher.Refresh(ctx))

		attendance, ok = watcher.Snapshot("event-1")
		require.True(t, ok)
		assert.Equal(t, RoleAttendee, attendance.RoleOf("user-1"))
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		t.Parallel()

		mockStore := new(MockStore)
		mockStore.On("ListEvents", mock.Anything).Return(nil, errors.New("timeout"))

		watcher := NewRosterWatcher(mockStore, func() time.Time { return now })

		require.Error(t, watcher.Refresh(ctx))
	})
}
