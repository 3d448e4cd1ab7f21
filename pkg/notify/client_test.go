package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/core"
)

func TestClient_Permission(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr bool
	}{
		{
			name:   "granted",
			status: http.StatusOK,
			body:   `{"granted":true}`,
			want:   true,
		},
		{
			name:   "denied",
			status: http.StatusOK,
			body:   `{"granted":false}`,
			want:   false,
		},
		{
			name:    "gateway failure",
			status:  http.StatusInternalServerError,
			body:    `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/permissions", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL)

			granted, err := client.Permission(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, granted)
		})
	}
}

func TestClient_RequestPermission(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/permissions", r.URL.Path)
		_, _ = w.Write([]byte(`{"granted":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	granted, err := client.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestClient_Schedule(t *testing.T) {
	t.Parallel()

	t.Run("submits content and delay", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/notifications", r.URL.Path)

			var req scheduleRequest

			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Reminder for Launch Party", req.Title)
			assert.Equal(t, "Don't forget about your event: Launch Party!", req.Body)
			assert.Equal(t, int64(120), req.DelaySeconds)

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"job-42"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL)

		handle, err := client.Schedule(context.Background(), core.NotificationContent{
			Title: "Reminder for Launch Party",
			Body:  "Don't forget about your event: Launch Party!",
		}, 120)
		require.NoError(t, err)
		assert.Equal(t, "job-42", handle)
	})

	t.Run("gateway failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewClient(server.URL)

		_, err := client.Schedule(context.Background(), core.NotificationContent{}, 1)
		require.Error(t, err)
	})
}
