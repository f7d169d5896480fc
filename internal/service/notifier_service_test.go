package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/config"
	"github.com/fadilmartias/interview-pipeline/internal/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier_Send(t *testing.T) {
	recordingID := uuid.New()
	received := make(chan Notification, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s3cret", r.Header.Get("X-Webhook-Secret"))
		var n Notification
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&n))
		received <- n
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(&config.NotifierConfig{WebhookURL: srv.URL, Secret: "s3cret", Timeout: time.Second})
	err := notifier.Send(context.Background(), Notification{RecordingID: recordingID, Type: NotificationOnboarding, OccurredAt: time.Now().UTC()})
	require.NoError(t, err)

	n := <-received
	assert.Equal(t, recordingID, n.RecordingID)
	assert.Equal(t, NotificationOnboarding, n.Type)
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(&config.NotifierConfig{WebhookURL: srv.URL, Timeout: time.Second})
	err := notifier.Send(context.Background(), Notification{RecordingID: uuid.New(), Type: NotificationOnboarding})
	assert.ErrorContains(t, err, "500")
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(logger.Nop())
	assert.NoError(t, n.Send(context.Background(), Notification{RecordingID: uuid.New(), Type: NotificationOnboarding}))
	assert.Error(t, n.Send(context.Background(), Notification{}))
}

func TestMeetingService_CreateMeeting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/meetings", r.URL.Path)
		assert.Equal(t, "Bearer zoom-token", r.Header.Get("Authorization"))
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 45, body["duration"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 987654321, "join_url": "https://zoom.example/j/987654321", "password": "abc"}`))
	}))
	defer srv.Close()

	svc := NewMeetingService(&config.MeetingConfig{BaseURL: srv.URL, Token: "zoom-token", Timeout: time.Second})
	m, err := svc.CreateMeeting(context.Background(), MeetingRequest{Topic: "Interview", StartTime: time.Now(), DurationMinutes: 45})
	require.NoError(t, err)
	assert.Equal(t, "987654321", m.ID)
	assert.Equal(t, "https://zoom.example/j/987654321", m.JoinURL)
	assert.Equal(t, "abc", m.Password)
}

func TestLocalArtifactStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalArtifactStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	path, err := store.Save(ctx, "abc123.mp3", []byte("audio"))
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, filepath.Join(dir, "abc123.mp3"), path)

	t.Run("traversal stays inside dir", func(t *testing.T) {
		p, err := store.Save(ctx, "../../etc/abc123.txt", []byte("x"))
		require.NoError(t, err)
		assert.Equal(t, dir, filepath.Dir(p))
		assert.FileExists(t, p)
	})

	t.Run("ids sharing a base name do not collide", func(t *testing.T) {
		a, err := store.Save(ctx, "team/a.mp3", []byte("team"))
		require.NoError(t, err)
		b, err := store.Save(ctx, "other/a.mp3", []byte("other"))
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
		assert.Equal(t, dir, filepath.Dir(a))
		assert.Equal(t, dir, filepath.Dir(b))

		got, err := os.ReadFile(a)
		require.NoError(t, err)
		assert.Equal(t, "team", string(got))
		got, err = os.ReadFile(b)
		require.NoError(t, err)
		assert.Equal(t, "other", string(got))
	})

	t.Run("rejects dot names", func(t *testing.T) {
		for _, name := range []string{"", ".", ".."} {
			_, err := store.Save(ctx, name, []byte("x"))
			assert.Error(t, err, name)
		}
	})
}
