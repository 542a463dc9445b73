package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"skelrec/internal/config"
	"skelrec/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventRecordingSaved, notifications.Payload{"path": "walk.txt"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title, body, tags, priority string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, chan captured) {
	t.Helper()
	ch := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ch <- captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte("topic rejected"))
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectBody     string
		expectTags     string
		expectPriority string
	}{
		{
			name:        "recording started",
			event:       notifications.EventRecordingStarted,
			payload:     notifications.Payload{"path": "/p/walk.txt", "external": true},
			expectTitle: "skelrec - Recording Started",
			expectBody:  "Recording to /p/walk.txt (ignoring sensor availability)",
			expectTags:  "skelrec,recording,started",
		},
		{
			name:        "recording saved",
			event:       notifications.EventRecordingSaved,
			payload:     notifications.Payload{"path": "/p/walk.txt", "lines": uint64(120)},
			expectTitle: "skelrec - Recording Saved",
			expectBody:  "Saved /p/walk.txt (120 lines)",
			expectTags:  "skelrec,recording,saved",
		},
		{
			name:           "recording failed",
			event:          notifications.EventRecordingFailed,
			payload:        notifications.Payload{"path": "/p/walk.txt", "error": "disk full"},
			expectTitle:    "skelrec - Recording Failed",
			expectBody:     "Recording to /p/walk.txt failed: disk full",
			expectTags:     "skelrec,recording,error",
			expectPriority: "high",
		},
		{
			name:           "sensor lost without device",
			event:          notifications.EventSensorLost,
			payload:        notifications.Payload{},
			expectTitle:    "skelrec - Sensor Unavailable",
			expectBody:     "Sensor unknown is unavailable",
			expectTags:     "skelrec,sensor,warning",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "skelrec - Test",
			expectBody:     "Notification system test",
			expectTags:     "skelrec,test",
			expectPriority: "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ch := newCaptureServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			svc := notifications.NewService(&cfg)

			if err := svc.Publish(context.Background(), tt.event, tt.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			got := <-ch
			if got.title != tt.expectTitle {
				t.Errorf("title = %q, want %q", got.title, tt.expectTitle)
			}
			if got.body != tt.expectBody {
				t.Errorf("body = %q, want %q", got.body, tt.expectBody)
			}
			if got.tags != tt.expectTags {
				t.Errorf("tags = %q, want %q", got.tags, tt.expectTags)
			}
			if got.priority != tt.expectPriority {
				t.Errorf("priority = %q, want %q", got.priority, tt.expectPriority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)

	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic rejected") {
		t.Fatalf("expected HTTP error, got %v", err)
	}
}

func TestNtfyServiceRejectsUnknownEvent(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "http://127.0.0.1:1/topic"
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.Event("bogus"), nil); err == nil {
		t.Fatal("expected unknown event error")
	}
}
