package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"skelrec/internal/config"
)

const userAgent = "skelrec/0.1"

// Event identifies a notification type.
type Event string

const (
	EventRecordingStarted Event = "recording_started"
	EventRecordingSaved   Event = "recording_saved"
	EventRecordingFailed  Event = "recording_failed"
	EventSensorLost       Event = "sensor_lost"
	EventSensorRestored   Event = "sensor_restored"
	EventTest             Event = "test"
)

// Payload carries event fields such as "path", "lines" or "error".
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when
// notifications.ntfy_topic is empty.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRecordingStarted:
		body := "Recording to " + payload.text("path")
		if payload.flag("external") {
			body += " (ignoring sensor availability)"
		}
		return message{
			title: "skelrec - Recording Started",
			body:  body,
			tags:  []string{"skelrec", "recording", "started"},
		}, true
	case EventRecordingSaved:
		return message{
			title: "skelrec - Recording Saved",
			body:  fmt.Sprintf("Saved %s (%s lines)", payload.text("path"), payload.text("lines")),
			tags:  []string{"skelrec", "recording", "saved"},
		}, true
	case EventRecordingFailed:
		return message{
			title:    "skelrec - Recording Failed",
			body:     fmt.Sprintf("Recording to %s failed: %s", payload.text("path"), payload.text("error")),
			tags:     []string{"skelrec", "recording", "error"},
			priority: "high",
		}, true
	case EventSensorLost:
		return message{
			title:    "skelrec - Sensor Unavailable",
			body:     fmt.Sprintf("Sensor %s is unavailable", payload.text("device")),
			tags:     []string{"skelrec", "sensor", "warning"},
			priority: "high",
		}, true
	case EventSensorRestored:
		return message{
			title: "skelrec - Sensor Available",
			body:  fmt.Sprintf("Sensor %s is available again", payload.text("device")),
			tags:  []string{"skelrec", "sensor"},
		}, true
	case EventTest:
		return message{
			title:    "skelrec - Test",
			body:     "Notification system test",
			tags:     []string{"skelrec", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) text(key string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return "unknown"
	}
	text := strings.TrimSpace(fmt.Sprint(value))
	if text == "" {
		return "unknown"
	}
	return text
}

func (p Payload) flag(key string) bool {
	value, _ := p[key].(bool)
	return value
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
