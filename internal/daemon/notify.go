package daemon

import (
	"context"
	"time"

	"skelrec/internal/logging"
	"skelrec/internal/notifications"
)

const notifyTimeout = 15 * time.Second

// SetNotifier replaces the notification service built from the config.
func (d *Daemon) SetNotifier(svc notifications.Service) {
	if svc == nil {
		return
	}
	d.mu.Lock()
	d.notify = svc
	d.mu.Unlock()
}

// publish sends event in the background. Failures are logged only.
func (d *Daemon) publish(event notifications.Event, payload notifications.Payload) {
	d.mu.Lock()
	svc := d.notify
	d.mu.Unlock()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := svc.Publish(ctx, event, payload); err != nil {
			logging.WarnWithContext(d.logger, "notification failed", "notification_failed",
				logging.Error(err),
				logging.String("event", string(event)),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	}()
}

// handleAvailability reports sensor transitions while the daemon runs.
// Transitions caused by Start and Stop themselves are not published.
func (d *Daemon) handleAvailability(available bool) {
	if !d.running.Load() {
		return
	}
	event := notifications.EventSensorLost
	if available {
		event = notifications.EventSensorRestored
	}
	d.publish(event, notifications.Payload{"device": d.session.DeviceName()})
}
