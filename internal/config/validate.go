package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSensor(); err != nil {
		return err
	}
	if err := c.validateRecording(); err != nil {
		return err
	}
	if c.API.Bind != "" {
		if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
			return fmt.Errorf("api.bind: %w", err)
		}
	}
	if topic := c.Notifications.NtfyTopic; topic != "" &&
		!strings.HasPrefix(topic, "https://") && !strings.HasPrefix(topic, "http://") {
		return fmt.Errorf("notifications.ntfy_topic: expected an http(s) URL, got %q", topic)
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSensor() error {
	switch c.Sensor.Driver {
	case DriverSynthetic:
	case DriverBridge:
		addr := c.Sensor.BridgeAddress
		if addr == "" {
			return errors.New("sensor.bridge_address must be set when sensor.driver is bridge (or set SKELREC_BRIDGE_ADDRESS)")
		}
		if !strings.HasPrefix(addr, "tcp://") && !strings.HasPrefix(addr, "unix://") {
			return fmt.Errorf("sensor.bridge_address: unsupported scheme in %q (want tcp:// or unix://)", addr)
		}
	default:
		return fmt.Errorf("sensor.driver: unsupported value %q", c.Sensor.Driver)
	}
	if c.Sensor.FrameRate > 120 {
		return errors.New("sensor.frame_rate must be at most 120")
	}
	if c.Sensor.TrackedBodies < 0 || c.Sensor.TrackedBodies > c.Sensor.BodyCount {
		return fmt.Errorf("sensor.tracked_bodies must be between 0 and sensor.body_count (%d)", c.Sensor.BodyCount)
	}
	if c.Sensor.Hotplug {
		if !isUSBID(c.Sensor.USBVendorID) {
			return fmt.Errorf("sensor.usb_vendor_id: expected 4 hex digits, got %q", c.Sensor.USBVendorID)
		}
		if !isUSBID(c.Sensor.USBProductID) {
			return fmt.Errorf("sensor.usb_product_id: expected 4 hex digits, got %q", c.Sensor.USBProductID)
		}
	}
	return nil
}

func (c *Config) validateRecording() error {
	switch c.Recording.LineEnding {
	case LineEndingPlatform, LineEndingLF, LineEndingCRLF:
		return nil
	default:
		return fmt.Errorf("recording.line_ending: unsupported value %q", c.Recording.LineEnding)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func isUSBID(value string) bool {
	if len(value) != 4 {
		return false
	}
	for _, r := range value {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}
