package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSensor()
	c.normalizeRecording()
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("SKELREC_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if strings.TrimSpace(c.Paths.PlaybackDir) == "" {
		c.Paths.PlaybackDir = defaultPlaybackDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.StateDir, err = ExpandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.PlaybackDir, err = ExpandPath(c.Paths.PlaybackDir); err != nil {
		return fmt.Errorf("paths.playback_dir: %w", err)
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSensor() {
	c.Sensor.Driver = strings.ToLower(strings.TrimSpace(c.Sensor.Driver))
	if c.Sensor.Driver == "" {
		c.Sensor.Driver = defaultDriver
	}
	c.Sensor.BridgeAddress = strings.TrimSpace(c.Sensor.BridgeAddress)
	if c.Sensor.BridgeAddress == "" {
		if value, ok := os.LookupEnv("SKELREC_BRIDGE_ADDRESS"); ok {
			c.Sensor.BridgeAddress = strings.TrimSpace(value)
		}
	}
	if c.Sensor.RedialSeconds <= 0 {
		c.Sensor.RedialSeconds = defaultRedialSeconds
	}
	if c.Sensor.FrameRate <= 0 {
		c.Sensor.FrameRate = defaultFrameRate
	}
	if c.Sensor.BodyCount <= 0 {
		c.Sensor.BodyCount = defaultBodyCount
	}
	c.Sensor.USBVendorID = strings.ToLower(strings.TrimSpace(c.Sensor.USBVendorID))
	c.Sensor.USBProductID = strings.ToLower(strings.TrimSpace(c.Sensor.USBProductID))
}

func (c *Config) normalizeRecording() {
	c.Recording.LineEnding = strings.ToLower(strings.TrimSpace(c.Recording.LineEnding))
	if c.Recording.LineEnding == "" {
		c.Recording.LineEnding = defaultLineEnding
	}
	if c.Recording.MinFreeMiB < 0 {
		c.Recording.MinFreeMiB = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
