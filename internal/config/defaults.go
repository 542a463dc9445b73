package config

const (
	defaultConfigPath         = "~/.config/skelrec/config.toml"
	defaultStateDir           = "~/.local/share/skelrec"
	defaultPlaybackDir        = "playbacks"
	defaultLogDir             = "~/.local/share/skelrec/logs"
	defaultDriver             = DriverSynthetic
	defaultRedialSeconds      = 2
	defaultFrameRate          = 30
	defaultBodyCount          = 6
	defaultTrackedBodies      = 1
	defaultUSBVendorID        = "045e"
	defaultUSBProductID       = "02c4"
	defaultLineEnding         = LineEndingPlatform
	defaultMinFreeMiB         = 64
	defaultNtfyTimeoutSeconds = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
)

// Sensor driver names.
const (
	DriverSynthetic = "synthetic"
	DriverBridge    = "bridge"
)

// Line ending modes for playback files.
const (
	LineEndingPlatform = "platform"
	LineEndingLF       = "lf"
	LineEndingCRLF     = "crlf"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    defaultStateDir,
			PlaybackDir: defaultPlaybackDir,
			LogDir:      defaultLogDir,
		},
		Sensor: Sensor{
			Driver:        defaultDriver,
			RedialSeconds: defaultRedialSeconds,
			FrameRate:     defaultFrameRate,
			BodyCount:     defaultBodyCount,
			TrackedBodies: defaultTrackedBodies,
			USBVendorID:   defaultUSBVendorID,
			USBProductID:  defaultUSBProductID,
		},
		Recording: Recording{
			LineEnding: defaultLineEnding,
			MinFreeMiB: defaultMinFreeMiB,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
