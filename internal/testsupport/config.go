package testsupport

import (
	"path/filepath"
	"testing"

	"skelrec/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Directories are not created; call cfg.EnsureDirectories when a test needs
// them on disk.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.PlaybackDir = filepath.Join(base, "playbacks")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Recording.LineEnding = config.LineEndingLF
	cfgVal.Recording.MinFreeMiB = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDirectories creates the state, log and playback directories.
func WithDirectories() ConfigOption {
	return func(b *configBuilder) {
		if err := b.cfg.EnsureDirectories(); err != nil {
			b.t.Fatalf("ensure directories: %v", err)
		}
	}
}

// WithBridge switches the sensor driver to the bridge at address.
func WithBridge(address string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sensor.Driver = config.DriverBridge
		b.cfg.Sensor.BridgeAddress = address
	}
}

// WithLineEnding overrides the recording line ending.
func WithLineEnding(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Recording.LineEnding = mode
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
