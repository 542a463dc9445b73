package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	PlaybackDir string `toml:"playback_dir"`
	LogDir      string `toml:"log_dir"`
}

// Sensor selects and tunes the depth sensor driver.
type Sensor struct {
	// Driver is "synthetic" or "bridge".
	Driver string `toml:"driver"`
	// BridgeAddress is tcp://host:port or unix:///path for the bridge driver.
	BridgeAddress string `toml:"bridge_address"`
	RedialSeconds int    `toml:"redial_seconds"`
	// FrameRate and BodyCount apply to the synthetic driver.
	FrameRate     int `toml:"frame_rate"`
	BodyCount     int `toml:"body_count"`
	TrackedBodies int `toml:"tracked_bodies"`
	// Hotplug gates availability on the USB device being present.
	Hotplug      bool   `toml:"hotplug"`
	USBVendorID  string `toml:"usb_vendor_id"`
	USBProductID string `toml:"usb_product_id"`
}

// Recording contains playback file output settings.
type Recording struct {
	// LineEnding is "platform", "lf" or "crlf".
	LineEnding string `toml:"line_ending"`
	MinFreeMiB int    `toml:"min_free_mib"`
}

// API configures the optional read-only HTTP API for display clients.
type API struct {
	// Bind is host:port; empty disables the API.
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Notifications configures ntfy push notifications for recording events.
type Notifications struct {
	// NtfyTopic is the full topic URL; empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for skelrec.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sensor        Sensor        `toml:"sensor"`
	Recording     Recording     `toml:"recording"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := ExpandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("skelrec.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state, log and playback directories.
// Recordings never create directories themselves, so the playback directory
// must exist before the first StartRecording.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.PlaybackDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "skelrec.sock")
}

// LockPath returns the single-instance daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "skelrecd.lock")
}

// CatalogPath returns the recording catalog database location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.StateDir, "recordings.db")
}

// ExpandPath resolves a leading "~" to the user's home directory and
// returns the cleaned absolute path. Empty input stays empty.
func ExpandPath(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	if rest, ok := strings.CutPrefix(raw, "~"); ok && (rest == "" || os.IsPathSeparator(rest[0])) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		raw = home + rest
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", raw, err)
	}
	return abs, nil
}

// ErrConfigExists is returned by WriteSample when the target is present and
// overwrite was not requested.
var ErrConfigExists = errors.New("config file already exists")

// WriteSample writes the annotated sample configuration to path, creating
// parent directories as needed.
func WriteSample(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(sampleConfig); err != nil {
		f.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return f.Close()
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
