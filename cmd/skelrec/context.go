package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"skelrec/internal/config"
	"skelrec/internal/ipc"
)

// skipConfigAnnotation marks commands that run without a loaded config.
const skipConfigAnnotation = "skipConfigLoad"

// cliState carries the persistent flags and the lazily loaded config
// shared by every subcommand.
type cliState struct {
	socketOverride string
	configOverride string

	loaded     bool
	cfg        *config.Config
	configPath string
	loadErr    error
}

// loadConfig reads the configuration once per process and makes sure its
// directories exist. Later calls return the cached result.
func (s *cliState) loadConfig() (*config.Config, error) {
	if s.loaded {
		return s.cfg, s.loadErr
	}
	s.loaded = true

	cfg, resolved, _, err := config.Load(strings.TrimSpace(s.configOverride))
	if err == nil {
		err = cfg.EnsureDirectories()
	}
	if err != nil {
		s.loadErr = err
		return nil, err
	}
	s.cfg, s.configPath = cfg, resolved
	return cfg, nil
}

// configOrNil is loadConfig for callers that can proceed without one.
func (s *cliState) configOrNil() *config.Config {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil
	}
	return cfg
}

// socket returns the --socket override or the socket named by the config.
func (s *cliState) socket() string {
	if override := strings.TrimSpace(s.socketOverride); override != "" {
		return override
	}
	if cfg := s.configOrNil(); cfg != nil {
		return cfg.SocketPath()
	}
	if state, err := config.ExpandPath("~/.local/share/skelrec"); err == nil {
		return filepath.Join(state, "skelrec.sock")
	}
	return filepath.Join("/tmp", "skelrec.sock")
}

func (s *cliState) connect() (*ipc.Client, error) {
	socket := s.socket()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, dialError(socket, err)
	}
	return client, nil
}

// useDaemon runs fn against a connected client and closes it afterwards.
func (s *cliState) useDaemon(fn func(*ipc.Client) error) error {
	client, err := s.connect()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func dialError(socket string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOENT) {
		return fmt.Errorf("daemon socket %s not found; start it with `skelrec daemon`", socket)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("daemon socket %s refused the connection; is the daemon still running?", socket)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}
