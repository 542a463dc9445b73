package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"skelrec/internal/catalog"
	"skelrec/internal/daemon"
	"skelrec/internal/ipc"
	"skelrec/internal/logging"
)

const currentLogName = "skelrec.log"

func newDaemonRunCommand(ctx *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the recording daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func newShutdownCommand(ctx *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Stop the running daemon, saving any active recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.useDaemon(func(client *ipc.Client) error {
				resp, err := client.Shutdown()
				if err != nil {
					return err
				}
				if resp.Accepted {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon shutting down")
				}
				return nil
			})
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *cliState) error {
	if ctx == nil {
		return errors.New("command context is required")
	}
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("skelrec-%s.log", runID))
	logger, err := logging.NewFromConfig(cfg, logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", currentLogName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "skelrec-*.log", Exclude: []string{logPath}},
	)

	pidPath := filepath.Join(cfg.Paths.StateDir, "skelrec.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open recording catalog", logging.Error(err))
		return err
	}

	device, err := daemon.NewDevice(cfg, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("create sensor device: %w", err)
	}

	d, err := daemon.New(cfg, logger, device, store)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	ipcServer, err := ipc.NewServer(signalCtx, ctx.socket(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.OnShutdown(cancel)
	ipcServer.Serve()

	<-signalCtx.Done()
	logger.Info("skelrec daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, currentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
