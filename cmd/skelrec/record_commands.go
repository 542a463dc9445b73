package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"skelrec/internal/config"
	"skelrec/internal/ipc"
)

const followInterval = 250 * time.Millisecond

func newRecordCommand(ctx *cliState) *cobra.Command {
	var ignoreAvailability bool
	var follow bool
	var outPath string

	cmd := &cobra.Command{
		Use:   "record [name]",
		Short: "Start recording to <playback_dir>/<name>.txt",
		Long: "Start recording tracked bodies to a playback file. Without a name the file\n" +
			"is recording_<n>.txt, where n is the number of catalogued recordings.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.StartRecordingRequest{IgnoreAvailability: ignoreAvailability}
			if len(args) == 1 {
				req.Stem = args[0]
			}
			if outPath != "" {
				expanded, err := config.ExpandPath(outPath)
				if err != nil {
					return fmt.Errorf("resolve output path: %w", err)
				}
				req.Path = expanded
			}

			client, err := ctx.connect()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.StartRecording(req)
			if err != nil {
				return err
			}
			if !resp.Started {
				return errors.New(resp.Message)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recording to %s\n", resp.Path)
			if !follow {
				return nil
			}
			return followRecording(cmd.Context(), client, resp.Path, out, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVar(&ignoreAvailability, "ignore-availability", false, "Record even while the sensor reports unavailable (external capture tool)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Show a live line count and stop the recording on Ctrl-C")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write to this file instead of the playback directory")
	return cmd
}

// followRecording shows a spinner with the line count until interrupted, then
// stops the recording. It returns early if the recording ends elsewhere.
func followRecording(parent context.Context, client *ipc.Client, path string, out, errOut io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	sigCtx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription(filepath.Base(path)),
		progressbar.OptionSetWriter(errOut),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("lines"),
		progressbar.OptionShowIts(),
		progressbar.OptionSpinnerType(14),
	)

	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sigCtx.Done():
			_ = bar.Finish()
			fmt.Fprintln(errOut)
			return stopAndReport(client, out)
		case <-ticker.C:
			status, err := client.Status()
			if err != nil {
				_ = bar.Finish()
				return fmt.Errorf("poll status: %w", err)
			}
			if status.Recording == nil || status.Recording.Path != path {
				_ = bar.Finish()
				fmt.Fprintln(errOut)
				fmt.Fprintln(out, "Recording ended by the daemon; see `skelrec recordings`")
				return nil
			}
			_ = bar.Set64(int64(status.Recording.Lines))
		}
	}
}

func newStopCommand(ctx *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop recording and save the playback file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.useDaemon(func(client *ipc.Client) error {
				return stopAndReport(client, cmd.OutOrStdout())
			})
		},
	}
}

func stopAndReport(client *ipc.Client, out io.Writer) error {
	resp, err := client.StopRecording()
	if err != nil {
		return err
	}
	if !resp.Stopped {
		return errors.New(resp.Message)
	}
	fmt.Fprintln(out, resp.Message)
	fmt.Fprintf(out, "%d lines written to %s\n", resp.Lines, resp.Path)
	return nil
}
