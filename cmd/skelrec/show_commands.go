package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"skelrec/internal/api"
	"skelrec/internal/ipc"
	"skelrec/internal/preflight"
	"skelrec/internal/skeleton"
)

func newStatusCommand(ctx *cliState) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, sensor and recording status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var status *api.DaemonStatus
			client, err := ctx.connect()
			if err == nil {
				defer client.Close()
				status, err = client.Status()
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				if status == nil {
					status = &api.DaemonStatus{}
					if cfg := ctx.configOrNil(); cfg != nil {
						status.Preflight = localPreflight(preflight.RunAll(cmd.Context(), cfg))
					}
				}
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := renderSectionHeader("System", colorize)
			lines = append(lines, daemonLines(status, colorize)...)

			var checks []api.PreflightItem
			if status != nil && status.Running {
				checks = status.Preflight
			} else if cfg := ctx.configOrNil(); cfg != nil {
				checks = localPreflight(preflight.RunAll(cmd.Context(), cfg))
			}
			if len(checks) > 0 {
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Preflight", colorize)...)
				lines = append(lines, preflightLines(checks, colorize)...)
			}
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newSnapshotCommand(ctx *cliState) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Show the most recently published skeleton",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.useDaemon(func(client *ipc.Client) error {
				snap, err := client.Snapshot()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, snap)
				}
				out := cmd.OutOrStdout()
				if !snap.Available {
					fmt.Fprintln(out, "No skeleton has been published yet")
					return nil
				}
				fmt.Fprintln(out, renderSnapshot(snap))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderSnapshot(snap *api.Snapshot) string {
	rows := make([][]string, 0, len(snap.Joints))
	for _, j := range snap.Joints {
		rows = append(rows, []string{
			j.Name,
			j.State,
			formatCoord(&j.X),
			formatCoord(&j.Y),
			formatCoord(&j.Z),
			formatCoord(j.DepthX),
			formatCoord(j.DepthY),
		})
	}
	title := fmt.Sprintf("Body %d, frame %d", snap.TrackingID, snap.Frame)
	if t, ok := api.ParseTime(snap.PublishedAt); ok {
		title += ", " + humanize.Time(t)
	}
	return renderTable(tableSpec{
		Title:   title,
		Headers: []string{"Joint", "State", "X", "Y", "Z", "Depth X", "Depth Y"},
		Aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
		Rows:    rows,
	})
}

func formatCoord(v *float32) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(float64(*v), 'f', 3, 32)
}

func newRecordingsCommand(ctx *cliState) *cobra.Command {
	var jsonOutput bool
	var limit int
	cmd := &cobra.Command{
		Use:   "recordings",
		Short: "List recorded playback files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be zero or positive")
			}
			return ctx.useDaemon(func(client *ipc.Client) error {
				resp, err := client.Recordings(limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Recordings) == 0 {
					fmt.Fprintln(out, "No recordings yet")
					return nil
				}
				fmt.Fprintln(out, renderRecordings(resp.Recordings, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of recordings to show (0 for all)")
	return cmd
}

func renderRecordings(recordings []api.Recording, now time.Time) string {
	rows := make([][]string, 0, len(recordings))
	var lines uint64
	for _, rec := range recordings {
		started := "-"
		if t, ok := api.ParseTime(rec.StartedAt); ok {
			started = humanize.RelTime(t, now, "ago", "from now")
		}
		status := rec.Status
		if rec.Failure != "" {
			status += ": " + rec.Failure
		}
		rows = append(rows, []string{
			shortID(rec.ID),
			rec.Path,
			status,
			humanize.Comma(int64(rec.Lines)),
			started,
			formatSeconds(rec.DurationSeconds),
		})
		lines += rec.Lines
	}
	return renderTable(tableSpec{
		Headers: []string{"ID", "File", "Status", "Lines", "Started", "Duration"},
		Aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
		Rows:    rows,
		Footer:  fmt.Sprintf("%d recordings, %s lines", len(recordings), humanize.Comma(int64(lines))),
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds * float64(time.Second))).Round(100 * time.Millisecond).String()
}

func newJointsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "joints",
		Short:       "List joints in playback file order",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			types := skeleton.AllJointTypes()
			rows := make([][]string, 0, len(types))
			for _, jt := range types {
				rows = append(rows, []string{strconv.Itoa(int(jt)), jt.String(), jt.DisplayName()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(tableSpec{
				Headers: []string{"#", "Identifier", "Name"},
				Aligns:  []columnAlignment{alignRight, alignLeft, alignLeft},
				Rows:    rows,
			}))
			return nil
		},
	}
}
