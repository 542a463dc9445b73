package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"skelrec/internal/api"
	"skelrec/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// daemonLines renders the daemon section from a status response.
func daemonLines(status *api.DaemonStatus, colorize bool) []string {
	if status == nil || !status.Running {
		return []string{renderStatusLine("Daemon", statusError, "Not running", colorize)}
	}
	lines := []string{renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize)}

	if status.SensorAvailable {
		lines = append(lines, renderStatusLine("Sensor", statusOK, status.Device+" available", colorize))
	} else {
		lines = append(lines, renderStatusLine("Sensor", statusWarn, status.Device+" unavailable", colorize))
	}

	if rec := status.Recording; rec != nil {
		detail := fmt.Sprintf("%s (%d lines)", rec.Path, rec.Lines)
		if rec.External {
			detail += ", ignoring availability"
		}
		lines = append(lines, renderStatusLine("Recording", statusOK, detail, colorize))
	} else {
		lines = append(lines, renderStatusLine("Recording", statusInfo, "Idle", colorize))
	}

	p := status.Processor
	frameKind := statusInfo
	if p.Failed > 0 {
		frameKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Frames", frameKind,
		fmt.Sprintf("%d processed, %d skipped, %d dropped, %d failed, %d tracked",
			p.Frames, p.Skipped, p.Dropped, p.Failed, p.TrackedBodies), colorize))
	return lines
}

// preflightLines renders readiness checks; results come from the daemon when
// it is running and are computed locally otherwise.
func preflightLines(items []api.PreflightItem, colorize bool) []string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		kind := statusOK
		if !item.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(item.Name, kind, item.Detail, colorize))
	}
	return lines
}

func localPreflight(results []preflight.Result) []api.PreflightItem {
	return api.FromPreflight(results)
}
