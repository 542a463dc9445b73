package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one human-readable line per record:
//
//	2026-03-01T12:00:00Z INFO daemon: [rec 0f8fad5b] recording started recording_path=/p/a.txt
//
// The component and session attributes are lifted into the prefix. Attributes
// added through WithAttrs are rendered once, when the child handler is made.
type consoleHandler struct {
	out       *lockedWriter
	level     slog.Leveler
	addSource bool

	component string
	session   string
	group     string
	preset    []byte
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) write(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.w.Write(p)
	return err
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{out: &lockedWriter{w: w}, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	component, session := h.component, h.session
	var tail bytes.Buffer
	tail.Write(h.preset)
	record.Attrs(func(attr slog.Attr) bool {
		switch {
		case h.group == "" && attr.Key == FieldComponent:
			if component == "" {
				component = attr.Value.String()
			}
		case h.group == "" && attr.Key == FieldSessionID:
			if session == "" {
				session = attr.Value.String()
			}
		default:
			appendAttr(&tail, h.group, attr)
		}
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var line bytes.Buffer
	line.Grow(96 + tail.Len())
	line.WriteString(ts.UTC().Format(time.RFC3339))
	line.WriteByte(' ')
	line.WriteString(levelLabel(record.Level))
	line.WriteByte(' ')
	if component != "" {
		line.WriteString(component)
		line.WriteString(": ")
	}
	if session != "" {
		fmt.Fprintf(&line, "[rec %s] ", shortSession(session))
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		line.WriteString(msg)
	} else {
		line.WriteString("(no message)")
	}
	if h.addSource && record.PC != 0 {
		frame := record.Source()
		if frame != nil && frame.File != "" {
			fmt.Fprintf(&line, " [%s:%d]", filepath.Base(frame.File), frame.Line)
		}
	}
	line.Write(tail.Bytes())
	line.WriteByte('\n')
	return h.out.write(line.Bytes())
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	child := *h
	var buf bytes.Buffer
	buf.Write(h.preset)
	for _, attr := range attrs {
		switch {
		case h.group == "" && attr.Key == FieldComponent:
			child.component = attr.Value.String()
		case h.group == "" && attr.Key == FieldSessionID:
			child.session = attr.Value.String()
		default:
			appendAttr(&buf, h.group, attr)
		}
	}
	child.preset = buf.Bytes()
	return &child
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	child := *h
	child.group = joinKey(h.group, name)
	return &child
}

// appendAttr writes " key=value", flattening groups into dotted keys.
func appendAttr(buf *bytes.Buffer, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		group := prefix
		if attr.Key != "" {
			group = joinKey(prefix, attr.Key)
		}
		for _, member := range attr.Value.Group() {
			appendAttr(buf, group, member)
		}
		return
	}
	key := joinKey(prefix, attr.Key)
	if key == "" {
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(key)
	buf.WriteByte('=')
	buf.WriteString(quoteIfNeeded(valueText(attr.Value)))
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "." + key
	}
}

func valueText(v slog.Value) string {
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// shortSession trims a uuid to its first group.
func shortSession(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
