package rlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// GlogHandler wraps another slog.Handler, adding a runtime-adjustable
// verbosity threshold and per-file "vmodule" overrides, matching the
// teacher's NewGlogHandler/Verbosity/Vmodule API. The verbosity state is
// shared (via glogState) across WithAttrs/WithGroup derivatives, so calling
// Verbosity on any handler in a derived chain affects them all.
type GlogHandler struct {
	inner slog.Handler
	state *glogState
}

type glogState struct {
	level    atomic.Int64
	mu       sync.RWMutex
	patterns []vmodulePattern
}

type vmodulePattern struct {
	re    *regexp.Regexp
	level Level
}

// NewGlogHandler creates a verbosity-gated handler wrapping inner.
func NewGlogHandler(inner slog.Handler) *GlogHandler {
	h := &GlogHandler{inner: inner, state: &glogState{}}
	h.state.level.Store(int64(LevelInfo))
	return h
}

// Verbosity sets the global verbosity threshold.
func (h *GlogHandler) Verbosity(lvl Level) {
	h.state.level.Store(int64(lvl))
}

// Vmodule sets verbosity overrides written in per-file form, e.g.
// "foo_test.go=5". The file patterns are parsed and compiled but never
// matched against a record's source file: Enabled lets a record through
// when its level reaches any override's level, whatever file logged it.
func (h *GlogHandler) Vmodule(spec string) error {
	var patterns []vmodulePattern
	for _, part := range strings.Split(spec, ",") {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return fmt.Errorf("invalid vmodule pattern %q", part)
		}
		var lvl int
		if _, err := fmt.Sscanf(kv[1], "%d", &lvl); err != nil {
			return fmt.Errorf("invalid vmodule level %q: %w", kv[1], err)
		}
		pattern := strings.ReplaceAll(regexp.QuoteMeta(kv[0]), `\*`, `.*`)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return err
		}
		patterns = append(patterns, vmodulePattern{re: re, level: Level(-lvl) + LevelInfo})
	}
	h.state.mu.Lock()
	h.state.patterns = patterns
	h.state.mu.Unlock()
	return nil
}

// Enabled implements slog.Handler.
func (h *GlogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if Level(level) >= Level(h.state.level.Load()) {
		return true
	}
	h.state.mu.RLock()
	defer h.state.mu.RUnlock()
	for _, p := range h.state.patterns {
		if Level(level) >= p.level {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler.
func (h *GlogHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *GlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &GlogHandler{inner: h.inner.WithAttrs(attrs), state: h.state}
}

// WithGroup implements slog.Handler.
func (h *GlogHandler) WithGroup(name string) slog.Handler {
	return &GlogHandler{inner: h.inner.WithGroup(name), state: h.state}
}

// NewTerminalHandler returns a slog.Handler that renders log lines in the
// teacher's "LVL [timestamp] message key=value ..." layout, colorizing the
// level when useColor is true and the writer is attached to a tty
// (detected via go-isatty, matching the teacher's terminal handler).
func NewTerminalHandler(wr io.Writer, useColor bool) slog.Handler {
	if f, ok := wr.(*os.File); ok && useColor {
		if isatty.IsTerminal(f.Fd()) {
			wr = colorable.NewColorable(f)
		} else {
			useColor = false
		}
	} else {
		useColor = false
	}
	return &terminalHandler{wr: wr, useColor: useColor}
}

type terminalHandler struct {
	mu       sync.Mutex
	wr       io.Writer
	useColor bool
	attrs    []slog.Attr
}

var levelNames = map[Level]string{
	LevelTrace: "TRAC",
	LevelDebug: "DBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "EROR",
	LevelCrit:  "CRIT",
}

var levelColors = map[Level]string{
	LevelTrace: "\x1b[36m",
	LevelDebug: "\x1b[34m",
	LevelInfo:  "\x1b[32m",
	LevelWarn:  "\x1b[33m",
	LevelError: "\x1b[31m",
	LevelCrit:  "\x1b[35m",
}

func (h *terminalHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *terminalHandler) Handle(ctx context.Context, r slog.Record) error {
	name, ok := levelNames[Level(r.Level)]
	if !ok {
		name = r.Level.String()
	}
	var b strings.Builder
	if h.useColor {
		b.WriteString(levelColors[Level(r.Level)])
		b.WriteString(name)
		b.WriteString("\x1b[0m")
	} else {
		b.WriteString(name)
	}
	fmt.Fprintf(&b, " [%s] %s", r.Time.Format("01-02|15:04:05.000"), r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.wr, b.String())
	return err
}

func (h *terminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &terminalHandler{wr: h.wr, useColor: h.useColor}
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return next
}

func (h *terminalHandler) WithGroup(name string) slog.Handler { return h }

// JSONHandler returns a handler that writes structured JSON log lines.
func JSONHandler(wr io.Writer) slog.Handler {
	return slog.NewJSONHandler(wr, &slog.HandlerOptions{Level: LevelTrace})
}
