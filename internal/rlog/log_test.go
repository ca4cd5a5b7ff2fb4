package rlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestGlogHandlerVerbosity(t *testing.T) {
	out := new(bytes.Buffer)
	glog := NewGlogHandler(NewTerminalHandler(out, false))
	glog.Verbosity(LevelCrit)
	logger := NewWithHandler(glog)
	logger.Warn("should not be seen")
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}

	glog.Verbosity(LevelTrace)
	logger.Trace("a message", "foo", "bar")
	if !strings.Contains(out.String(), "a message") || !strings.Contains(out.String(), "foo=bar") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestJSONHandler(t *testing.T) {
	out := new(bytes.Buffer)
	logger := NewWithHandler(JSONHandler(out))
	logger.Debug("hi there")
	if out.Len() == 0 {
		t.Fatal("expected non-empty debug log output from JSON handler")
	}
}

func TestRootDefault(t *testing.T) {
	custom := New("component", "test")
	SetDefault(custom)
	if Root() != custom {
		t.Fatal("expected custom logger to be installed as default")
	}
}
