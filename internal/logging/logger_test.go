package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerWritesToConsole(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Options{Console: &buf, Component: "session"})

	l.Infof("restored token from %s", "token")

	out := buf.String()
	if !strings.Contains(out, "restored token from token") {
		t.Errorf("output = %q, want message", out)
	}
	if !strings.Contains(out, "session") {
		t.Errorf("output = %q, want component field", out)
	}
}

func TestLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.log")
	var console bytes.Buffer
	l := NewLogger(Options{Console: &console, File: path})

	l.Warn().Str("request_id", "abc").Msg("slow response")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `"request_id":"abc"`) {
		t.Errorf("log file = %q, want JSON field", string(data))
	}
}

func TestSetOutputRedirects(t *testing.T) {
	var first, second bytes.Buffer
	l := NewLogger(Options{Console: &first})

	l.SetOutput(&second)
	l.Infof("moved")

	if first.Len() != 0 {
		t.Errorf("old writer got %q", first.String())
	}
	if !strings.Contains(second.String(), "moved") {
		t.Errorf("new writer got %q", second.String())
	}
	if l.Output() != &second {
		t.Error("Output() should return the new writer")
	}
}

func TestNamedKeepsParentUntouched(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(Options{Console: &buf})
	child := parent.Named("throttle")

	child.Infof("tick")
	if !strings.Contains(buf.String(), "throttle") {
		t.Errorf("child output = %q, want component", buf.String())
	}

	buf.Reset()
	parent.Infof("plain")
	if strings.Contains(buf.String(), "throttle") {
		t.Errorf("parent output = %q, should not carry child component", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"chatty", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Errorf("ignored %d", 1)
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
