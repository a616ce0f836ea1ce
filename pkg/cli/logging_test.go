package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogOptions{Prefix: "koe"})
	l.Debug("hidden")
	l.Info("model loaded", "model", "m1")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written without Verbose: %q", out)
	}
	if !strings.Contains(out, "model loaded") || !strings.Contains(out, "m1") {
		t.Errorf("output = %q", out)
	}

	buf.Reset()
	NewLogger(&buf, LogOptions{Verbose: true}).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("verbose output = %q", buf.String())
	}
}
