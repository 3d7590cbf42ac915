package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)
	l.Debugf("hidden %d", 1)
	l.Infof("hidden %d", 2)
	l.Warnf("shown %d", 3)
	l.Errorf("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Below-level lines leaked:\n%s", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "shown 3") || !strings.Contains(out, "shown 4") {
		t.Errorf("Missing lines:\n%s", out)
	}
}

func TestWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug).With("brave-otter").With("127.0.0.1:5000")
	l.Infof("chunk %d", 2)
	if !strings.Contains(buf.String(), "[brave-otter] [127.0.0.1:5000] chunk 2") {
		t.Errorf("Unexpected line: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"debug": LevelDebug, "": LevelInfo, "Warning": LevelWarn, "ERROR": LevelError} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}
