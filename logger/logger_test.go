package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"":        INFO,
		"warning": WARN,
		" error ": ERROR,
	}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		if !ok {
			t.Errorf("ParseLevel(%q) reported unknown level", in)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if _, ok := ParseLevel("verbose"); ok {
		t.Error("Expected unknown level to report ok=false")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	prev := Level()
	defer SetLevel(prev)

	SetLevel(WARN)
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("INFO message should be filtered at WARN level, got %q", out)
	}
	if !strings.Contains(out, "[WARN]") || !strings.Contains(out, "shown 2") {
		t.Errorf("Expected WARN message in output, got %q", out)
	}
}

func TestComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	prev := Level()
	defer SetLevel(prev)
	SetLevel(DEBUG)

	With("packager").Infof("rendition %s done", "720p")

	if !strings.Contains(buf.String(), "[packager] rendition 720p done") {
		t.Errorf("Expected component tag in output, got %q", buf.String())
	}
}
