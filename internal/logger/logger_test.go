package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithComponentWritesField(t *testing.T) {
	var buf bytes.Buffer
	Init("debug", false, &buf)
	defer Init("info", false, nil)

	WithComponent("selection").Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["component"] != "selection" {
		t.Fatalf("component = %v, want selection", entry["component"])
	}
	if entry["message"] != "hello" {
		t.Fatalf("message = %v, want hello", entry["message"])
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	Init("warn", false, &buf)
	defer Init("info", false, nil)

	WithComponent("x").Debug().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected debug line to be filtered, got %q", buf.String())
	}
}

func TestWithOutputWritesFields(t *testing.T) {
	var buf bytes.Buffer
	Init("debug", false, &buf)
	defer Init("info", false, nil)

	WithOutput("workspace", "DP1").Info().Msg("moved")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["component"] != "workspace" || entry["output"] != "DP1" {
		t.Fatalf("entry = %v, want component workspace and output DP1", entry)
	}
}
