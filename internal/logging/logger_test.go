// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  zerolog.Level
	}{
		{name: "trace", input: "trace", want: zerolog.TraceLevel},
		{name: "debug", input: "debug", want: zerolog.DebugLevel},
		{name: "info", input: "info", want: zerolog.InfoLevel},
		{name: "warn", input: "warn", want: zerolog.WarnLevel},
		{name: "warning alias", input: "warning", want: zerolog.WarnLevel},
		{name: "error", input: "error", want: zerolog.ErrorLevel},
		{name: "fatal", input: "fatal", want: zerolog.FatalLevel},
		{name: "disabled", input: "disabled", want: zerolog.Disabled},
		{name: "mixed case", input: "DeBuG", want: zerolog.DebugLevel},
		{name: "unknown falls back to info", input: "verbose", want: zerolog.InfoLevel},
		{name: "empty falls back to info", input: "", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("DefaultConfig().Level = %q, want %q", cfg.Level, "info")
	}
	if cfg.Format != "json" {
		t.Errorf("DefaultConfig().Format = %q, want %q", cfg.Format, "json")
	}
	if !cfg.Timestamp {
		t.Error("DefaultConfig().Timestamp = false, want true")
	}
	if cfg.Caller {
		t.Error("DefaultConfig().Caller = true, want false")
	}
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf, Timestamp: true})
	defer Init(DefaultConfig())

	Info().Str("game", "pokemon").Msg("sync started")

	out := buf.String()
	if !strings.Contains(out, `"level":"info"`) {
		t.Errorf("output missing level field: %s", out)
	}
	if !strings.Contains(out, `"game":"pokemon"`) {
		t.Errorf("output missing custom field: %s", out)
	}
	if !strings.Contains(out, `"message":"sync started"`) {
		t.Errorf("output missing message field: %s", out)
	}
	if !strings.Contains(out, `"time":`) {
		t.Errorf("output missing timestamp: %s", out)
	}
}

func TestInitLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Debug().Msg("below threshold")
	Info().Msg("also below")
	Warn().Msg("at threshold")

	out := buf.String()
	if strings.Contains(out, "below threshold") {
		t.Errorf("debug message emitted despite warn level: %s", out)
	}
	if strings.Contains(out, "also below") {
		t.Errorf("info message emitted despite warn level: %s", out)
	}
	if !strings.Contains(out, "at threshold") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestErrAttachesError(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Err(errTest).Msg("operation failed")

	out := buf.String()
	if !strings.Contains(out, `"error":"test error"`) {
		t.Errorf("output missing error field: %s", out)
	}
}

var errTest = errTestType{}

type errTestType struct{}

func (errTestType) Error() string { return "test error" }

func TestWithChildContext(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	child := With().Str("component", "sync").Logger()
	child.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"component":"sync"`) {
		t.Errorf("child logger missing inherited field: %s", out)
	}
}

func TestSetLevel(t *testing.T) {
	defer Init(DefaultConfig())

	SetLevel(zerolog.ErrorLevel)
	if got := GetLevel(); got != zerolog.ErrorLevel {
		t.Errorf("GetLevel() = %v, want %v", got, zerolog.ErrorLevel)
	}
}

func TestNewTestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)

	logger.Info().Str("key", "value").Msg("test message")

	out := buf.String()
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("test logger missing field: %s", out)
	}
	if !strings.Contains(out, "test message") {
		t.Errorf("test logger missing message: %s", out)
	}
}
