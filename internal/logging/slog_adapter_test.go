// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSlogHandlerRoutesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	slogger := slog.New(NewSlogHandler(logger))

	slogger.Info("supervisor started", "service", "sync-scheduler")

	out := buf.String()
	if !strings.Contains(out, `"level":"info"`) {
		t.Errorf("output missing level: %s", out)
	}
	if !strings.Contains(out, `"service":"sync-scheduler"`) {
		t.Errorf("output missing attr: %s", out)
	}
	if !strings.Contains(out, "supervisor started") {
		t.Errorf("output missing message: %s", out)
	}
}

func TestSlogHandlerLevelMapping(t *testing.T) {
	tests := []struct {
		name string
		in   slog.Level
		want zerolog.Level
	}{
		{name: "debug", in: slog.LevelDebug, want: zerolog.DebugLevel},
		{name: "info", in: slog.LevelInfo, want: zerolog.InfoLevel},
		{name: "warn", in: slog.LevelWarn, want: zerolog.WarnLevel},
		{name: "error", in: slog.LevelError, want: zerolog.ErrorLevel},
		{name: "below debug becomes trace", in: slog.LevelDebug - 4, want: zerolog.TraceLevel},
		{name: "above error stays error", in: slog.LevelError + 4, want: zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := slogToZerologLevel(tt.in); got != tt.want {
				t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.WarnLevel)
	handler := NewSlogHandler(logger)

	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) = true with warn-level logger, want false")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("Enabled(error) = false with warn-level logger, want true")
	}
}

func TestSlogHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	slogger := slog.New(NewSlogHandler(logger)).With("component", "supervisor")

	slogger.Info("restarting")

	out := buf.String()
	if !strings.Contains(out, `"component":"supervisor"`) {
		t.Errorf("output missing persistent attr: %s", out)
	}
}

func TestSlogHandlerWithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	slogger := slog.New(NewSlogHandler(logger)).WithGroup("suture").WithGroup("tree")

	slogger.Info("event", "name", "root")

	out := buf.String()
	if !strings.Contains(out, `"suture.tree.name":"root"`) {
		t.Errorf("output missing group-prefixed key: %s", out)
	}
}

func TestSlogHandlerAttrKinds(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	slogger := slog.New(NewSlogHandler(logger))

	slogger.Info("kinds",
		slog.String("s", "v"),
		slog.Int64("i", 42),
		slog.Bool("b", true),
		slog.Float64("f", 1.5),
	)

	out := buf.String()
	for _, want := range []string{`"s":"v"`, `"i":42`, `"b":true`, `"f":1.5`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestSlogHandlerNestedGroupAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	slogger := slog.New(NewSlogHandler(logger))

	slogger.Info("grouped", slog.Group("job", slog.String("type", "refresh_pricing")))

	out := buf.String()
	if !strings.Contains(out, `"job.type":"refresh_pricing"`) {
		t.Errorf("output missing nested group key: %s", out)
	}
}
