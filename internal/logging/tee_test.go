package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerNilHandlers(t *testing.T) {
	h := newFanoutHandler(nil, nil, nil)
	if _, ok := h.(NoopHandler); !ok {
		t.Errorf("expected NoopHandler for all nil handlers, got %T", h)
	}
}

func TestNewFanoutHandlerFiltersNil(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)

	if h := newFanoutHandler(nil, inner, nil); h != inner {
		t.Error("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsPerHandlerLevels(t *testing.T) {
	var infoBuf, errBuf bytes.Buffer
	info := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	errOnly := slog.NewJSONHandler(&errBuf, &slog.HandlerOptions{Level: slog.LevelError})

	logger := slog.New(newFanoutHandler(info, errOnly))
	logger.Info("routine")
	logger.Error("broken")

	if got := strings.Count(infoBuf.String(), "\n"); got != 2 {
		t.Fatalf("info handler lines = %d, want 2", got)
	}
	if got := strings.Count(errBuf.String(), "\n"); got != 1 {
		t.Fatalf("error handler lines = %d, want 1", got)
	}
}

func TestFanoutHandlerWithAttrsPropagates(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))
	slog.New(h).With("component", "scheduler").Info("tick")

	for _, out := range []string{buf1.String(), buf2.String()} {
		if !strings.Contains(out, `"component":"scheduler"`) {
			t.Fatalf("missing propagated attr in %q", out)
		}
	}
}

func TestLevelOverrideHandlerFilters(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	h := newLevelOverrideHandler(inner, slog.LevelWarn)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected info to be filtered")
	}
	slog.New(h).Info("dropped")
	slog.New(h).Warn("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestPrettyHandlerComposesSubject(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))
	logger.Info("file processed",
		FieldComponent, "processor",
		FieldBatchID, "0123456789abcdef",
		FieldFile, "report.txt",
		FieldOutcome, "valid",
	)

	out := buf.String()
	for _, want := range []string{"[processor]", "Batch 01234567 (report.txt)", "- file processed", "    - outcome: valid"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}
