package observe

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestObserver_Constructors(t *testing.T) {
	testCases := []struct {
		name string
		make func(buf *bytes.Buffer) *Observer
	}{
		{"console", func(buf *bytes.Buffer) *Observer { return New(buf, true) }},
		{"json", func(buf *bytes.Buffer) *Observer { return NewJSON(buf, true) }},
		{"nop", func(*bytes.Buffer) *Observer { return Nop() }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			obs := tc.make(&bytes.Buffer{})
			if obs == nil || obs.Log() == nil {
				t.Fatal("expected observer with logger")
			}
		})
	}
}

func TestObserver_VerboseWritesInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := NewJSON(buf, true)

	obs.Log().Info().Str("memory_id", "m-1").Int("dims", 3).Msg("memory stored")

	if !strings.Contains(buf.String(), "memory stored") {
		t.Errorf("expected log line, got %q", buf.String())
	}
}

func TestObserver_QuietSuppressesInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, false)

	obs.Log().Info().Msg("hidden")
	obs.Log().Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be filtered when not verbose, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn should pass through, got %q", out)
	}
}

func TestObserver_StartSpan(t *testing.T) {
	obs := Nop()

	ctx, span := obs.StartSpan(context.Background(), "memory.search")
	if ctx == nil || span == nil {
		t.Fatal("expected context and span")
	}
	span.End()

	if err := obs.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
