package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"log/slog"
)

func newTestHandler(buf *bytes.Buffer, format logFormat) (*structuredHandler, *asyncWriter) {
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: aw,
		format: format,
	})
	return h, aw
}

func drain(t *testing.T, aw *asyncWriter) {
	t.Helper()
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestHandlerKVPinnedOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	h, aw := newTestHandler(buf, formatKV)

	ctx := WithRID(Background(), "rid-abc")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	log := slog.New(h).With("component", "monitor")
	LogEvent(ctx, log, slog.LevelInfo, "check.done",
		slog.String("status", "ok"),
		slog.Int64("track_id", 15),
	)
	drain(t, aw)

	line := strings.TrimSpace(buf.String())
	tokens := strings.Split(line, " ")
	want := []string{"ts=", "level=INFO", "component=monitor", "event=check.done", "status=ok", "rid=rid-abc"}
	if len(tokens) < len(want) {
		t.Fatalf("short line: %s", line)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %q, want prefix %q (line %s)", i, tokens[i], prefix, line)
		}
	}
	if !strings.Contains(line, "track_id=15") {
		t.Fatalf("missing track_id: %s", line)
	}
}

func TestHandlerJSONFields(t *testing.T) {
	buf := &bytes.Buffer{}
	h, aw := newTestHandler(buf, formatJSON)

	ctx := WithRID(Background(), "rid-json")
	log := slog.New(h).With("component", "backend")
	LogEvent(ctx, log, slog.LevelError, "tracks.fetch",
		slog.String("status", "error"),
		slog.String("err", "boom"),
		slog.Int("http_code", 502),
	)
	drain(t, aw)

	line := strings.TrimSpace(buf.String())
	var got map[string]any
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("unmarshal %s: %v", line, err)
	}
	if got["component"] != "backend" || got["event"] != "tracks.fetch" {
		t.Fatalf("unexpected fields: %v", got)
	}
	if got["http_code"] != float64(502) {
		t.Fatalf("http_code = %v", got["http_code"])
	}
	if !strings.HasPrefix(line, `{"ts":`) {
		t.Fatalf("ts not first: %s", line)
	}
}

func TestHandlerDurationMillis(t *testing.T) {
	buf := &bytes.Buffer{}
	h, aw := newTestHandler(buf, formatKV)

	log := slog.New(h).With("component", "api")
	LogEvent(Background(), log, slog.LevelInfo, "request.done",
		slog.Duration("duration", 1500*time.Microsecond),
	)
	drain(t, aw)

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "duration_ms=2") {
		t.Fatalf("expected rounded millis, got %s", line)
	}
}

func TestHandlerSuffixesDurationKeys(t *testing.T) {
	buf := &bytes.Buffer{}
	h, aw := newTestHandler(buf, formatKV)

	log := slog.New(h).With("component", "monitor")
	LogEvent(Background(), log, slog.LevelInfo, "job_started",
		slog.Duration("interval", 3*time.Second),
	)
	drain(t, aw)

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "interval_ms=3000") {
		t.Fatalf("expected interval_ms=3000, got %s", line)
	}
}

func TestHandlerCompactsNumericRID(t *testing.T) {
	buf := &bytes.Buffer{}
	h, aw := newTestHandler(buf, formatKV)

	raw := BuildRID(100, 200, 300)
	ctx := WithRID(Background(), raw)
	log := slog.New(h).With("component", "tg")
	LogEvent(ctx, log, slog.LevelInfo, "update.seen")
	drain(t, aw)

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "rid="+CompactRID(raw)) {
		t.Fatalf("expected compact rid %s in %s", CompactRID(raw), line)
	}
	if strings.Contains(line, "rid="+raw+" ") {
		t.Fatalf("raw rid leaked: %s", line)
	}
}

func TestHandlerDropsEmptyStrings(t *testing.T) {
	buf := &bytes.Buffer{}
	h, aw := newTestHandler(buf, formatKV)

	log := slog.New(h).With("component", "dialog")
	LogEvent(Background(), log, slog.LevelInfo, "step",
		slog.String("state", ""),
		slog.String("outcome", "advance"),
	)
	drain(t, aw)

	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "state=") {
		t.Fatalf("empty attr kept: %s", line)
	}
	if !strings.Contains(line, "outcome=advance") {
		t.Fatalf("missing outcome: %s", line)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 4)
	kept := 0
	for i := 0; i < 40; i++ {
		if s.Allow() {
			kept++
		}
	}
	if kept != 10 {
		t.Fatalf("kept %d of 40, want 10", kept)
	}

	s.Set(0, 0)
	if s.Allow() {
		t.Fatal("disabled sampler allowed")
	}
}

func TestParseRatioSpec(t *testing.T) {
	cases := []struct {
		spec        string
		keep, total int
	}{
		{"", 1, 1},
		{"all", 1, 1},
		{"off", 0, 0},
		{"1/50", 1, 50},
		{" 2 / 5 ", 2, 5},
		{"garbage", -1, -1},
		{"5/2", -1, -1},
	}
	for _, tc := range cases {
		keep, total := parseRatioSpec(tc.spec)
		if keep != tc.keep || total != tc.total {
			t.Fatalf("parseRatioSpec(%q) = %d/%d, want %d/%d", tc.spec, keep, total, tc.keep, tc.total)
		}
	}
}

func TestSanitizeLimit(t *testing.T) {
	in := "multi\nline\x00 with \x7f control"
	out := Sanitize(in)
	if strings.ContainsAny(out, "\x00\x7f") {
		t.Fatalf("control chars survived: %q", out)
	}
	if !strings.Contains(out, "\n") {
		t.Fatalf("newline should survive Sanitize: %q", out)
	}
	if got := SanitizeLimit("абвгд", 3); got != "абв" {
		t.Fatalf("rune truncation broken: %q", got)
	}
}
