package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestSlogBridge_ContextFieldsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Service: "coverage-api"}, &buf)
	log := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithComponent(ctx, "lookup")
	ctx = WithPartition(ctx, "p2")
	log.InfoContext(ctx, "lookup done", "records", 3, "err", errors.New("boom"))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("lines=%d want 1", len(lines))
	}
	l := lines[0]
	if l["msg"] != "lookup done" || l["request_id"] != "req-1" || l["partition"] != "p2" {
		t.Fatalf("unexpected line: %v", l)
	}
	if l["records"] != float64(3) || l["err"] != "boom" || l["service"] != "coverage-api" {
		t.Fatalf("unexpected attrs: %v", l)
	}
}

func TestSlogBridge_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	log := NewSlog(&zl)

	log.Info("dropped")
	log.Debug("dropped too")
	log.Warn("kept")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "kept" || lines[0]["level"] != "warn" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestSlogBridge_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)
	log := NewSlog(&zl).With("driver", "memory").WithGroup("store")

	log.Info("opened", slog.Int("partitions", 4))

	l := decodeLines(t, &buf)[0]
	if l["store.driver"] != nil {
		t.Fatalf("attrs added before group must not be prefixed: %v", l)
	}
	if l["driver"] != "memory" && l["store.driver"] != "memory" {
		t.Fatalf("missing driver attr: %v", l)
	}
	if l["store.partitions"] != float64(4) {
		t.Fatalf("missing grouped attr: %v", l)
	}
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	if id := RequestID(ctx); len(id) != 16 {
		t.Fatalf("generated id=%q", id)
	}
}
