package logging

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_WritesKeyValueFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core)).With("component", "orchestrator")

	logger.WarnContext(context.Background(), "lobby callback ignored", "lobby_id", "991", "error", errors.New("unknown lobby"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "orchestrator" {
		t.Fatalf("unexpected component field: %v", fields["component"])
	}
	if fields["lobby_id"] != "991" {
		t.Fatalf("unexpected lobby_id field: %v", fields["lobby_id"])
	}
	if fields["error"] != "unknown lobby" {
		t.Fatalf("unexpected error field: %v", fields["error"])
	}
}

func TestLogger_OddArgsKeepLastKey(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := FromZap(zap.New(core))

	logger.Info("dangling", "slot")

	fields := logs.All()[0].ContextMap()
	if _, ok := fields["slot"]; !ok {
		t.Fatalf("expected dangling key to be kept, got %v", fields)
	}
}

func TestLogger_MirrorReceivesEnabledRecordsOnly(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	logger := FromZap(zap.New(core)).With("session_id", "s-1")

	var mu sync.Mutex
	var got []string
	SetMirror(func(_ context.Context, level Level, msg string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, level.String()+":"+msg)
		if len(args) < 2 || args[0] != "session_id" {
			t.Errorf("expected logger fields to be forwarded, got %v", args)
		}
	})
	t.Cleanup(func() { SetMirror(nil) })

	logger.Debug("filtered")
	logger.Info("kept")

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "info:kept" {
		t.Fatalf("unexpected mirrored records: %v", got)
	}
}
