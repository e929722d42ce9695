package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func restore(t *testing.T) {
	t.Helper()
	prev := Current()
	t.Cleanup(func() { Configure(prev) })
}

func TestConfigure_ZeroKeepsCurrent(t *testing.T) {
	restore(t)
	before := Current()

	Configure(Config{Short: 7 * time.Second})

	got := Current()
	if got.Short != 7*time.Second {
		t.Errorf("Short = %v, want 7s", got.Short)
	}
	if got.Ping != before.Ping || got.Medium != before.Medium || got.Seed != before.Seed {
		t.Errorf("unconfigured values changed: %+v, was %+v", got, before)
	}
	if Short() != 7*time.Second {
		t.Errorf("Short() = %v, want 7s", Short())
	}
}

func TestDefaults(t *testing.T) {
	if DefaultPing >= DefaultShort || DefaultShort >= DefaultMedium || DefaultMedium >= DefaultSeed {
		t.Error("defaults should grow from ping to seed")
	}
}

func TestWithTimeout_NilLogger(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, nil, "test")
	<-ctx.Done()
	cancel()

	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("ctx.Err() = %v, want DeadlineExceeded", ctx.Err())
	}
}

func TestWithTimeout_LogsDeadline(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := zap.New(core)

	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, log, "seed")
	<-ctx.Done()
	cancel()

	entries := logs.FilterMessage("operation timed out").All()
	if len(entries) != 1 {
		t.Fatalf("timeout warnings = %d, want 1", len(entries))
	}
	if op := entries[0].ContextMap()["operation"]; op != "seed" {
		t.Errorf("operation = %v, want seed", op)
	}

	// Finishing in time logs nothing.
	_, cancel = WithTimeout(context.Background(), time.Minute, log, "fast")
	cancel()
	if logs.Len() != 1 {
		t.Errorf("log entries = %d, want no warning for an early cancel", logs.Len())
	}
}
