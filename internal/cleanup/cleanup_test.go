package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
}

func (f *fakePruner) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.err
}

type fakeLimiter struct {
	resets int
}

func (f *fakeLimiter) Reset() { f.resets++ }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Schedule != "0 * * * *" {
		t.Errorf("Schedule = %q, want %q", cfg.Schedule, "0 * * * *")
	}
	if cfg.Retention != 168*time.Hour {
		t.Errorf("Retention = %v, want %v", cfg.Retention, 168*time.Hour)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"every five minutes", Config{Schedule: "*/5 * * * *", Retention: time.Hour}, false},
		{"seconds field rejected", Config{Schedule: "0 0 * * * *", Retention: time.Hour}, true},
		{"garbage", Config{Schedule: "whenever", Retention: time.Hour}, true},
		{"empty", Config{Schedule: "", Retention: time.Hour}, true},
		{"zero retention", Config{Schedule: "0 * * * *"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, &fakePruner{}, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCleaner_RunOnce(t *testing.T) {
	pruner := &fakePruner{deleted: 3}
	limiter := &fakeLimiter{}
	cleaner, err := New(Config{Schedule: "0 * * * *", Retention: 2 * time.Hour}, pruner, limiter)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cleaner.now = func() time.Time { return now }

	if got := cleaner.RunOnce(context.Background()); got != 3 {
		t.Errorf("RunOnce() = %d, want 3", got)
	}
	if len(pruner.cutoffs) != 1 || !pruner.cutoffs[0].Equal(now.Add(-2*time.Hour)) {
		t.Errorf("cutoffs = %v, want %v", pruner.cutoffs, now.Add(-2*time.Hour))
	}
	if limiter.resets != 1 {
		t.Errorf("limiter reset %d times, want 1", limiter.resets)
	}
}

func TestCleaner_RunOnceError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("database is locked")}
	limiter := &fakeLimiter{}
	cleaner, err := New(DefaultConfig(), pruner, limiter)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := cleaner.RunOnce(context.Background()); got != 0 {
		t.Errorf("RunOnce() = %d, want 0", got)
	}
	if limiter.resets != 0 {
		t.Error("limiter should not be reset when pruning fails")
	}
}

func TestCleaner_StartStop(t *testing.T) {
	cleaner, err := New(DefaultConfig(), &fakePruner{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := cleaner.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := cleaner.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	cleaner.Stop()
	cleaner.Stop()

	// Verify it stopped (no panic, no hanging)
}
