package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNew_RejectsNonPositiveRate(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Error("expected error for rate 0")
	}
	if _, err := New(-1); err == nil {
		t.Error("expected error for negative rate")
	}
}

func TestWait_EnforcesMinimumInterval(t *testing.T) {
	l, err := New(10) // 10/s => 100ms between calls
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	start := time.Now()
	if err := l.Wait(ctx, "https://example.com/a"); err != nil {
		t.Fatal(err)
	}
	if err := l.Wait(ctx, "https://example.com/b"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("elapsed = %v, want >= ~100ms between same-domain calls", elapsed)
	}
}

func TestWait_DifferentDomainsDoNotBlockEachOther(t *testing.T) {
	l, err := New(1) // 1/s => 1s between same-domain calls
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	start := time.Now()
	if err := l.Wait(ctx, "https://a.example.com/"); err != nil {
		t.Fatal(err)
	}
	if err := l.Wait(ctx, "https://b.example.com/"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("elapsed = %v, want near-instant for distinct domains", elapsed)
	}
}

func TestWait_CancelledContext(t *testing.T) {
	l, err := New(0.001)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_ = l.Wait(ctx, "https://example.com/first")
	if err := l.Wait(ctx, "https://example.com/first"); err == nil {
		t.Error("expected context deadline error on second wait")
	}
}
