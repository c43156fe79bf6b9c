package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fixedClock(l *Limiter, start time.Time) *time.Time {
	now := start
	l.now = func() time.Time { return now }
	return &now
}

func TestAllow_Burst(t *testing.T) {
	l := NewLimiter(1, 3)
	for i := range 3 {
		if !l.Allow("k") {
			t.Errorf("call %d rejected within burst", i+1)
		}
	}
	if l.Allow("k") {
		t.Error("call after burst allowed")
	}
}

func TestAllow_Refill(t *testing.T) {
	l := NewLimiter(10, 2)
	now := fixedClock(l, time.Unix(1000, 0))
	l.Allow("k")
	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("empty bucket allowed a call")
	}

	*now = now.Add(150 * time.Millisecond)
	if !l.Allow("k") {
		t.Error("refilled token rejected")
	}
	if l.Allow("k") {
		t.Error("only one token should have been refilled")
	}

	*now = now.Add(time.Hour)
	if got := l.Tokens("k"); got != 2 {
		t.Errorf("Tokens() = %d, want burst 2", got)
	}
}

func TestAllow_KeysIndependent(t *testing.T) {
	l := NewLimiter(0, 1)
	if !l.Allow("a") || !l.Allow("b") {
		t.Fatal("first call per key rejected")
	}
	if l.Allow("a") {
		t.Error("key a not limited")
	}
}

func TestAllow_Concurrent(t *testing.T) {
	l := NewLimiter(0, 50)
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("k") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := allowed.Load(); got != 50 {
		t.Errorf("allowed %d calls, want 50", got)
	}
}

func TestPerMinute(t *testing.T) {
	l := PerMinute(30, 1)
	now := fixedClock(l, time.Unix(0, 0))
	l.Allow("k")
	*now = now.Add(time.Second)
	if l.Allow("k") {
		t.Error("30/min refilled a token within one second")
	}
	*now = now.Add(time.Second)
	if !l.Allow("k") {
		t.Error("30/min did not refill a token after two seconds")
	}
}

func TestToolLimiters_Check(t *testing.T) {
	tl := NewToolLimiters()
	for _, name := range []string{"episim_runs", "episim_reports", "episim_infections", "episim_restrictions"} {
		if _, ok := tl[name]; !ok {
			t.Errorf("no limiter for %s", name)
		}
	}
	for range 5 {
		if err := tl.Check("episim_infections"); err != nil {
			t.Fatalf("Check() within burst = %v", err)
		}
	}
	if err := tl.Check("episim_infections"); err == nil {
		t.Error("Check() after burst = nil")
	}
	if err := tl.Check("unknown_tool"); err != nil {
		t.Errorf("Check(unknown) = %v", err)
	}
}
