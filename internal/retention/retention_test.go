package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockReclaimer struct {
	degraded      int
	degradeErr    error
	evicted       int
	evictErr      error
	gotDegradeAge time.Duration
	gotEvictAge   time.Duration
}

func (m *mockReclaimer) DegradeImages(_ context.Context, olderThan time.Duration) (int, error) {
	m.gotDegradeAge = olderThan
	return m.degraded, m.degradeErr
}

func (m *mockReclaimer) EvictUnpopular(_ context.Context, olderThan time.Duration) (int, error) {
	m.gotEvictAge = olderThan
	return m.evicted, m.evictErr
}

type mockPruner struct {
	pruned     int
	err        error
	gotHorizon time.Duration
}

func (m *mockPruner) PruneIndexes(_ context.Context, horizon time.Duration) (int, error) {
	m.gotHorizon = horizon
	return m.pruned, m.err
}

type mockPolicy struct {
	mu   sync.Mutex
	runs int
	err  error
}

func (m *mockPolicy) Name() string { return "mock" }

func (m *mockPolicy) RunOnce(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	return m.err
}

func (m *mockPolicy) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// --- PopularityPolicy tests ---

func TestPopularityPolicy_DefaultHorizons(t *testing.T) {
	rec := &mockReclaimer{degraded: 2, evicted: 3}
	p := NewPopularityPolicy(rec, zap.NewNop())

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.gotDegradeAge != time.Hour {
		t.Errorf("degrade horizon = %v, want 1h", rec.gotDegradeAge)
	}
	if rec.gotEvictAge != 24*time.Hour {
		t.Errorf("evict horizon = %v, want 24h", rec.gotEvictAge)
	}
}

func TestPopularityPolicy_DegradeFailureStillEvicts(t *testing.T) {
	rec := &mockReclaimer{degradeErr: errors.New("disk full"), evicted: 1}
	p := NewPopularityPolicy(rec, zap.NewNop())

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("degrade failure must not fail the run: %v", err)
	}
	if rec.gotEvictAge == 0 {
		t.Error("evict pass must still run after a degrade failure")
	}
}

func TestPopularityPolicy_EvictFailure(t *testing.T) {
	rec := &mockReclaimer{evictErr: errors.New("locked")}
	p := NewPopularityPolicy(rec, zap.NewNop())

	if err := p.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestPopularityPolicy_CustomHorizons(t *testing.T) {
	rec := &mockReclaimer{}
	p := NewPopularityPolicy(rec, zap.NewNop()).WithHorizons(2*time.Hour, 72*time.Hour)

	_ = p.RunOnce(context.Background())
	if rec.gotDegradeAge != 2*time.Hour || rec.gotEvictAge != 72*time.Hour {
		t.Errorf("horizons = (%v, %v)", rec.gotDegradeAge, rec.gotEvictAge)
	}
}

// --- ExpiryPolicy tests ---

func TestExpiryPolicy(t *testing.T) {
	pruner := &mockPruner{pruned: 5}
	p := NewExpiryPolicy(pruner, 48*time.Hour, zap.NewNop())

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pruner.gotHorizon != 48*time.Hour {
		t.Errorf("horizon = %v, want 48h", pruner.gotHorizon)
	}
	if p.Name() != "expiry" {
		t.Errorf("name = %q", p.Name())
	}
}

func TestExpiryPolicy_DefaultHorizon(t *testing.T) {
	pruner := &mockPruner{}
	p := NewExpiryPolicy(pruner, 0, zap.NewNop())

	_ = p.RunOnce(context.Background())
	if pruner.gotHorizon != 7*24*time.Hour {
		t.Errorf("default horizon = %v, want 168h", pruner.gotHorizon)
	}
}

// --- Engine tests ---

func TestEngine_RunsOnTickerAndStopsOnCancel(t *testing.T) {
	policy := &mockPolicy{}
	e := NewEngine(policy, 10*time.Millisecond, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for policy.runCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("engine never ticked")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}

func TestEngine_AbsorbsPolicyErrors(t *testing.T) {
	policy := &mockPolicy{err: errors.New("flaky")}
	e := NewEngine(policy, 5*time.Millisecond, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for policy.runCount() < 3 {
		select {
		case <-deadline:
			t.Fatal("engine stopped ticking after errors")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	cancel()
	<-done
}
