package workers

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := NewPool(zap.NewNop(), Config{Name: "test", NumWorkers: 4, QueueSize: 64})
	p.Start()
	defer p.Stop()

	var ran atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		if err := p.SubmitFunc(func() error {
			defer wg.Done()
			ran.Add(1)
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
	if ran.Load() != 50 {
		t.Fatalf("ran %d of 50 tasks", ran.Load())
	}
}

func TestPoolCountsFailures(t *testing.T) {
	p := NewPool(zap.NewNop(), Config{Name: "test", NumWorkers: 2, QueueSize: 8})
	p.Start()

	var wg sync.WaitGroup
	wg.Add(2)
	p.SubmitFunc(func() error { defer wg.Done(); return errors.New("boom") })
	p.SubmitFunc(func() error { defer wg.Done(); return nil })
	wg.Wait()
	p.Stop()

	_, completed, failed, _ := p.Stats()
	if completed != 2 || failed != 1 {
		t.Fatalf("completed=%d failed=%d", completed, failed)
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	p := NewPool(zap.NewNop(), Config{Name: "test", NumWorkers: 1, QueueSize: 8})
	p.Start()

	var wg sync.WaitGroup
	wg.Add(2)
	p.SubmitFunc(func() error { defer wg.Done(); panic("kaboom") })
	p.SubmitFunc(func() error { defer wg.Done(); return nil })
	wg.Wait()
	p.Stop()

	_, _, _, panicked := p.Stats()
	if panicked != 1 {
		t.Fatalf("panicked = %d", panicked)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	p := NewPool(zap.NewNop(), Config{Name: "test", NumWorkers: 1, QueueSize: 1})
	p.Start()
	p.Stop()
	if err := p.SubmitFunc(func() error { return nil }); err == nil {
		t.Fatal("expected error submitting to a stopped pool")
	}
}
