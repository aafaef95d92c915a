package analyzer

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewWorkerPool(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"explicit", 4, 4},
		{"zero uses cpus", 0, runtime.NumCPU()},
		{"negative uses cpus", -3, runtime.NumCPU()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewWorkerPool(tt.workers)
			if pool.workers != tt.want {
				t.Errorf("Expected %d workers, got %d", tt.want, pool.workers)
			}
			if cap(pool.jobQueue) != tt.want*2 {
				t.Errorf("Expected queue capacity %d, got %d", tt.want*2, cap(pool.jobQueue))
			}
		})
	}
}

func batchSources(t *testing.T) []SourceImage {
	t.Helper()
	sources := []SourceImage{
		NewSourceImage("gradient-96.png", encodePNG(t, gradientRGBA(96, 64))),
		NewSourceImage("checker.png", encodePNG(t, checkerboard(64, 64))),
		NewSourceImage("flat.png", encodePNG(t, solidGray(48, 48, 200))),
		NewSourceImage("gradient-40.png", encodePNG(t, gradientRGBA(40, 72))),
	}
	spliced := checkerboard(96, 96)
	fillBlock(spliced, 32, 32, 32, 255)
	return append(sources, NewSourceImage("spliced.png", encodePNG(t, spliced)))
}

// Results computed on the pool must match a sequential run item for item.
func TestWorkerPool_BatchMatchesSequential(t *testing.T) {
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	engine := NewEngine(nil, WithClock(func() time.Time { return fixed }))
	sources := batchSources(t)

	sequential := make([]*ForgeryAnalysis, len(sources))
	for i, src := range sources {
		result, err := engine.Analyze(context.Background(), src, DefaultOptions())
		if err != nil {
			t.Fatalf("sequential %s: %v", src.Name(), err)
		}
		sequential[i] = result
	}

	pool := NewWorkerPool(3)
	pool.Start()
	defer pool.Close()

	pooled := make([]*ForgeryAnalysis, len(sources))
	errs := make([]error, len(sources))
	for i, src := range sources {
		if !pool.Submit(func() {
			pooled[i], errs[i] = engine.Analyze(context.Background(), src, DefaultOptions())
		}) {
			t.Fatal("Submit rejected on an open pool")
		}
	}
	pool.Wait()

	for i, src := range sources {
		if errs[i] != nil {
			t.Fatalf("pooled %s: %v", src.Name(), errs[i])
		}
		if pooled[i].ForgeryScore != sequential[i].ForgeryScore || pooled[i].RiskTier != sequential[i].RiskTier {
			t.Errorf("%s: pooled score %f (%s), sequential %f (%s)", src.Name(),
				pooled[i].ForgeryScore, pooled[i].RiskTier, sequential[i].ForgeryScore, sequential[i].RiskTier)
		}
		if len(pooled[i].SuspiciousAreas) != len(sequential[i].SuspiciousAreas) {
			t.Errorf("%s: pooled %d areas, sequential %d", src.Name(),
				len(pooled[i].SuspiciousAreas), len(sequential[i].SuspiciousAreas))
		}
	}

	stats := pool.GetStats()
	if stats.TotalJobs != int64(len(sources)) || stats.CompletedJobs != int64(len(sources)) {
		t.Errorf("Unexpected stats after batch: %+v", stats)
	}
	if stats.ActiveWorkers != 0 {
		t.Errorf("Expected no active workers after Wait, got %d", stats.ActiveWorkers)
	}
}

// A failing item must not stop its neighbours.
func TestWorkerPool_BatchIsolatesFailures(t *testing.T) {
	engine := NewEngine(nil)
	sources := []SourceImage{
		NewSourceImage("ok.png", encodePNG(t, gradientRGBA(64, 64))),
		NewSourceImage("corrupt.jpg", []byte("\xff\xd8 truncated")),
		NewSourceImage("ok-2.png", encodePNG(t, checkerboard(64, 64))),
	}

	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	errs := make([]error, len(sources))
	for i, src := range sources {
		pool.Submit(func() {
			_, errs[i] = engine.Analyze(context.Background(), src, DefaultOptions())
		})
	}
	pool.Wait()

	if errs[0] != nil || errs[2] != nil {
		t.Errorf("Expected valid images to succeed, got %v and %v", errs[0], errs[2])
	}
	if errs[1] == nil {
		t.Error("Expected the corrupt image to fail")
	}
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	const workers = 2
	pool := NewWorkerPool(workers)
	pool.Start()
	defer pool.Close()

	var running, peak atomic.Int64
	var peakActive atomic.Int64
	for i := 0; i < 8; i++ {
		pool.Submit(func() {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			if a := pool.GetStats().ActiveWorkers; a > peakActive.Load() {
				peakActive.Store(a)
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		})
	}
	pool.Wait()

	if peak.Load() > workers {
		t.Errorf("Expected at most %d concurrent analyses, saw %d", workers, peak.Load())
	}
	if peakActive.Load() > workers {
		t.Errorf("Expected ActiveWorkers <= %d, saw %d", workers, peakActive.Load())
	}
}

func TestWorkerPool_StartOnce(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	pool.Start()
	defer pool.Close()

	var running, peak atomic.Int64
	for i := 0; i < 4; i++ {
		pool.Submit(func() {
			if n := running.Add(1); n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
		})
	}
	pool.Wait()

	if peak.Load() != 1 {
		t.Errorf("Expected a second Start to add no workers, saw %d concurrent jobs", peak.Load())
	}
}

func TestWorkerPool_CloseDrainsAndRejects(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()

	var done atomic.Int64
	for i := 0; i < 5; i++ {
		pool.Submit(func() {
			time.Sleep(time.Millisecond)
			done.Add(1)
		})
	}
	pool.Close()
	pool.Wait()

	if done.Load() != 5 {
		t.Errorf("Expected queued jobs to finish after Close, got %d of 5", done.Load())
	}
	if pool.Submit(func() {}) {
		t.Error("Expected Submit to be rejected after Close")
	}
	pool.Close()
}

func TestWorkerPool_ConcurrentSubmitAndClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()

	var accepted, ran atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if pool.Submit(func() { ran.Add(1) }) {
				accepted.Add(1)
			}
		}()
	}
	closed := make(chan struct{})
	go func() {
		pool.Close()
		close(closed)
	}()
	wg.Wait()
	<-closed
	pool.Wait()

	if ran.Load() != accepted.Load() {
		t.Errorf("Expected every accepted job to run, accepted %d ran %d", accepted.Load(), ran.Load())
	}
	if stats := pool.GetStats(); stats.TotalJobs != accepted.Load() {
		t.Errorf("Expected TotalJobs=%d, got %d", accepted.Load(), stats.TotalJobs)
	}
}
