package fractal

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func checkCoverage(t *testing.T, s Scheduler, n, batch int) {
	t.Helper()

	hits := make([]atomic.Int32, n)
	s.ParallelFor(n, batch, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			hits[i].Add(1)
		}
	})

	for i := range hits {
		if got := hits[i].Load(); got != 1 {
			t.Fatalf("index %d visited %d times", i, got)
		}
	}
}

func TestSequentialScheduler_CoversRange(t *testing.T) {
	checkCoverage(t, SequentialScheduler{}, 0, 5)
	checkCoverage(t, SequentialScheduler{}, 1, 5)
	checkCoverage(t, SequentialScheduler{}, 625, 7)
	checkCoverage(t, SequentialScheduler{}, 625, 0)
}

func TestSequentialScheduler_BatchSize(t *testing.T) {
	var sizes []int
	SequentialScheduler{}.ParallelFor(12, 5, func(lo, hi int) {
		sizes = append(sizes, hi-lo)
	})
	assert.Equal(t, []int{5, 5, 2}, sizes)
}

func TestPoolScheduler_CoversRange(t *testing.T) {
	s := NewPoolScheduler(3)
	defer s.Close()
	assert.Equal(t, 3, s.Workers())

	checkCoverage(t, s, 0, 5)
	checkCoverage(t, s, 5, 5)
	checkCoverage(t, s, 3125, 64)
	// More batches than the pool's queue holds.
	checkCoverage(t, s, 3125, 1)
}

func TestPoolScheduler_ClampsTaskCount(t *testing.T) {
	s := NewPoolScheduler(2)
	defer s.Close()

	var tasks atomic.Int32
	s.ParallelFor(78125, 1, func(lo, hi int) {
		tasks.Add(1)
	})
	assert.LessOrEqual(t, int(tasks.Load()), poolQueueSize)
}

func TestPoolScheduler_DefaultWorkers(t *testing.T) {
	s := NewPoolScheduler(0)
	defer s.Close()
	assert.GreaterOrEqual(t, s.Workers(), 1)
}

func TestPoolScheduler_Barrier(t *testing.T) {
	s := NewPoolScheduler(4)
	defer s.Close()

	var done atomic.Int64
	for level := 0; level < 5; level++ {
		n := LevelSize(level)
		before := done.Load()
		s.ParallelFor(n, 3, func(lo, hi int) {
			done.Add(int64(hi - lo))
		})
		// Every batch of this level is finished when ParallelFor returns.
		assert.Equal(t, before+int64(n), done.Load())
	}
}

func TestPoolScheduler_CloseStopsWorkers(t *testing.T) {
	before := runtime.NumGoroutine()

	pools := make([]*PoolScheduler, 5)
	for i := range pools {
		pools[i] = NewPoolScheduler(4)
		checkCoverage(t, pools[i], 625, 8)
	}
	assert.GreaterOrEqual(t, runtime.NumGoroutine(), before+len(pools)*4)

	for _, s := range pools {
		s.Close()
		s.Close()
	}
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond)

	// Closed schedulers still cover the range, inline.
	checkCoverage(t, pools[0], 625, 8)
}
