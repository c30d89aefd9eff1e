package fractal

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// DefaultBatchSize is the number of parts handled by one scheduled task.
const DefaultBatchSize = 125

// poolQueueSize bounds the tasks submitted per ParallelFor call.
const poolQueueSize = 256

// Scheduler runs fn over [0, n) split into batches of at most batch items.
// ParallelFor must not return before every batch has finished.
type Scheduler interface {
	ParallelFor(n, batch int, fn func(lo, hi int))
}

// SequentialScheduler runs every batch on the calling goroutine.
type SequentialScheduler struct{}

func (SequentialScheduler) ParallelFor(n, batch int, fn func(lo, hi int)) {
	if batch <= 0 {
		batch = n
	}
	for lo := 0; lo < n; lo += batch {
		fn(lo, min(lo+batch, n))
	}
}

// PoolScheduler fans batches out to a persistent worker pool. Workers are
// reused across frames; a WaitGroup per call is the barrier since the pool's
// own Wait blocks until workers idle out. Close must be called to stop the
// workers, they never idle out on their own.
type PoolScheduler struct {
	pool    worker.DynamicWorkerPool
	workers int

	mu     sync.RWMutex
	closed bool
}

// NewPoolScheduler creates a scheduler backed by a dynamic worker pool.
// workers <= 0 selects max(NumCPU-1, 1).
func NewPoolScheduler(workers int) *PoolScheduler {
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 1)
	}
	workers = min(workers, poolQueueSize)
	return &PoolScheduler{
		pool:    worker.NewDynamicWorkerPool(workers, poolQueueSize, 1*time.Second),
		workers: workers,
	}
}

func (s *PoolScheduler) Workers() int { return s.workers }

// Close stops the pool's workers. It is safe to call more than once, and
// ParallelFor keeps working afterwards by running inline.
func (s *PoolScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	s.pool.Stop()
	// A stop signal picked up by the wrong worker is dropped, so Stop alone
	// can leave workers running. One exiting task per worker ends the rest.
	for id := range s.workers {
		s.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				runtime.Goexit()
				return nil, nil
			},
		})
	}
}

func (s *PoolScheduler) ParallelFor(n, batch int, fn func(lo, hi int)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		SequentialScheduler{}.ParallelFor(n, batch, fn)
		return
	}

	if batch <= 0 {
		batch = n
	}
	if tasks := (n + batch - 1) / batch; tasks > poolQueueSize {
		batch = (n + poolQueueSize - 1) / poolQueueSize
	}
	// Not worth a round trip through the pool.
	if n <= batch {
		if n > 0 {
			fn(0, n)
		}
		return
	}

	var wg sync.WaitGroup
	taskID := 0
	for lo := 0; lo < n; lo += batch {
		hi := min(lo+batch, n)
		wg.Add(1)
		start := lo
		s.pool.SubmitTask(worker.Task{
			ID: taskID,
			Do: func() (any, error) {
				defer wg.Done()
				fn(start, hi)
				return nil, nil
			},
		})
		taskID++
	}
	wg.Wait()
}
