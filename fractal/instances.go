package fractal

import (
	"fmt"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// InstanceBuffer holds the instance matrices of one level. The propagator
// writes Matrices every frame; Commit publishes them to the backing store.
type InstanceBuffer interface {
	Level() int
	Matrices() []mgl32.Mat4
	Commit() error
	Release()
}

// BufferAllocator creates the per-level instance buffers of a fractal.
type BufferAllocator interface {
	Allocate(level, count int) (InstanceBuffer, error)
	// Live reports the number of buffers allocated and not yet released.
	Live() int
}

// HostAllocator keeps instance matrices in process memory.
type HostAllocator struct {
	live atomic.Int64
}

func NewHostAllocator() *HostAllocator {
	return &HostAllocator{}
}

func (a *HostAllocator) Allocate(level, count int) (InstanceBuffer, error) {
	if count <= 0 {
		return nil, fmt.Errorf("host allocator: level %d: invalid instance count %d", level, count)
	}
	a.live.Add(1)
	return &hostBuffer{
		owner:    a,
		level:    level,
		matrices: make([]mgl32.Mat4, count),
	}, nil
}

func (a *HostAllocator) Live() int { return int(a.live.Load()) }

type hostBuffer struct {
	owner    *HostAllocator
	level    int
	matrices []mgl32.Mat4
	released bool
}

func (b *hostBuffer) Level() int             { return b.level }
func (b *hostBuffer) Matrices() []mgl32.Mat4 { return b.matrices }
func (b *hostBuffer) Commit() error          { return nil }

func (b *hostBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.matrices = nil
	b.owner.live.Add(-1)
}
