// Package gpu backs fractal instance buffers with WebGPU storage buffers.
package gpu

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/fractal/fractal"
	"github.com/go-gl/mathgl/mgl32"
)

// MatrixStride is the size in bytes of one instance matrix on the GPU.
const MatrixStride = uint64(unsafe.Sizeof(mgl32.Mat4{}))

// Allocator creates one storage buffer per fractal level. Matrices are
// staged on the host and uploaded with Queue.WriteBuffer on Commit.
type Allocator struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	usage  wgpu.BufferUsage
	live   atomic.Int64

	// set when the allocator created the device itself
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
}

var _ fractal.BufferAllocator = (*Allocator)(nil)

// NewAllocator uses an existing device, e.g. the renderer's.
func NewAllocator(device *wgpu.Device) *Allocator {
	return &Allocator{
		device: device,
		queue:  device.GetQueue(),
		usage:  wgpu.BufferUsageStorage | wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	}
}

// NewHeadless requests an adapter and device without a surface.
func NewHeadless() (*Allocator, error) {
	instance := wgpu.CreateInstance(nil)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Fractal Instances Device",
	})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}

	a := NewAllocator(device)
	a.instance = instance
	a.adapter = adapter
	return a, nil
}

func (a *Allocator) Allocate(level, count int) (fractal.InstanceBuffer, error) {
	if count <= 0 {
		return nil, fmt.Errorf("gpu allocator: level %d: invalid instance count %d", level, count)
	}

	buffer, err := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: fmt.Sprintf("Fractal Level %d Instances", level),
		Size:  uint64(count) * MatrixStride,
		Usage: a.usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu allocator: level %d: %w", level, err)
	}

	a.live.Add(1)
	return &instanceBuffer{
		owner:    a,
		level:    level,
		buffer:   buffer,
		matrices: make([]mgl32.Mat4, count),
	}, nil
}

func (a *Allocator) Live() int { return int(a.live.Load()) }

// Release drops the device if NewHeadless created it. Buffers must be
// released first.
func (a *Allocator) Release() {
	if a.instance == nil {
		return
	}
	a.queue.Release()
	a.device.Release()
	a.adapter.Release()
	a.instance.Release()
	a.instance = nil
}

// DeviceBuffer is an instance buffer backed by GPU memory. Renderers assert
// DrawBatch.Buffer to it to bind the matrices for an instanced draw.
type DeviceBuffer interface {
	fractal.InstanceBuffer
	Buffer() *wgpu.Buffer
}

var _ DeviceBuffer = (*instanceBuffer)(nil)

type instanceBuffer struct {
	owner    *Allocator
	level    int
	buffer   *wgpu.Buffer
	matrices []mgl32.Mat4
}

func (b *instanceBuffer) Level() int             { return b.level }
func (b *instanceBuffer) Matrices() []mgl32.Mat4 { return b.matrices }

func (b *instanceBuffer) Buffer() *wgpu.Buffer { return b.buffer }

func (b *instanceBuffer) Commit() error {
	if b.buffer == nil {
		return fractal.ErrReleased
	}
	return b.owner.queue.WriteBuffer(b.buffer, 0, wgpu.ToBytes(b.matrices))
}

func (b *instanceBuffer) Release() {
	if b.buffer == nil {
		return
	}
	b.buffer.Release()
	b.buffer = nil
	b.matrices = nil
	b.owner.live.Add(-1)
}
