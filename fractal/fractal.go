package fractal

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrReleased = errors.New("fractal released")
	// ErrNotUpdated is returned by Draw until Update has run on the current
	// arrays, whose matrices are still zero.
	ErrNotUpdated = errors.New("fractal not updated since build")
)

// Logger is the subset of the engine logger used by the fractal.
type Logger interface {
	DebugEnabled() bool
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) DebugEnabled() bool                { return false }
func (nopLogger) Debugf(format string, args ...any) {}

type Option func(*Fractal)

func WithScheduler(s Scheduler) Option {
	return func(f *Fractal) { f.scheduler = s }
}

func WithBatchSize(n int) Option {
	return func(f *Fractal) { f.batch = n }
}

func WithAllocator(a BufferAllocator) Option {
	return func(f *Fractal) { f.allocator = a }
}

func WithLogger(l Logger) Option {
	return func(f *Fractal) { f.logger = l }
}

// Fractal owns a part store and one instance buffer per level. Both are
// allocated together on Rebuild and released together on Release.
type Fractal struct {
	config     Config
	store      *Store
	buffers    []InstanceBuffer
	matrices   [][]mgl32.Mat4
	root       Root
	bounds     Bounds
	frames     uint64
	scheduler  Scheduler
	batch      int
	propagator *Propagator
	allocator  BufferAllocator
	logger     Logger
}

// New validates config and builds the fractal hierarchy.
func New(config Config, options ...Option) (*Fractal, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	f := &Fractal{
		config:    config,
		root:      IdentityRoot(),
		scheduler: SequentialScheduler{},
		logger:    nopLogger{},
	}
	for _, option := range options {
		option(f)
	}
	if f.allocator == nil {
		f.allocator = NewHostAllocator()
	}
	f.propagator = NewPropagator(f.scheduler, f.batch)

	if err := f.Rebuild(config.Depth); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fractal) Config() Config            { return f.config }
func (f *Fractal) Store() *Store             { return f.store }
func (f *Fractal) Bounds() Bounds            { return f.bounds }
func (f *Fractal) Frames() uint64            { return f.frames }
func (f *Fractal) Allocated() bool           { return f.store != nil }
func (f *Fractal) Buffers() []InstanceBuffer { return f.buffers }

// Depth returns the number of allocated levels, 0 once released.
func (f *Fractal) Depth() int {
	if f.store == nil {
		return 0
	}
	return f.store.Depth()
}

// SetConfig applies a new configuration, rebuilding when the depth changes
// or the fractal was released. An invalid config leaves the fractal as is.
func (f *Fractal) SetConfig(config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	rebuild := config.Depth != f.config.Depth || !f.Allocated()
	f.config = config
	if rebuild {
		return f.Rebuild(config.Depth)
	}
	return nil
}

// Rebuild releases the current arrays and allocates new ones for depth.
// On allocation failure the fractal is left released.
func (f *Fractal) Rebuild(depth int) error {
	if err := validateDepth(depth); err != nil {
		return err
	}

	f.Release()

	store, err := Build(depth)
	if err != nil {
		return err
	}

	buffers := make([]InstanceBuffer, 0, depth)
	matrices := make([][]mgl32.Mat4, 0, depth)
	for l := range depth {
		buf, err := f.allocator.Allocate(l, LevelSize(l))
		if err != nil {
			for _, b := range buffers {
				b.Release()
			}
			return fmt.Errorf("allocate level %d: %w", l, err)
		}
		if n := len(buf.Matrices()); n != LevelSize(l) {
			buf.Release()
			for _, b := range buffers {
				b.Release()
			}
			return fmt.Errorf("allocate level %d: got %d matrices, want %d", l, n, LevelSize(l))
		}
		buffers = append(buffers, buf)
		matrices = append(matrices, buf.Matrices())
	}

	f.config.Depth = depth
	f.store = store
	f.buffers = buffers
	f.matrices = matrices
	f.frames = 0
	f.logger.Debugf("fractal: built depth %d, %d parts in %d buffers", depth, store.Len(), len(buffers))
	return nil
}

// Release frees every level's buffer and the part store. Safe to call more
// than once.
func (f *Fractal) Release() {
	if f.store == nil && f.buffers == nil {
		return
	}
	for _, b := range f.buffers {
		b.Release()
	}
	f.buffers = nil
	f.matrices = nil
	f.store = nil
}

// Update advances the fractal by dt seconds under root and commits every
// level's instance buffer.
func (f *Fractal) Update(dt float32, root Root) error {
	if f.store == nil {
		return ErrReleased
	}

	var start time.Time
	debug := f.logger.DebugEnabled()
	if debug {
		start = time.Now()
	}

	f.root = root
	f.bounds = f.propagator.Propagate(f.store, f.matrices, dt, root)
	f.frames++

	for _, b := range f.buffers {
		if err := b.Commit(); err != nil {
			return fmt.Errorf("commit level %d: %w", b.Level(), err)
		}
	}

	if debug {
		f.logger.Debugf("fractal: frame %d, %d parts in %v", f.frames, f.store.Len(), time.Since(start))
	}
	return nil
}

// Draw hands every level to r as one instanced batch, root level first.
func (f *Fractal) Draw(r Renderer) error {
	if f.store == nil {
		return ErrReleased
	}
	if f.frames == 0 {
		return ErrNotUpdated
	}
	for l, buf := range f.buffers {
		batch := DrawBatch{
			Level:    l,
			Matrices: f.matrices[l],
			Count:    len(f.matrices[l]),
			Scale:    LevelScale(f.root.Scale, l),
			Mesh:     f.config.Mesh,
			Material: f.config.Material,
			Bounds:   f.bounds,
			Buffer:   buf,
		}
		if err := r.DrawInstanced(batch); err != nil {
			return fmt.Errorf("draw level %d: %w", l, err)
		}
	}
	return nil
}
