package fractal

import (
	"errors"
	"testing"

	"github.com/gekko3d/fractal/asset"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedBatch struct {
	level    int
	count    int
	scale    float32
	bounds   Bounds
	mesh     asset.Mesh
	matrices []mgl32.Mat4
}

type recordingRenderer struct {
	batches []recordedBatch
	err     error
}

func (r *recordingRenderer) DrawInstanced(batch DrawBatch) error {
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, recordedBatch{
		level:    batch.Level,
		count:    batch.Count,
		scale:    batch.Scale,
		bounds:   batch.Bounds,
		mesh:     batch.Mesh,
		matrices: append([]mgl32.Mat4(nil), batch.Matrices...),
	})
	return nil
}

type failingAllocator struct {
	*HostAllocator
	failAt int
}

func (a *failingAllocator) Allocate(level, count int) (InstanceBuffer, error) {
	if level == a.failAt {
		return nil, errors.New("out of buffers")
	}
	return a.HostAllocator.Allocate(level, count)
}

type countingLogger struct {
	debug  bool
	debugs int
}

func (l *countingLogger) DebugEnabled() bool                { return l.debug }
func (l *countingLogger) Debugf(format string, args ...any) { l.debugs++ }

func levelSizes(f *Fractal) []int {
	var sizes []int
	for _, b := range f.Buffers() {
		sizes = append(sizes, len(b.Matrices()))
	}
	return sizes
}

func TestNew_AllocatesOneBufferPerLevel(t *testing.T) {
	alloc := NewHostAllocator()
	f, err := New(Config{Depth: 4}, WithAllocator(alloc))
	require.NoError(t, err)

	assert.Equal(t, 4, f.Depth())
	assert.Equal(t, 4, alloc.Live())
	assert.Equal(t, []int{1, 5, 25, 125}, levelSizes(f))
	for l, b := range f.Buffers() {
		assert.Equal(t, l, b.Level())
		assert.Len(t, f.Store().Level(l), len(b.Matrices()))
	}
}

func TestNew_RejectsInvalidDepth(t *testing.T) {
	alloc := NewHostAllocator()

	_, err := New(Config{Depth: 0}, WithAllocator(alloc))
	assert.ErrorIs(t, err, ErrDepthTooSmall)

	_, err = New(Config{Depth: 9}, WithAllocator(alloc))
	assert.ErrorIs(t, err, ErrDepthTooLarge)

	assert.Equal(t, 0, alloc.Live())
}

func TestFractal_RebuildReleasesOldArrays(t *testing.T) {
	alloc := NewHostAllocator()
	f, err := New(Config{Depth: 3}, WithAllocator(alloc))
	require.NoError(t, err)

	require.NoError(t, f.Update(1.0/60, IdentityRoot()))
	old := f.Buffers()
	assert.Equal(t, 3, alloc.Live())

	require.NoError(t, f.Rebuild(5))

	assert.Equal(t, 5, alloc.Live(), "old buffers must be released before new ones are counted")
	assert.Equal(t, []int{1, 5, 25, 125, 625}, levelSizes(f))
	assert.Equal(t, 5, f.Config().Depth)
	assert.Equal(t, uint64(0), f.Frames())
	for _, b := range old {
		assert.Nil(t, b.Matrices(), "released buffer should drop its matrices")
	}

	// Fresh hierarchy: spin starts from zero again.
	assert.Equal(t, float32(0), f.Store().Root().SpinAngle)
	require.NoError(t, f.Update(1.0/60, IdentityRoot()))
}

func TestFractal_ReleaseIsIdempotent(t *testing.T) {
	alloc := NewHostAllocator()
	f, err := New(Config{Depth: 5}, WithAllocator(alloc))
	require.NoError(t, err)

	f.Release()
	f.Release()

	assert.Equal(t, 0, alloc.Live())
	assert.False(t, f.Allocated())
	assert.Equal(t, 0, f.Depth())
	assert.ErrorIs(t, f.Update(0.1, IdentityRoot()), ErrReleased)
	assert.ErrorIs(t, f.Draw(&recordingRenderer{}), ErrReleased)
}

func TestFractal_RebuildFailureLeavesNothingAllocated(t *testing.T) {
	alloc := &failingAllocator{HostAllocator: NewHostAllocator(), failAt: 99}
	f, err := New(Config{Depth: 3}, WithAllocator(alloc))
	require.NoError(t, err)

	alloc.failAt = 3
	err = f.Rebuild(5)
	require.Error(t, err)

	assert.Equal(t, 0, alloc.Live())
	assert.False(t, f.Allocated())
}

func TestFractal_SetConfig(t *testing.T) {
	alloc := NewHostAllocator()
	server := asset.NewServer()
	f, err := New(Config{Depth: 2}, WithAllocator(alloc))
	require.NoError(t, err)
	store := f.Store()

	vertices, indices := asset.UnitCube()
	mesh := server.LoadMesh("cube", vertices, indices)
	require.NoError(t, f.SetConfig(Config{Depth: 2, Mesh: mesh}))
	assert.Same(t, store, f.Store(), "same depth must not rebuild")
	assert.Equal(t, mesh, f.Config().Mesh)

	assert.ErrorIs(t, f.SetConfig(Config{Depth: 12}), ErrDepthTooLarge)
	assert.Same(t, store, f.Store(), "rejected config must not touch the arrays")

	require.NoError(t, f.SetConfig(Config{Depth: 3, Mesh: mesh}))
	assert.NotSame(t, store, f.Store())
	assert.Equal(t, 3, alloc.Live())

	f.Release()
	require.NoError(t, f.SetConfig(Config{Depth: 3}))
	assert.True(t, f.Allocated())
}

func TestFractal_DrawHandsOffEveryLevel(t *testing.T) {
	server := asset.NewServer()
	vertices, indices := asset.UnitCube()
	mesh := server.LoadMesh("cube", vertices, indices)
	pool := NewPoolScheduler(2)
	defer pool.Close()
	f, err := New(Config{Depth: 3, Mesh: mesh}, WithScheduler(pool), WithBatchSize(4))
	require.NoError(t, err)

	root := Root{Position: mgl32.Vec3{1, 1, 1}, Rotation: mgl32.QuatIdent(), Scale: 4}
	require.NoError(t, f.Update(0.2, root))

	r := &recordingRenderer{}
	require.NoError(t, f.Draw(r))
	require.Len(t, r.batches, 3)

	for l, b := range r.batches {
		assert.Equal(t, l, b.level)
		assert.Equal(t, LevelSize(l), b.count)
		assert.Len(t, b.matrices, b.count)
		assert.Equal(t, LevelScale(4, l), b.scale)
		assert.Equal(t, Bounds{Center: mgl32.Vec3{1, 1, 1}, HalfExtent: 6}, b.bounds)
		assert.Equal(t, mesh, b.mesh)
		assert.Equal(t, f.Buffers()[l].Matrices(), b.matrices)
	}

	r.err = errors.New("device lost")
	assert.Error(t, f.Draw(r))
}

func TestFractal_DrawWaitsForUpdate(t *testing.T) {
	f, err := New(Config{Depth: 2})
	require.NoError(t, err)

	r := &recordingRenderer{}
	assert.ErrorIs(t, f.Draw(r), ErrNotUpdated)
	assert.Empty(t, r.batches)

	require.NoError(t, f.Update(0.1, IdentityRoot()))
	require.NoError(t, f.Draw(r))
	assert.Len(t, r.batches, 2)

	// A rebuild starts over with zeroed matrices.
	require.NoError(t, f.Rebuild(3))
	r.batches = nil
	assert.ErrorIs(t, f.Draw(r), ErrNotUpdated)
	assert.Empty(t, r.batches)
}

func TestFractal_DebugLogging(t *testing.T) {
	logger := &countingLogger{debug: true}
	f, err := New(Config{Depth: 2}, WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, f.Update(0.1, IdentityRoot()))

	// One line for the build, one for the frame.
	assert.Equal(t, 2, logger.debugs)
}

func TestBounds_MinMax(t *testing.T) {
	b := Bounds{Center: mgl32.Vec3{1, 2, 3}, HalfExtent: 1.5}
	assert.Equal(t, mgl32.Vec3{-0.5, 0.5, 1.5}, b.Min())
	assert.Equal(t, mgl32.Vec3{2.5, 3.5, 4.5}, b.Max())
}
