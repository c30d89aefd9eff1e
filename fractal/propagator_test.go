package fractal

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-4

func makeOutput(store *Store) [][]mgl32.Mat4 {
	out := make([][]mgl32.Mat4, store.Depth())
	for l := range out {
		out[l] = make([]mgl32.Mat4, len(store.Level(l)))
	}
	return out
}

func cloneOutput(out [][]mgl32.Mat4) [][]mgl32.Mat4 {
	res := make([][]mgl32.Mat4, len(out))
	for l := range out {
		res[l] = append([]mgl32.Mat4(nil), out[l]...)
	}
	return res
}

func testRoot() Root {
	return Root{
		Position: mgl32.Vec3{2, -1, 4},
		Rotation: mgl32.QuatRotate(0.7, mgl32.Vec3{1, 2, 3}.Normalize()),
		Scale:    2,
	}
}

func TestPropagate_ZeroDtIsIdempotent(t *testing.T) {
	store, err := Build(4)
	require.NoError(t, err)
	out := makeOutput(store)
	p := NewPropagator(SequentialScheduler{}, 0)

	// Advance once so spin angles are non-zero.
	p.Propagate(store, out, 0.25, testRoot())

	p.Propagate(store, out, 0, testRoot())
	first := cloneOutput(out)
	p.Propagate(store, out, 0, testRoot())

	for l := range out {
		for i := range out[l] {
			if out[l][i] != first[l][i] {
				t.Fatalf("level %d instance %d changed with dt=0: %v -> %v", l, i, first[l][i], out[l][i])
			}
		}
	}
}

func TestPropagate_SpinIncreasesByRate(t *testing.T) {
	store, err := Build(3)
	require.NoError(t, err)
	out := makeOutput(store)
	p := NewPropagator(SequentialScheduler{}, 0)

	dts := []float32{1.0 / 60, 1.0 / 30, 0.5}
	for _, dt := range dts {
		before := make([][]float32, store.Depth())
		for l := range before {
			for _, part := range store.Level(l) {
				before[l] = append(before[l], part.SpinAngle)
			}
		}

		p.Propagate(store, out, dt, IdentityRoot())

		delta := SpinRate * dt
		for l := range before {
			for i, part := range store.Level(l) {
				if part.SpinAngle <= before[l][i] {
					t.Fatalf("level %d part %d: spin did not increase (%v -> %v)", l, i, before[l][i], part.SpinAngle)
				}
				if part.SpinAngle != before[l][i]+delta {
					t.Fatalf("level %d part %d: spin %v, expected %v", l, i, part.SpinAngle, before[l][i]+delta)
				}
			}
		}
	}
}

func TestPropagate_ScaleLaw(t *testing.T) {
	store, err := Build(5)
	require.NoError(t, err)
	out := makeOutput(store)
	p := NewPropagator(SequentialScheduler{}, 0)
	root := testRoot()

	p.Propagate(store, out, 0.1, root)

	for l := range out {
		expected := root.Scale * float32(math.Pow(0.5, float64(l)))
		assert.Equal(t, expected, LevelScale(root.Scale, l))
		for i, m := range out[l] {
			for c := 0; c < 3; c++ {
				col := m.Col(c).Vec3().Len()
				if math.Abs(float64(col-expected)) > tolerance*float64(expected) {
					t.Fatalf("level %d instance %d: column %d length %v, expected %v", l, i, c, col, expected)
				}
			}
		}
	}
}

func TestPropagate_PositionLaw(t *testing.T) {
	store, err := Build(5)
	require.NoError(t, err)
	out := makeOutput(store)
	p := NewPropagator(SequentialScheduler{}, 0)
	root := testRoot()

	for frame := 0; frame < 3; frame++ {
		p.Propagate(store, out, 1.0/60, root)

		assert.Equal(t, root.Position, store.Root().WorldPosition)
		for l := 1; l < store.Depth(); l++ {
			scale := LevelScale(root.Scale, l)
			parents := store.Level(l - 1)
			for i, part := range store.Level(l) {
				parent := parents[ParentIndex(i)]
				expected := parent.WorldPosition.Add(parent.WorldRotation.Rotate(part.Direction().Mul(1.5 * scale)))
				if d := part.WorldPosition.Sub(expected).Len(); d > tolerance {
					t.Fatalf("frame %d level %d part %d: off by %v", frame, l, i, d)
				}

				translation := out[l][i].Col(3).Vec3()
				if translation != part.WorldPosition {
					t.Fatalf("frame %d level %d part %d: matrix translation %v, expected %v", frame, l, i, translation, part.WorldPosition)
				}
			}
		}
	}
}

func TestPropagate_RotationOrder(t *testing.T) {
	store, err := Build(2)
	require.NoError(t, err)
	out := makeOutput(store)
	p := NewPropagator(SequentialScheduler{}, 0)
	root := testRoot()

	p.Propagate(store, out, 0.4, root)

	rootPart := store.Root()
	for i, part := range store.Level(1) {
		expected := rootPart.WorldRotation.Mul(part.LocalRotation().Mul(mgl32.QuatRotate(part.SpinAngle, mgl32.Vec3{0, 1, 0})))
		if !part.WorldRotation.ApproxEqualThreshold(expected, 1e-5) {
			t.Errorf("part %d: rotation %v, expected %v", i, part.WorldRotation, expected)
		}
		reversed := mgl32.QuatRotate(part.SpinAngle, mgl32.Vec3{0, 1, 0}).Mul(part.LocalRotation()).Mul(rootPart.WorldRotation)
		if i > 0 && part.WorldRotation.ApproxEqualThreshold(reversed, 1e-5) {
			t.Errorf("part %d: rotation should not match reversed composition", i)
		}
	}
}

func TestPropagate_ParallelMatchesSequential(t *testing.T) {
	seqStore, err := Build(6)
	require.NoError(t, err)
	parStore, err := Build(6)
	require.NoError(t, err)

	seqOut := makeOutput(seqStore)
	parOut := makeOutput(parStore)

	seq := NewPropagator(SequentialScheduler{}, 0)
	pool := NewPoolScheduler(4)
	defer pool.Close()
	par := NewPropagator(pool, 7)

	root := testRoot()
	for frame := 0; frame < 4; frame++ {
		b1 := seq.Propagate(seqStore, seqOut, 1.0/60, root)
		b2 := par.Propagate(parStore, parOut, 1.0/60, root)
		assert.Equal(t, b1, b2)
	}

	for l := range seqOut {
		for i := range seqOut[l] {
			if !seqOut[l][i].ApproxEqualThreshold(parOut[l][i], 1e-5) {
				t.Fatalf("level %d instance %d differs: %v vs %v", l, i, seqOut[l][i], parOut[l][i])
			}
		}
	}
}

func TestPropagate_DepthOneEndToEnd(t *testing.T) {
	store, err := Build(1)
	require.NoError(t, err)
	out := makeOutput(store)
	p := NewPropagator(SequentialScheduler{}, 0)

	var bounds Bounds
	for _, dt := range []float32{0, 1.0 / 60, 1.0 / 60} {
		bounds = p.Propagate(store, out, dt, IdentityRoot())
	}

	expectedSpin := SpinRate*0 + SpinRate*(1.0/60) + SpinRate*(1.0/60)
	assert.InDelta(t, 2*SpinRate*(1.0/60), store.Root().SpinAngle, 1e-7)
	assert.InDelta(t, expectedSpin, store.Root().SpinAngle, 1e-7)

	m := out[0][0]
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, m.Col(3).Vec3())
	for c := 0; c < 3; c++ {
		assert.InDelta(t, 1.0, m.Col(c).Vec3().Len(), tolerance)
	}

	expected := mgl32.QuatIdent().Mul(mgl32.QuatRotate(store.Root().SpinAngle, mgl32.Vec3{0, 1, 0})).Mat4()
	assert.True(t, m.ApproxEqualThreshold(expected, 1e-6), "got %v, expected %v", m, expected)

	assert.Equal(t, Bounds{HalfExtent: 1.5}, bounds)
}

func TestPropagate_PanicsOnShapeMismatch(t *testing.T) {
	store, err := Build(3)
	require.NoError(t, err)
	p := NewPropagator(nil, 0)

	assert.Panics(t, func() {
		p.Propagate(store, make([][]mgl32.Mat4, 2), 0, IdentityRoot())
	})
}

func TestInstanceMatrix_Compose(t *testing.T) {
	pos := mgl32.Vec3{1, 2, 3}
	rot := mgl32.QuatRotate(1.1, mgl32.Vec3{0, 1, 0})
	var scale float32 = 0.25

	expected := mgl32.Translate3D(1, 2, 3).Mul4(rot.Mat4()).Mul4(mgl32.Scale3D(scale, scale, scale))
	assert.True(t, instanceMatrix(pos, rot, scale).ApproxEqualThreshold(expected, 1e-6))
}
