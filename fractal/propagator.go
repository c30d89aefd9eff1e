package fractal

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Root is the external transform the whole fractal hangs from.
type Root struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    float32
}

func IdentityRoot() Root {
	return Root{Rotation: mgl32.QuatIdent(), Scale: 1}
}

// Propagator recomputes world transforms level by level. A level is only
// scheduled once its parent level has been fully written.
type Propagator struct {
	scheduler Scheduler
	batch     int
}

func NewPropagator(scheduler Scheduler, batch int) *Propagator {
	if scheduler == nil {
		scheduler = SequentialScheduler{}
	}
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Propagator{scheduler: scheduler, batch: batch}
}

// Propagate advances every part by dt seconds and writes one instance matrix
// per part into out, which must have the store's shape. It returns the
// bounds of the fractal for this frame.
func (p *Propagator) Propagate(store *Store, out [][]mgl32.Mat4, dt float32, root Root) Bounds {
	if len(out) != store.Depth() {
		panic(fmt.Sprintf("fractal: %d instance levels for a store of depth %d", len(out), store.Depth()))
	}

	delta := SpinRate * dt

	rootPart := store.Root()
	rootPart.SpinAngle += delta
	rootPart.WorldRotation = root.Rotation.Mul(rootPart.localRotation.Mul(spinRotation(rootPart.SpinAngle)))
	rootPart.WorldPosition = root.Position
	out[0][0] = instanceMatrix(rootPart.WorldPosition, rootPart.WorldRotation, root.Scale)

	scale := root.Scale
	for l := 1; l < store.Depth(); l++ {
		scale *= ChildScale

		parents := store.levels[l-1]
		parts := store.levels[l]
		matrices := out[l]
		if len(matrices) != len(parts) {
			panic(fmt.Sprintf("fractal: level %d has %d matrices for %d parts", l, len(matrices), len(parts)))
		}

		levelScale := scale
		offset := ChildOffset * levelScale
		p.scheduler.ParallelFor(len(parts), p.batch, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				part := &parts[i]
				parent := &parents[ParentIndex(i)]

				part.SpinAngle += delta
				part.WorldRotation = parent.WorldRotation.Mul(part.localRotation.Mul(spinRotation(part.SpinAngle)))
				part.WorldPosition = parent.WorldPosition.Add(parent.WorldRotation.Rotate(part.direction.Mul(offset)))

				matrices[i] = instanceMatrix(part.WorldPosition, part.WorldRotation, levelScale)
			}
		})
	}

	return Bounds{
		Center:     root.Position,
		HalfExtent: BoundsExtent * root.Scale,
	}
}

// instanceMatrix composes translation * rotation * uniform scale, column-major.
func instanceMatrix(position mgl32.Vec3, rotation mgl32.Quat, scale float32) mgl32.Mat4 {
	m := rotation.Mat4()
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			m[c*4+r] *= scale
		}
	}
	m[12], m[13], m[14] = position[0], position[1], position[2]
	return m
}
