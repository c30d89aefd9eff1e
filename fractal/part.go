package fractal

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// BranchFactor is the number of children every non-leaf part owns.
	BranchFactor = 5

	MinDepth = 1
	MaxDepth = 8

	// SpinRate is the angular speed of every part around its local up axis, in radians per second.
	SpinRate float32 = 0.125 * math.Pi

	// ChildOffset scales the distance between a parent and its children relative to the child scale.
	ChildOffset float32 = 1.5
	// ChildScale is the scale ratio between consecutive levels.
	ChildScale float32 = 0.5
	// BoundsExtent is the half-extent of the fractal bounds relative to the root scale.
	BoundsExtent float32 = 1.5
)

var up = mgl32.Vec3{0, 1, 0}

// Slot order: up, right, left, forward, back.
var slotDirections = [BranchFactor]mgl32.Vec3{
	{0, 1, 0},
	{1, 0, 0},
	{-1, 0, 0},
	{0, 0, 1},
	{0, 0, -1},
}

// Each rotation maps the local up axis onto the matching slot direction.
var slotRotations = [BranchFactor]mgl32.Quat{
	mgl32.QuatIdent(),
	mgl32.QuatRotate(-math.Pi/2, mgl32.Vec3{0, 0, 1}),
	mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1}),
	mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{1, 0, 0}),
	mgl32.QuatRotate(-math.Pi/2, mgl32.Vec3{1, 0, 0}),
}

// Part is one node of the fractal. Direction and local rotation are fixed when
// the hierarchy is built; the world transform and spin change every frame.
type Part struct {
	direction     mgl32.Vec3
	localRotation mgl32.Quat

	WorldRotation mgl32.Quat
	WorldPosition mgl32.Vec3
	SpinAngle     float32
}

func newPart(slot int) Part {
	return Part{
		direction:     slotDirections[slot],
		localRotation: slotRotations[slot],
		WorldRotation: mgl32.QuatIdent(),
	}
}

func (p *Part) Direction() mgl32.Vec3     { return p.direction }
func (p *Part) LocalRotation() mgl32.Quat { return p.localRotation }

// SlotDirection returns the canonical direction of a child slot.
func SlotDirection(slot int) mgl32.Vec3 { return slotDirections[slot] }

// SlotRotation returns the canonical local rotation of a child slot.
func SlotRotation(slot int) mgl32.Quat { return slotRotations[slot] }

// ParentIndex returns the index in level L-1 of the part at index i in level L.
func ParentIndex(i int) int { return i / BranchFactor }

// Slot returns the child slot of the part at index i within its parent.
func Slot(i int) int { return i % BranchFactor }

// LevelSize returns the number of parts in a level: 5^level.
func LevelSize(level int) int {
	n := 1
	for range level {
		n *= BranchFactor
	}
	return n
}

// NodeCount returns the total number of parts in a fractal of the given depth.
func NodeCount(depth int) int {
	return (LevelSize(depth) - 1) / (BranchFactor - 1)
}

// LevelScale returns rootScale * 0.5^level.
func LevelScale(rootScale float32, level int) float32 {
	s := rootScale
	for range level {
		s *= ChildScale
	}
	return s
}

// spinRotation is the rotation of angle radians around the local up axis.
func spinRotation(angle float32) mgl32.Quat {
	return mgl32.QuatRotate(angle, up)
}
