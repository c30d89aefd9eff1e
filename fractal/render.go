package fractal

import (
	"github.com/gekko3d/fractal/asset"
	"github.com/go-gl/mathgl/mgl32"
)

// Bounds is an axis aligned cube enclosing the whole fractal.
type Bounds struct {
	Center     mgl32.Vec3
	HalfExtent float32
}

func (b Bounds) Min() mgl32.Vec3 {
	return b.Center.Sub(mgl32.Vec3{b.HalfExtent, b.HalfExtent, b.HalfExtent})
}

func (b Bounds) Max() mgl32.Vec3 {
	return b.Center.Add(mgl32.Vec3{b.HalfExtent, b.HalfExtent, b.HalfExtent})
}

// DrawBatch is one level's instanced draw. Matrices alias the level's
// instance buffer and are only valid for the duration of DrawInstanced.
type DrawBatch struct {
	Level    int
	Matrices []mgl32.Mat4
	Count    int
	Scale    float32
	Mesh     asset.Mesh
	Material asset.Material
	Bounds   Bounds
	Buffer   InstanceBuffer
}

// Renderer consumes draw batches synchronously. It must not retain
// Matrices past the call; copy them out if needed.
type Renderer interface {
	DrawInstanced(batch DrawBatch) error
}

// FrameRenderer is implemented by renderers that need to know where a frame
// of batches starts and ends.
type FrameRenderer interface {
	Renderer
	BeginFrame()
	EndFrame() error
}
