// Package preview renders fractal draw batches without a GPU: into a
// terminal screen or into an RGBA image.
package preview

import (
	"math"

	"github.com/gekko3d/fractal/fractal"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a perspective camera orbiting a target point, Y-up.
type Camera struct {
	Target   mgl32.Vec3
	Distance float32
	Yaw      float32
	Pitch    float32
	FovY     float32
	Near     float32
	Far      float32
}

func NewCamera(distance float32) Camera {
	return Camera{
		Target:   mgl32.Vec3{0, 0.75, 0},
		Distance: distance,
		Yaw:      mgl32.DegToRad(30),
		Pitch:    mgl32.DegToRad(20),
		FovY:     mgl32.DegToRad(60),
		Near:     0.1,
		Far:      1000,
	}
}

func (c Camera) Eye() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	offset := mgl32.Vec3{
		cp * float32(math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		cp * float32(math.Cos(float64(c.Yaw))),
	}
	return c.Target.Add(offset.Mul(c.Distance))
}

func (c Camera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye(), c.Target, mgl32.Vec3{0, 1, 0})
}

func (c Camera) ViewProjection(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(c.FovY, aspect, c.Near, c.Far).Mul4(c.ViewMatrix())
}

// project maps a world point to normalized device coordinates. ok is false
// for points behind the camera.
func project(vp mgl32.Mat4, p mgl32.Vec3) (ndc mgl32.Vec3, ok bool) {
	clip := vp.Mul4x1(p.Vec4(1))
	if clip.W() <= 0 {
		return mgl32.Vec3{}, false
	}
	return clip.Vec3().Mul(1 / clip.W()), true
}

// ExtractFrustum returns the Left, Right, Bottom, Top, Near, Far planes of a
// view-projection matrix, normals pointing inside.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	planes := [6]mgl32.Vec4{
		r3.Add(r0),
		r3.Sub(r0),
		r3.Add(r1),
		r3.Sub(r1),
		r3.Add(r2), // OpenGL-style -1..1 depth
		r3.Sub(r2),
	}

	for i := range planes {
		length := planes[i].Vec3().Len()
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}

// BoundsInFrustum reports whether any part of b can be inside the frustum.
func BoundsInFrustum(b fractal.Bounds, planes [6]mgl32.Vec4) bool {
	lo, hi := b.Min(), b.Max()
	for _, plane := range planes {
		// most inside corner
		var p mgl32.Vec3
		for axis := 0; axis < 3; axis++ {
			if plane[axis] > 0 {
				p[axis] = hi[axis]
			} else {
				p[axis] = lo[axis]
			}
		}
		if plane.Vec3().Dot(p)+plane[3] < 0 {
			return false
		}
	}
	return true
}
