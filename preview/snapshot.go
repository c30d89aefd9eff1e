package preview

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/gekko3d/fractal/fractal"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/vector"
)

// Snapshot rasterises every instance as a camera facing square sized by its
// level scale. Levels are drawn in order, so children cover parents.
type Snapshot struct {
	img        *image.RGBA
	camera     Camera
	background color.RGBA
	from, to   color.RGBA

	vp     mgl32.Mat4
	right  mgl32.Vec3
	planes [6]mgl32.Vec4
	raster *vector.Rasterizer

	drawn  int
	culled int
}

var _ fractal.FrameRenderer = (*Snapshot)(nil)

func NewSnapshot(width, height int, camera Camera) *Snapshot {
	return &Snapshot{
		img:        image.NewRGBA(image.Rect(0, 0, width, height)),
		camera:     camera,
		background: color.RGBA{16, 16, 24, 255},
		from:       color.RGBA{240, 200, 80, 255},
		to:         color.RGBA{60, 120, 220, 255},
		raster:     vector.NewRasterizer(width, height),
	}
}

func (s *Snapshot) Image() *image.RGBA      { return s.img }
func (s *Snapshot) Background() color.RGBA  { return s.background }
func (s *Snapshot) Drawn() int              { return s.drawn }
func (s *Snapshot) Culled() int             { return s.culled }
func (s *Snapshot) SetCamera(camera Camera) { s.camera = camera }

// SetColors sets the colors of the root level and the deepest level.
func (s *Snapshot) SetColors(from, to color.RGBA) {
	s.from, s.to = from, to
}

func (s *Snapshot) BeginFrame() {
	b := s.img.Bounds()
	draw.Draw(s.img, b, image.NewUniform(s.background), image.Point{}, draw.Src)

	s.vp = s.camera.ViewProjection(float32(b.Dx()) / float32(b.Dy()))
	s.right = s.camera.ViewMatrix().Row(0).Vec3()
	s.planes = ExtractFrustum(s.vp)
	s.drawn = 0
	s.culled = 0
}

func (s *Snapshot) DrawInstanced(batch fractal.DrawBatch) error {
	if !BoundsInFrustum(batch.Bounds, s.planes) {
		s.culled += batch.Count
		return nil
	}

	b := s.img.Bounds()
	w, h := float32(b.Dx()), float32(b.Dy())
	s.raster.Reset(b.Dx(), b.Dy())

	half := s.right.Mul(0.5 * batch.Scale)
	drawn := 0
	for _, m := range batch.Matrices {
		center := m.Col(3).Vec3()
		c, ok := project(s.vp, center)
		if !ok {
			continue
		}
		e, ok := project(s.vp, center.Add(half))
		if !ok {
			continue
		}

		x := (c.X() + 1) / 2 * w
		y := (1 - c.Y()) / 2 * h
		r := max(float32(math.Abs(float64(e.X()-c.X())))/2*w, 0.5)

		x0, y0 := clamp(x-r, 0, w), clamp(y-r, 0, h)
		x1, y1 := clamp(x+r, 0, w), clamp(y+r, 0, h)
		if x1 <= x0 || y1 <= y0 {
			continue
		}

		s.raster.MoveTo(x0, y0)
		s.raster.LineTo(x1, y0)
		s.raster.LineTo(x1, y1)
		s.raster.LineTo(x0, y1)
		s.raster.ClosePath()
		drawn++
	}

	if drawn > 0 {
		src := image.NewUniform(s.levelColor(batch.Level))
		s.raster.Draw(s.img, b, src, image.Point{})
	}
	s.drawn += drawn
	return nil
}

func (s *Snapshot) EndFrame() error { return nil }

// WritePNG encodes the last rendered frame.
func (s *Snapshot) WritePNG(w io.Writer) error {
	return png.Encode(w, s.img)
}

func (s *Snapshot) levelColor(level int) color.RGBA {
	t := float32(level) / float32(fractal.MaxDepth-1)
	lerp := func(a, b uint8) uint8 {
		return uint8(float32(a) + (float32(b)-float32(a))*t)
	}
	return color.RGBA{lerp(s.from.R, s.to.R), lerp(s.from.G, s.to.G), lerp(s.from.B, s.to.B), 255}
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
