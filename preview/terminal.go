package preview

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/gekko3d/fractal/fractal"
	"github.com/go-gl/mathgl/mgl32"
)

// Terminal cells are roughly twice as tall as they are wide.
const cellAspect = 0.5

var levelGlyphs = []rune{'@', '#', '%', '*', '+', 'o', ':', '.'}

var levelColors = []tcell.Color{
	tcell.ColorWhite,
	tcell.ColorYellow,
	tcell.ColorOrange,
	tcell.ColorRed,
	tcell.ColorPurple,
	tcell.ColorBlue,
	tcell.ColorTeal,
	tcell.ColorGreen,
}

// Terminal draws every instance as one glyph at its projected translation,
// nearest instance winning per cell.
type Terminal struct {
	screen tcell.Screen
	camera Camera

	width, height int
	vp            mgl32.Mat4
	planes        [6]mgl32.Vec4
	zbuf          []float32

	levels int
	drawn  int
	culled int
	status string
}

var _ fractal.FrameRenderer = (*Terminal)(nil)

func NewTerminal(screen tcell.Screen, camera Camera) *Terminal {
	return &Terminal{screen: screen, camera: camera}
}

func (t *Terminal) Camera() Camera          { return t.camera }
func (t *Terminal) SetCamera(camera Camera) { t.camera = camera }

// SetStatus replaces the text of the bottom status line.
func (t *Terminal) SetStatus(status string) { t.status = status }

func (t *Terminal) Drawn() int  { return t.drawn }
func (t *Terminal) Culled() int { return t.culled }

func (t *Terminal) BeginFrame() {
	t.width, t.height = t.screen.Size()
	t.screen.Clear()

	aspect := float32(1)
	if t.height > 0 {
		aspect = float32(t.width) * cellAspect / float32(t.height)
	}
	t.vp = t.camera.ViewProjection(aspect)
	t.planes = ExtractFrustum(t.vp)

	if cells := t.width * t.height; cap(t.zbuf) < cells {
		t.zbuf = make([]float32, cells)
	} else {
		t.zbuf = t.zbuf[:cells]
	}
	for i := range t.zbuf {
		t.zbuf[i] = math.MaxFloat32
	}

	t.levels = 0
	t.drawn = 0
	t.culled = 0
}

func (t *Terminal) DrawInstanced(batch fractal.DrawBatch) error {
	t.levels = max(t.levels, batch.Level+1)
	if !BoundsInFrustum(batch.Bounds, t.planes) {
		t.culled += batch.Count
		return nil
	}

	glyph := levelGlyphs[batch.Level%len(levelGlyphs)]
	style := tcell.StyleDefault.Foreground(levelColors[batch.Level%len(levelColors)])

	for _, m := range batch.Matrices {
		ndc, ok := project(t.vp, m.Col(3).Vec3())
		if !ok || ndc.X() < -1 || ndc.X() > 1 || ndc.Y() < -1 || ndc.Y() > 1 {
			continue
		}
		x := int((ndc.X() + 1) / 2 * float32(t.width))
		y := int((1 - ndc.Y()) / 2 * float32(t.height))
		if x < 0 || x >= t.width || y < 0 || y >= t.height {
			continue
		}

		idx := y*t.width + x
		if ndc.Z() >= t.zbuf[idx] {
			continue
		}
		t.zbuf[idx] = ndc.Z()
		t.screen.SetContent(x, y, glyph, nil, style)
		t.drawn++
	}
	return nil
}

func (t *Terminal) EndFrame() error {
	line := fmt.Sprintf(" levels %d  drawn %d  culled %d ", t.levels, t.drawn, t.culled)
	if t.status != "" {
		line += " " + t.status
	}
	if t.height > 0 {
		style := tcell.StyleDefault.Reverse(true)
		for i, r := range []rune(line) {
			if i >= t.width {
				break
			}
			t.screen.SetContent(i, t.height-1, r, nil, style)
		}
	}
	t.screen.Show()
	return nil
}
