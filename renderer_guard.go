package gekko

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/gekko3d/fractal/fractal"
)

// RendererTag marks that a renderer has been installed into the App.
// Only one renderer should be installed at a time.
type RendererTag struct {
	Name string
}

// ensureSingleRenderer enforces a single renderer invariant.
// If a different renderer is already installed, it panics with a clear message.
func ensureSingleRenderer(app *App, name string) {
	if app == nil {
		panic("ensureSingleRenderer: app is nil")
	}
	t := reflect.TypeFor[RendererTag]()
	if res, ok := app.resources[t]; ok {
		if tag, ok2 := res.(*RendererTag); ok2 {
			if tag.Name != name {
				app.Logger().Errorf("Multiple renderers installed: %s and %s", tag.Name, name)
				panic(fmt.Sprintf("Multiple renderers installed: %s and %s", tag.Name, name))
			}
			return
		}
		panic("RendererTag resource present with unexpected type")
	}
	app.addResources(&RendererTag{Name: name})
}

// RendererSlot holds the renderer fractals are drawn with. Swapping Renderer
// at runtime is allowed; a nil Renderer skips drawing.
type RendererSlot struct {
	Renderer fractal.Renderer
}

// FractalRendererModule draws every live fractal once per frame in the
// Render stage.
type FractalRendererModule struct {
	Name     string
	Renderer fractal.Renderer
}

func (m FractalRendererModule) Install(app *App, cmd *Commands) {
	name := m.Name
	if name == "" {
		name = "fractal"
	}
	ensureSingleRenderer(app, name)

	cmd.AddResources(&RendererSlot{Renderer: m.Renderer})
	app.UseSystem(
		System(fractalDrawSystem).
			InStage(Render).
			RunAlways(),
	)
}

func fractalDrawSystem(slot *RendererSlot, state *FractalState, cmd *Commands) {
	if slot.Renderer == nil {
		return
	}

	frame, framed := slot.Renderer.(fractal.FrameRenderer)
	if framed {
		frame.BeginFrame()
	}

	ids := make([]EntityId, 0, len(state.fractals))
	for eid := range state.fractals {
		ids = append(ids, eid)
	}
	slices.Sort(ids)

	for _, eid := range ids {
		if err := state.fractals[eid].Draw(slot.Renderer); err != nil {
			cmd.app.Logger().Errorf("fractal %v: draw failed: %v", eid, err)
		}
	}

	if framed {
		if err := frame.EndFrame(); err != nil {
			cmd.app.Logger().Errorf("fractal renderer %T: end frame failed: %v", slot.Renderer, err)
		}
	}
}
