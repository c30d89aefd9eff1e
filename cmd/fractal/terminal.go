package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	gekko "github.com/gekko3d/fractal"
	fr "github.com/gekko3d/fractal/fractal"
	"github.com/gekko3d/fractal/preview"
	"github.com/go-gl/mathgl/mgl32"
)

const orbitStep = 5.0 // degrees per key press

// terminalInput forwards tcell events from a polling goroutine into the
// Prelude stage.
type terminalInput struct {
	screen   tcell.Screen
	renderer *preview.Terminal
	events   chan tcell.Event
}

func newTerminalInput(screen tcell.Screen, renderer *preview.Terminal) *terminalInput {
	return &terminalInput{
		screen:   screen,
		renderer: renderer,
		events:   make(chan tcell.Event, 64),
	}
}

func (t *terminalInput) start() {
	go func() {
		for {
			ev := t.screen.PollEvent()
			if ev == nil {
				close(t.events)
				return
			}
			t.events <- ev
		}
	}()
}

func terminalInputSystem(t *terminalInput, d *demo, cmd *gekko.Commands) {
	for {
		select {
		case ev, ok := <-t.events:
			if !ok {
				cmd.ChangeState(stateQuit)
				return
			}
			handleEvent(t, d, cmd, ev)
		default:
			return
		}
	}
}

func handleEvent(t *terminalInput, d *demo, cmd *gekko.Commands, ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		t.screen.Sync()
	case *tcell.EventKey:
		camera := t.renderer.Camera()
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			cmd.ChangeState(stateQuit)
		case tcell.KeyLeft:
			camera.Yaw -= mgl32.DegToRad(orbitStep)
		case tcell.KeyRight:
			camera.Yaw += mgl32.DegToRad(orbitStep)
		case tcell.KeyUp:
			camera.Pitch = min(camera.Pitch+mgl32.DegToRad(orbitStep), mgl32.DegToRad(85))
		case tcell.KeyDown:
			camera.Pitch = max(camera.Pitch-mgl32.DegToRad(orbitStep), mgl32.DegToRad(-85))
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				cmd.ChangeState(stateQuit)
			case '+', '=':
				changeDepth(d, cmd, 1)
			case '-', '_':
				changeDepth(d, cmd, -1)
			}
		}
		t.renderer.SetCamera(camera)
	}
}

func changeDepth(d *demo, cmd *gekko.Commands, delta int) {
	fc, ok := gekko.GetComponent[gekko.FractalComponent](cmd, d.entity)
	if !ok {
		return
	}
	fc.Depth = min(max(fc.Depth+delta, fr.MinDepth), fr.MaxDepth)
}

func terminalStatusSystem(t *terminalInput, d *demo, state *gekko.FractalState) {
	f, ok := state.Fractal(d.entity)
	if !ok {
		t.renderer.SetStatus("no fractal")
		return
	}
	t.renderer.SetStatus(fmt.Sprintf("depth %d  parts %d  frame %d  [+/-] depth  [arrows] orbit  [q] quit",
		f.Depth(), f.Store().Len(), f.Frames()))
}
