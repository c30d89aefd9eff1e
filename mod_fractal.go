package gekko

import (
	"github.com/gekko3d/fractal/asset"
	"github.com/gekko3d/fractal/fractal"
	"github.com/go-gl/mathgl/mgl32"
)

// FractalComponent attaches a fractal to an entity. The entity's
// TransformComponent drives the root of the hierarchy.
type FractalComponent struct {
	Depth    int
	Mesh     asset.Mesh
	Material asset.Material
	// Disabled releases the fractal's arrays while keeping the entity.
	Disabled bool
}

type FractalModule struct {
	// Parallel runs each level pass on a worker pool instead of inline.
	Parallel bool
	// Workers sizes the pool, <= 0 picks one per spare CPU.
	Workers   int
	BatchSize int
	// Allocator defaults to host memory.
	Allocator fractal.BufferAllocator
}

// FractalState owns one fractal per entity carrying a FractalComponent.
type FractalState struct {
	app       *App
	fractals  map[EntityId]*fractal.Fractal
	rejected  map[EntityId]int
	scheduler fractal.Scheduler
	batch     int
	allocator fractal.BufferAllocator
}

func (mod FractalModule) Install(app *App, cmd *Commands) {
	var scheduler fractal.Scheduler = fractal.SequentialScheduler{}
	if mod.Parallel {
		scheduler = fractal.NewPoolScheduler(mod.Workers)
	}
	allocator := mod.Allocator
	if allocator == nil {
		allocator = fractal.NewHostAllocator()
	}

	state := &FractalState{
		app:       app,
		fractals:  make(map[EntityId]*fractal.Fractal),
		rejected:  make(map[EntityId]int),
		scheduler: scheduler,
		batch:     mod.BatchSize,
		allocator: allocator,
	}
	cmd.AddResources(state)
	app.OnClose(state.Close)

	app.UseSystem(
		System(fractalSyncSystem).
			InStage(PreRender).
			RunAlways(),
	)
	app.UseSystem(
		System(fractalUpdateSystem).
			InStage(PreRender).
			RunAlways(),
	)
}

func (s *FractalState) Fractal(eid EntityId) (*fractal.Fractal, bool) {
	f, ok := s.fractals[eid]
	return f, ok
}

func (s *FractalState) Len() int                           { return len(s.fractals) }
func (s *FractalState) Allocator() fractal.BufferAllocator { return s.allocator }

// ReleaseAll releases every fractal's arrays and forgets them.
func (s *FractalState) ReleaseAll() {
	for eid := range s.fractals {
		s.release(eid)
	}
}

// Close releases every fractal and then stops the scheduler's workers.
func (s *FractalState) Close() {
	s.ReleaseAll()
	if c, ok := s.scheduler.(interface{ Close() }); ok {
		c.Close()
	}
}

func (s *FractalState) options() []fractal.Option {
	return []fractal.Option{
		fractal.WithScheduler(s.scheduler),
		fractal.WithBatchSize(s.batch),
		fractal.WithAllocator(s.allocator),
		fractal.WithLogger(s.app.Logger()),
	}
}

func (s *FractalState) release(eid EntityId) {
	f, ok := s.fractals[eid]
	if !ok {
		return
	}
	f.Release()
	delete(s.fractals, eid)
	s.app.Logger().Debugf("fractal %v: released", eid)
}

// reject reports whether config is invalid, logging each distinct invalid
// depth once per entity.
func (s *FractalState) reject(eid EntityId, config fractal.Config) bool {
	err := config.Validate()
	if err == nil {
		delete(s.rejected, eid)
		return false
	}
	if depth, seen := s.rejected[eid]; !seen || depth != config.Depth {
		s.rejected[eid] = config.Depth
		s.app.Logger().Warnf("fractal %v: %v", eid, err)
	}
	return true
}

func (s *FractalState) sync(eid EntityId, fc FractalComponent) {
	config := fractal.Config{Depth: fc.Depth, Mesh: fc.Mesh, Material: fc.Material}

	f, ok := s.fractals[eid]
	if ok && f.Allocated() && f.Config() == config {
		return
	}
	// An invalid depth keeps whatever the entity had before.
	if s.reject(eid, config) {
		return
	}

	if !ok {
		created, err := fractal.New(config, s.options()...)
		if err != nil {
			s.app.Logger().Errorf("fractal %v: %v", eid, err)
			return
		}
		s.fractals[eid] = created
		s.app.Logger().Debugf("fractal %v: created with depth %d", eid, config.Depth)
		return
	}

	previous := f.Depth()
	if err := f.SetConfig(config); err != nil {
		s.app.Logger().Errorf("fractal %v: %v", eid, err)
		s.release(eid)
		return
	}
	if previous != config.Depth {
		s.app.Logger().Infof("fractal %v: depth %d -> %d", eid, previous, config.Depth)
	}
}

func fractalSyncSystem(state *FractalState, cmd *Commands) {
	live := make(map[EntityId]struct{}, len(state.fractals))
	MakeQuery2[FractalComponent, TransformComponent](cmd).Map(func(eid EntityId, fc *FractalComponent, tr *TransformComponent) bool {
		if fc.Disabled {
			state.release(eid)
			return true
		}
		live[eid] = struct{}{}
		state.sync(eid, *fc)
		return true
	})

	for eid := range state.fractals {
		if _, ok := live[eid]; !ok {
			state.release(eid)
		}
	}
	for eid := range state.rejected {
		if _, ok := live[eid]; !ok {
			delete(state.rejected, eid)
		}
	}
}

func fractalUpdateSystem(state *FractalState, t *Time, cmd *Commands) {
	dt := t.DeltaSeconds()
	for eid, f := range state.fractals {
		tr, ok := GetComponent[TransformComponent](cmd, eid)
		if !ok {
			continue
		}
		if err := f.Update(dt, rootFromTransform(*tr)); err != nil {
			cmd.app.Logger().Errorf("fractal %v: update failed: %v", eid, err)
		}
	}
}

// rootFromTransform maps a world transform onto the fractal root. The
// fractal scales uniformly, so only the X scale is used. Zero rotation and
// zero scale are treated as unset.
func rootFromTransform(tr TransformComponent) fractal.Root {
	rotation := tr.Rotation
	if rotation == (mgl32.Quat{}) {
		rotation = mgl32.QuatIdent()
	}
	scale := tr.Scale.X()
	if scale == 0 {
		scale = 1
	}
	return fractal.Root{Position: tr.Position, Rotation: rotation, Scale: scale}
}
