package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	gekko "github.com/gekko3d/fractal"
	fr "github.com/gekko3d/fractal/fractal"
	"github.com/gekko3d/fractal/fractal/gpu"
	"github.com/gekko3d/fractal/preview"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	stateRunning gekko.State = iota
	stateQuit
)

const framePeriod = time.Second / 60

type options struct {
	depth    int
	workers  int
	batch    int
	frames   int
	scale    float64
	snapshot string
	width    int
	height   int
	gpu      bool
	debug    bool
	logPath  string
}

func parseFlags() options {
	var opts options
	flag.IntVar(&opts.depth, "depth", 5, "Fractal depth (1-8)")
	flag.IntVar(&opts.workers, "workers", 0, "Worker goroutines, 0 = one per spare CPU, 1 = sequential")
	flag.IntVar(&opts.batch, "batch", fr.DefaultBatchSize, "Parts per scheduled task")
	flag.IntVar(&opts.frames, "frames", 0, "Stop after this many frames, 0 = run until quit")
	flag.Float64Var(&opts.scale, "scale", 1, "Root scale")
	flag.StringVar(&opts.snapshot, "snapshot", "", "Render to this PNG file instead of the terminal")
	flag.IntVar(&opts.width, "w", 800, "Snapshot width in pixels")
	flag.IntVar(&opts.height, "h", 600, "Snapshot height in pixels")
	flag.BoolVar(&opts.gpu, "gpu", false, "Keep instance buffers on a headless WebGPU device")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&opts.logPath, "log", "", "Log file for terminal mode")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "fractal: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if opts.snapshot != "" && opts.frames <= 0 {
		opts.frames = 60
	}

	var allocator fr.BufferAllocator
	if opts.gpu {
		device, err := gpu.NewHeadless()
		if err != nil {
			return fmt.Errorf("gpu: %w", err)
		}
		defer device.Release()
		allocator = device
	}

	camera := preview.NewCamera(6 * float32(opts.scale))
	camera.Target = camera.Target.Mul(float32(opts.scale))

	logging := gekko.LoggingModule{Prefix: "fractal", Debug: opts.debug}
	timing := gekko.TimeModule{}

	var renderer fr.Renderer
	var snapshot *preview.Snapshot
	var term *terminalInput
	if opts.snapshot != "" {
		snapshot = preview.NewSnapshot(opts.width, opts.height, camera)
		renderer = snapshot
		// Deterministic frames independent of how fast they render.
		timing.Fixed = framePeriod
	} else {
		logOut, closeLog, err := openLog(opts.logPath)
		if err != nil {
			return err
		}
		defer closeLog()
		logging.Output = logOut

		screen, err := tcell.NewScreen()
		if err != nil {
			return err
		}
		if err := screen.Init(); err != nil {
			return err
		}
		defer screen.Fini()

		term = newTerminalInput(screen, preview.NewTerminal(screen, camera))
		renderer = term.renderer
	}

	app := gekko.NewAppBuilder().
		UseStates(stateRunning, stateQuit).
		UseModule(
			logging,
			timing,
			gekko.AssetServerModule{Defaults: true},
			gekko.HierarchyModule{},
			gekko.LifecycleModule{},
			gekko.FractalModule{
				Parallel:  opts.workers != 1,
				Workers:   opts.workers,
				BatchSize: opts.batch,
				Allocator: allocator,
			},
			gekko.FractalRendererModule{Name: "preview", Renderer: renderer},
			demoModule{opts: opts, term: term},
		).
		Build()

	app.Run()

	if snapshot != nil {
		return writeSnapshot(opts.snapshot, snapshot)
	}
	return nil
}

func openLog(path string) (io.Writer, func(), error) {
	if path == "" {
		return io.Discard, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func writeSnapshot(path string, snapshot *preview.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := snapshot.WritePNG(f); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: %w", err)
	}
	return f.Close()
}

// demoModule spawns the fractal entity and drives the frame limit and, in
// terminal mode, keyboard input and frame pacing.
type demoModule struct {
	opts options
	term *terminalInput
}

type demo struct {
	entity    gekko.EntityId
	maxFrames int
	frames    int
	lastFrame time.Time
}

func (m demoModule) Install(app *gekko.App, cmd *gekko.Commands) {
	assets, ok := gekko.Resource[gekko.DefaultAssets](app)
	if !ok {
		panic("demoModule needs AssetServerModule{Defaults: true}")
	}

	s := float32(m.opts.scale)
	entity := cmd.AddEntity(
		gekko.TransformComponent{
			Rotation: mgl32.QuatIdent(),
			Scale:    mgl32.Vec3{s, s, s},
		},
		gekko.FractalComponent{
			Depth:    m.opts.depth,
			Mesh:     assets.Cube,
			Material: assets.Material,
		},
	)
	cmd.AddResources(&demo{entity: entity, maxFrames: m.opts.frames, lastFrame: time.Now()})

	app.UseSystem(
		gekko.System(frameLimitSystem).
			InStage(gekko.Finale).
			InState(gekko.OnExecute(stateRunning)),
	)

	if m.term == nil {
		return
	}
	m.term.start()
	cmd.AddResources(m.term)
	app.UseSystem(
		gekko.System(terminalInputSystem).
			InStage(gekko.Prelude).
			InState(gekko.OnExecute(stateRunning)),
	)
	app.UseSystem(
		gekko.System(terminalStatusSystem).
			InStage(gekko.PostRender).
			InState(gekko.OnExecute(stateRunning)),
	)
	app.UseSystem(
		gekko.System(framePacerSystem).
			InStage(gekko.Finale).
			InState(gekko.OnExecute(stateRunning)),
	)
}

func frameLimitSystem(d *demo, cmd *gekko.Commands) {
	d.frames++
	if d.maxFrames > 0 && d.frames >= d.maxFrames {
		cmd.ChangeState(stateQuit)
	}
}

func framePacerSystem(d *demo) {
	if wait := framePeriod - time.Since(d.lastFrame); wait > 0 {
		time.Sleep(wait)
	}
	d.lastFrame = time.Now()
}
