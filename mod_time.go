package gekko

import (
	"time"
)

type Time struct {
	Time time.Time
	Dt   time.Duration
	// Frame counts time system runs.
	Frame uint64
}

// DeltaSeconds returns the last frame delta in seconds.
func (t *Time) DeltaSeconds() float32 {
	return float32(t.Dt.Seconds())
}

type TimeModule struct {
	// Fixed, when non-zero, replaces the wall clock delta. Used by
	// deterministic runs and tests.
	Fixed time.Duration
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Time{
		Time: time.Now(),
		Dt:   0,
	})
	if mod.Fixed > 0 {
		app.UseSystem(System(fixedTimeSystem(mod.Fixed)).InStage(Prelude).RunAlways())
		return
	}
	app.UseSystem(System(timeSystem).InStage(Prelude).RunAlways())
}

func timeSystem(timeResource *Time) {
	now := time.Now()

	timeResource.Dt = now.Sub(timeResource.Time)
	timeResource.Time = now
	timeResource.Frame++
}

func fixedTimeSystem(step time.Duration) func(*Time) {
	return func(timeResource *Time) {
		timeResource.Dt = step
		timeResource.Time = timeResource.Time.Add(step)
		timeResource.Frame++
	}
}
