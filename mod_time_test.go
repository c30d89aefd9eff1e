package gekko

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeModule_FixedStep(t *testing.T) {
	app := NewApp().UseModules(TimeModule{Fixed: 100 * time.Millisecond})
	tm, ok := Resource[Time](app)
	require.True(t, ok)
	start := tm.Time

	app.Step()
	app.Step()

	assert.Equal(t, uint64(2), tm.Frame)
	assert.InDelta(t, 0.1, tm.DeltaSeconds(), 1e-6)
	assert.Equal(t, 200*time.Millisecond, tm.Time.Sub(start))
}

func TestTimeModule_WallClock(t *testing.T) {
	app := NewApp().UseModules(TimeModule{})
	tm, _ := Resource[Time](app)

	app.Step()
	assert.GreaterOrEqual(t, tm.Dt, time.Duration(0))
	assert.Equal(t, uint64(1), tm.Frame)
}

func TestLifecycle_RemovesExpiredEntities(t *testing.T) {
	app := NewApp().UseModules(TimeModule{Fixed: time.Second}, LifecycleModule{})
	cmd := app.Commands()

	short := cmd.AddEntity(LifetimeComponent{TimeLeft: 1.5})
	long := cmd.AddEntity(LifetimeComponent{TimeLeft: 10})

	app.Step()
	assert.True(t, cmd.HasEntity(short))

	app.Step()
	assert.False(t, cmd.HasEntity(short))
	assert.True(t, cmd.HasEntity(long))
}
