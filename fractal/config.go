package fractal

import (
	"errors"
	"fmt"

	"github.com/gekko3d/fractal/asset"
)

var (
	ErrDepthTooSmall = errors.New("fractal depth below minimum")
	ErrDepthTooLarge = errors.New("fractal depth above maximum")
)

// Config is the setup input of a fractal. Changing Depth requires a rebuild.
type Config struct {
	Depth    int
	Mesh     asset.Mesh
	Material asset.Material
}

func (c Config) Validate() error {
	return validateDepth(c.Depth)
}

func validateDepth(depth int) error {
	if depth < MinDepth {
		return fmt.Errorf("depth %d: %w (%d)", depth, ErrDepthTooSmall, MinDepth)
	}
	if depth > MaxDepth {
		return fmt.Errorf("depth %d: %w (%d, %d parts)", depth, ErrDepthTooLarge, MaxDepth, NodeCount(MaxDepth))
	}
	return nil
}
