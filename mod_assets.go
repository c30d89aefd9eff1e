package gekko

import (
	"github.com/gekko3d/fractal/asset"
)

// AssetServerModule installs an *asset.Server resource. With Defaults set it
// also loads the unit cube mesh and a white material into DefaultAssets.
type AssetServerModule struct {
	Defaults bool
}

// DefaultAssets holds the handles loaded by AssetServerModule.
type DefaultAssets struct {
	Cube     asset.Mesh
	Material asset.Material
}

func (m AssetServerModule) Install(app *App, cmd *Commands) {
	server := asset.NewServer()
	cmd.AddResources(server)
	if !m.Defaults {
		return
	}

	vertices, indices := asset.UnitCube()
	cmd.AddResources(&DefaultAssets{
		Cube:     server.LoadMesh("cube", vertices, indices),
		Material: server.LoadMaterial("default", [4]uint8{255, 255, 255, 255}),
	})
}
