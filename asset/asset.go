package asset

import (
	"sync"

	"github.com/google/uuid"
)

type AssetId string

// Mesh is a handle to mesh data registered with a Server.
type Mesh struct {
	assetId AssetId
}

// Material is a handle to a material registered with a Server.
type Material struct {
	assetId AssetId
}

func (m Mesh) Id() AssetId     { return m.assetId }
func (m Mesh) Valid() bool     { return m.assetId != "" }
func (m Material) Id() AssetId { return m.assetId }
func (m Material) Valid() bool { return m.assetId != "" }

type MeshAsset struct {
	Name     string
	Vertices []float32
	Indices  []uint16
}

type MaterialAsset struct {
	Name  string
	Color [4]uint8
}

// Server keeps mesh and material data keyed by generated asset ids.
type Server struct {
	mu        sync.RWMutex
	meshes    map[AssetId]MeshAsset
	materials map[AssetId]MaterialAsset
}

func NewServer() *Server {
	return &Server{
		meshes:    make(map[AssetId]MeshAsset),
		materials: make(map[AssetId]MaterialAsset),
	}
}

func (s *Server) LoadMesh(name string, vertices []float32, indices []uint16) Mesh {
	id := makeAssetId()

	s.mu.Lock()
	s.meshes[id] = MeshAsset{
		Name:     name,
		Vertices: vertices,
		Indices:  indices,
	}
	s.mu.Unlock()

	return Mesh{assetId: id}
}

func (s *Server) LoadMaterial(name string, color [4]uint8) Material {
	id := makeAssetId()

	s.mu.Lock()
	s.materials[id] = MaterialAsset{
		Name:  name,
		Color: color,
	}
	s.mu.Unlock()

	return Material{assetId: id}
}

func (s *Server) MeshAsset(m Mesh) (MeshAsset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.meshes[m.assetId]
	return a, ok
}

func (s *Server) MaterialAsset(m Material) (MaterialAsset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.materials[m.assetId]
	return a, ok
}

// UnitCube returns the vertex positions and indices of an axis aligned cube
// with half-extent 0.5, the default fractal part mesh.
func UnitCube() ([]float32, []uint16) {
	vertices := []float32{
		-0.5, -0.5, -0.5,
		0.5, -0.5, -0.5,
		0.5, 0.5, -0.5,
		-0.5, 0.5, -0.5,
		-0.5, -0.5, 0.5,
		0.5, -0.5, 0.5,
		0.5, 0.5, 0.5,
		-0.5, 0.5, 0.5,
	}
	indices := []uint16{
		0, 2, 1, 0, 3, 2, // back
		4, 5, 6, 4, 6, 7, // front
		0, 4, 7, 0, 7, 3, // left
		1, 2, 6, 1, 6, 5, // right
		3, 7, 6, 3, 6, 2, // top
		0, 1, 5, 0, 5, 4, // bottom
	}
	return vertices, indices
}

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}
