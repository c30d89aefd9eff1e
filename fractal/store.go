package fractal

// Store holds every part of a fractal, one slice per level. Level L has
// exactly 5^L parts and its shape never changes after Build.
type Store struct {
	levels [][]Part
}

// Build allocates a store for depth levels and assigns every part the
// direction and local rotation of its child slot. The root uses slot 0.
func Build(depth int) (*Store, error) {
	if err := validateDepth(depth); err != nil {
		return nil, err
	}

	levels := make([][]Part, depth)
	for l := range levels {
		parts := make([]Part, LevelSize(l))
		for i := range parts {
			parts[i] = newPart(Slot(i))
		}
		levels[l] = parts
	}

	return &Store{levels: levels}, nil
}

func (s *Store) Depth() int { return len(s.levels) }

// Level returns the parts of level l. The slice aliases the store.
func (s *Store) Level(l int) []Part { return s.levels[l] }

func (s *Store) Root() *Part { return &s.levels[0][0] }

// Len returns the total number of parts.
func (s *Store) Len() int {
	n := 0
	for _, lvl := range s.levels {
		n += len(lvl)
	}
	return n
}
