package gekko

import (
	"reflect"
	"slices"
)

// Queries visit every entity whose archetype holds the required components.
// Component types passed as optionals may be missing, in which case the
// callback receives nil for them. Returning false from the callback stops
// the iteration.
type Query1[A any] struct {
	ecs     *Ecs
	without []any
}

type Query2[A, B any] struct {
	ecs     *Ecs
	without []any
}

type Query3[A, B, C any] struct {
	ecs     *Ecs
	without []any
}

func MakeQuery1[A any](cmd *Commands) Query1[A]             { return Query1[A]{ecs: cmd.app.ecs} }
func MakeQuery2[A, B any](cmd *Commands) Query2[A, B]       { return Query2[A, B]{ecs: cmd.app.ecs} }
func MakeQuery3[A, B, C any](cmd *Commands) Query3[A, B, C] { return Query3[A, B, C]{ecs: cmd.app.ecs} }

// WithoutTypes skips archetypes holding any of the given component types.
func (q Query1[A]) WithoutTypes(components ...any) Query1[A] {
	q.without = append(slices.Clone(q.without), components...)
	return q
}

func (q Query2[A, B]) WithoutTypes(components ...any) Query2[A, B] {
	q.without = append(slices.Clone(q.without), components...)
	return q
}

func (q Query3[A, B, C]) WithoutTypes(components ...any) Query3[A, B, C] {
	q.without = append(slices.Clone(q.without), components...)
	return q
}

func (q Query1[A]) Map(m func(EntityId, *A) bool, optionals ...any) {
	id1 := identifyComponent[A](q.ecs)
	opt := identifyComponents(q.ecs, optionals...)
	without := identifyComponents(q.ecs, q.without...)

	for _, arch := range q.ecs.archetypes {
		if arch.holdsAny(without) {
			continue
		}
		comps1, ok := archetypeColumn[A](arch, id1, opt)
		if !ok {
			continue
		}

		for entityId, row := range arch.entities {
			if !m(entityId, columnAt(comps1, row)) {
				return
			}
		}
	}
}

func (q Query2[A, B]) Map(m func(EntityId, *A, *B) bool, optionals ...any) {
	id1, id2 := identifyComponent[A](q.ecs), identifyComponent[B](q.ecs)
	opt := identifyComponents(q.ecs, optionals...)
	without := identifyComponents(q.ecs, q.without...)

	for _, arch := range q.ecs.archetypes {
		if arch.holdsAny(without) {
			continue
		}
		comps1, ok := archetypeColumn[A](arch, id1, opt)
		if !ok {
			continue
		}
		comps2, ok := archetypeColumn[B](arch, id2, opt)
		if !ok {
			continue
		}

		for entityId, row := range arch.entities {
			if !m(entityId, columnAt(comps1, row), columnAt(comps2, row)) {
				return
			}
		}
	}
}

func (q Query3[A, B, C]) Map(m func(EntityId, *A, *B, *C) bool, optionals ...any) {
	id1, id2, id3 := identifyComponent[A](q.ecs), identifyComponent[B](q.ecs), identifyComponent[C](q.ecs)
	opt := identifyComponents(q.ecs, optionals...)
	without := identifyComponents(q.ecs, q.without...)

	for _, arch := range q.ecs.archetypes {
		if arch.holdsAny(without) {
			continue
		}
		comps1, ok := archetypeColumn[A](arch, id1, opt)
		if !ok {
			continue
		}
		comps2, ok := archetypeColumn[B](arch, id2, opt)
		if !ok {
			continue
		}
		comps3, ok := archetypeColumn[C](arch, id3, opt)
		if !ok {
			continue
		}

		for entityId, row := range arch.entities {
			if !m(entityId, columnAt(comps1, row), columnAt(comps2, row), columnAt(comps3, row)) {
				return
			}
		}
	}
}

// archetypeColumn returns the typed component slice for id. ok is false when
// the archetype lacks a required component; a missing optional yields a nil
// slice.
func archetypeColumn[T any](arch *archetype, id componentId, opt set[componentId]) (comps []T, ok bool) {
	if data, present := arch.componentData[id]; present {
		return data.([]T), true
	}
	if _, optional := opt[id]; optional {
		return nil, true
	}
	return nil, false
}

func columnAt[T any](comps []T, r row) *T {
	if comps == nil {
		return nil
	}
	return &comps[r]
}

func (arch *archetype) holdsAny(ids set[componentId]) bool {
	for id := range ids {
		if _, ok := arch.componentData[id]; ok {
			return true
		}
	}
	return false
}

func identifyComponents(ecs *Ecs, components ...any) set[componentId] {
	res := make(set[componentId])
	for _, c := range components {
		t := reflect.TypeOf(c)
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		res[ecs.getComponentId(t)] = struct{}{}
	}

	return res
}

func identifyComponent[A any](ecs *Ecs) componentId {
	return ecs.getComponentId(reflect.TypeFor[A]())
}
