package gekko

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuery_Map(t *testing.T) {
	type Comp1 struct{ a int }
	type Comp2 struct{ b float32 }
	type Comp3 struct{}

	ecs := MakeEcs()
	ecs.addEntity(Comp1{a: 1})                                 // comp1 only                       -- shouldn't match
	id2 := ecs.addEntity(Comp1{a: 2}, Comp2{b: 1.37})          // comp1 & comp2                    -- should match
	id3 := ecs.addEntity(Comp1{a: 3}, Comp2{b: 4.20}, Comp3{}) // comp1 & comp2 + something extra  -- should match
	ecs.addEntity(Comp1{a: 4}, Comp3{})                        // comp1 + something extra          -- shouldn't match
	ecs.addEntity(Comp2{b: 3.14})                              // comp2 only                       -- shouldn't match

	query := Query2[Comp1, Comp2]{ecs: &ecs}

	type result struct {
		a Comp1
		b Comp2
	}
	got := map[EntityId]result{}
	query.Map(func(entityId EntityId, comp1 *Comp1, comp2 *Comp2) bool {
		got[entityId] = result{*comp1, *comp2}
		return true
	})

	assert.Equal(t, map[EntityId]result{
		id2: {Comp1{a: 2}, Comp2{b: 1.37}},
		id3: {Comp1{a: 3}, Comp2{b: 4.20}},
	}, got)
}

func TestQuery_Optionals(t *testing.T) {
	type Comp1 struct{ a int }
	type Comp2 struct{ b int }

	ecs := MakeEcs()
	with := ecs.addEntity(Comp1{a: 1}, Comp2{b: 2})
	without := ecs.addEntity(Comp1{a: 3})

	seen := map[EntityId]bool{}
	Query2[Comp1, Comp2]{ecs: &ecs}.Map(func(eid EntityId, c1 *Comp1, c2 *Comp2) bool {
		seen[eid] = c2 != nil
		return true
	}, Comp2{})

	assert.Equal(t, map[EntityId]bool{with: true, without: false}, seen)
}

func TestQuery_WithoutTypes(t *testing.T) {
	type Comp1 struct{ a int }
	type Tag struct{}

	ecs := MakeEcs()
	plain := ecs.addEntity(Comp1{a: 1})
	ecs.addEntity(Comp1{a: 2}, Tag{})

	var ids []EntityId
	Query1[Comp1]{ecs: &ecs}.WithoutTypes(Tag{}).Map(func(eid EntityId, c *Comp1) bool {
		ids = append(ids, eid)
		return true
	})

	assert.Equal(t, []EntityId{plain}, ids)
}

func TestQuery_StopsWhenCallbackReturnsFalse(t *testing.T) {
	type Comp1 struct{ a int }

	ecs := MakeEcs()
	for i := 0; i < 5; i++ {
		ecs.addEntity(Comp1{a: i})
	}

	calls := 0
	Query1[Comp1]{ecs: &ecs}.Map(func(eid EntityId, c *Comp1) bool {
		calls++
		return false
	})

	assert.Equal(t, 1, calls)
}

func TestQuery_MutatesStorage(t *testing.T) {
	type Counter struct{ n int }

	app := NewApp()
	cmd := app.Commands()
	eid := cmd.AddEntity(Counter{n: 1})
	app.FlushCommands()

	MakeQuery1[Counter](cmd).Map(func(_ EntityId, c *Counter) bool {
		c.n += 10
		return true
	})

	c, ok := GetComponent[Counter](cmd, eid)
	assert.True(t, ok)
	assert.Equal(t, 11, c.n)

	_, ok = GetComponent[Parent](cmd, eid)
	assert.False(t, ok)
}
