package parallel_test

import (
	"testing"

	"github.com/fenwickengine/core/ecs"
	"github.com/fenwickengine/core/job"
	"github.com/fenwickengine/core/parallel"
)

type health struct{ HP int }
type shield struct{ SP int }
type mana struct{ MP int }

func newWorldWithEntities(t *testing.T, n int) *ecs.World {
	t.Helper()
	w := ecs.NewWorld(n)
	for i := 0; i < n; i++ {
		e, err := w.Spawn()
		if err != nil {
			t.Fatalf("Spawn: %v", err)
		}
		if err := ecs.AddComponent(w, e, health{HP: 10}); err != nil {
			t.Fatalf("AddComponent health: %v", err)
		}
		if err := ecs.AddComponent(w, e, shield{SP: 5}); err != nil {
			t.Fatalf("AddComponent shield: %v", err)
		}
		if err := ecs.AddComponent(w, e, mana{MP: 3}); err != nil {
			t.Fatalf("AddComponent mana: %v", err)
		}
	}
	return w
}

// go test -run ^TestParallelStagePartitionsDisjointWritesIntoOneWave$ ./parallel -count 1
func TestParallelStagePartitionsDisjointWritesIntoOneWave(t *testing.T) {
	w := ecs.NewWorld(1)
	regen := parallel.System{
		Name:   "regen_health",
		Writes: []ecs.ComponentID{ecs.TypeID[health](w)},
		Execute: func(*ecs.World, *ecs.CommandBuffer) {},
	}
	drain := parallel.System{
		Name:   "drain_mana",
		Writes: []ecs.ComponentID{ecs.TypeID[mana](w)},
		Execute: func(*ecs.World, *ecs.CommandBuffer) {},
	}

	js := job.New(2, nil)
	defer js.Shutdown()
	stage := parallel.NewParallelStage(js, []parallel.System{regen, drain})

	if len(stage.Waves()) != 1 {
		t.Fatalf("expected systems with disjoint write-sets to share one wave, got %d waves", len(stage.Waves()))
	}
}

// go test -run ^TestParallelStageSeparatesConflictingWrites$ ./parallel -count 1
func TestParallelStageSeparatesConflictingWrites(t *testing.T) {
	w := ecs.NewWorld(1)
	a := parallel.System{
		Name:   "writer_a",
		Writes: []ecs.ComponentID{ecs.TypeID[health](w)},
		Execute: func(*ecs.World, *ecs.CommandBuffer) {},
	}
	b := parallel.System{
		Name:   "writer_b",
		Writes: []ecs.ComponentID{ecs.TypeID[health](w)},
		Execute: func(*ecs.World, *ecs.CommandBuffer) {},
	}

	js := job.New(2, nil)
	defer js.Shutdown()
	stage := parallel.NewParallelStage(js, []parallel.System{a, b})

	if len(stage.Waves()) != 2 {
		t.Fatalf("expected systems with conflicting write-sets to land in separate waves, got %d waves", len(stage.Waves()))
	}
}

// go test -run ^TestParallelStageEquivalentToSerialExecution$ ./parallel -count 1
//
// Two systems with disjoint write-sets (health vs. mana) must produce the
// same final World state whether run through a ParallelStage wave or
// applied one after another directly to the World.
func TestParallelStageEquivalentToSerialExecution(t *testing.T) {
	const n = 8

	runParallel := func() *ecs.World {
		w := newWorldWithEntities(t, n)
		regenHealth := parallel.System{
			Name:   "regen_health",
			Writes: []ecs.ComponentID{ecs.TypeID[health](w)},
			Execute: func(w *ecs.World, cb *ecs.CommandBuffer) {
				ecs.ForEach1(w, nil, func(e ecs.Entity, _ *health) {
					ecs.SetComponentCmd(cb, e, health{HP: 20})
				})
			},
		}
		drainMana := parallel.System{
			Name:   "drain_mana",
			Writes: []ecs.ComponentID{ecs.TypeID[mana](w)},
			Execute: func(w *ecs.World, cb *ecs.CommandBuffer) {
				ecs.ForEach1(w, nil, func(e ecs.Entity, _ *mana) {
					ecs.SetComponentCmd(cb, e, mana{MP: 0})
				})
			},
		}

		js := job.New(4, nil)
		defer js.Shutdown()
		stage := parallel.NewParallelStage(js, []parallel.System{regenHealth, drainMana})
		if err := stage.Run(w); err != nil {
			t.Fatalf("ParallelStage.Run: %v", err)
		}
		return w
	}

	runSerial := func() *ecs.World {
		w := newWorldWithEntities(t, n)
		ecs.ForEach1(w, nil, func(e ecs.Entity, h *health) { h.HP = 20 })
		ecs.ForEach1(w, nil, func(e ecs.Entity, m *mana) { m.MP = 0 })
		return w
	}

	parallelWorld := runParallel()
	serialWorld := runSerial()

	var parallelHP, serialHP []int
	ecs.ForEach1(parallelWorld, nil, func(e ecs.Entity, h *health) { parallelHP = append(parallelHP, h.HP) })
	ecs.ForEach1(serialWorld, nil, func(e ecs.Entity, h *health) { serialHP = append(serialHP, h.HP) })

	if len(parallelHP) != len(serialHP) {
		t.Fatalf("expected same entity count, got %d vs %d", len(parallelHP), len(serialHP))
	}
	for _, hp := range parallelHP {
		if hp != 20 {
			t.Errorf("expected every entity's HP == 20 after the parallel wave, got %d", hp)
		}
	}

	var parallelMP []int
	ecs.ForEach1(parallelWorld, nil, func(e ecs.Entity, m *mana) { parallelMP = append(parallelMP, m.MP) })
	for _, mp := range parallelMP {
		if mp != 0 {
			t.Errorf("expected every entity's MP == 0 after the parallel wave, got %d", mp)
		}
	}
}
