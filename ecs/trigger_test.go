package ecs_test

import (
	"testing"

	"github.com/fenwickengine/core/ecs"
)

// go test -run ^TestOnAddTriggerFiresOnStructuralAdd$ ./ecs -count 1
func TestOnAddTriggerFiresOnStructuralAdd(t *testing.T) {
	w := ecs.NewWorld(4)
	var fired []ecs.Entity
	w.Scheduler().AddTrigger(ecs.ReactiveTrigger{
		Name:      "on_position_add",
		Component: ecs.TypeID[Position](w),
		Event:     ecs.OnAdd,
		Handler: func(w *ecs.World, e ecs.Entity) {
			fired = append(fired, e)
		},
	})

	e, err := w.Spawn()
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := ecs.AddComponent(w, e, Position{X: 1}); err != nil {
		t.Fatalf("AddComponent: %v", err)
	}

	if len(fired) != 1 || fired[0] != e {
		t.Fatalf("expected OnAdd to fire once for %v, got %v", e, fired)
	}

	// Overwriting an already-present component is not a structural add and
	// must not fire OnAdd again.
	if err := ecs.AddComponent(w, e, Position{X: 2}); err != nil {
		t.Fatalf("AddComponent overwrite: %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("expected OnAdd not to refire on overwrite, got %v", fired)
	}
}

// go test -run ^TestOnRemoveTriggerFiresOnStructuralRemove$ ./ecs -count 1
func TestOnRemoveTriggerFiresOnStructuralRemove(t *testing.T) {
	w := ecs.NewWorld(4)
	var fired []ecs.Entity
	w.Scheduler().AddTrigger(ecs.ReactiveTrigger{
		Name:      "on_position_remove",
		Component: ecs.TypeID[Position](w),
		Event:     ecs.OnRemove,
		Handler: func(w *ecs.World, e ecs.Entity) {
			fired = append(fired, e)
		},
	})

	e, err := w.Spawn()
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := ecs.AddComponent(w, e, Position{X: 1}); err != nil {
		t.Fatalf("AddComponent: %v", err)
	}
	ecs.RemoveComponent[Position](w, e)

	if len(fired) != 1 || fired[0] != e {
		t.Fatalf("expected OnRemove to fire once for %v, got %v", e, fired)
	}

	// Removing an absent component is a no-op and must not fire OnRemove.
	ecs.RemoveComponent[Position](w, e)
	if len(fired) != 1 {
		t.Fatalf("expected OnRemove not to refire on a no-op removal, got %v", fired)
	}
}

// go test -run ^TestCommandBufferAddComponentFiresOnAdd$ ./ecs -count 1
func TestCommandBufferAddComponentFiresOnAdd(t *testing.T) {
	w := ecs.NewWorld(4)
	var fired int
	w.Scheduler().AddTrigger(ecs.ReactiveTrigger{
		Name:      "on_position_add",
		Component: ecs.TypeID[Position](w),
		Event:     ecs.OnAdd,
		Handler:   func(w *ecs.World, e ecs.Entity) { fired++ },
	})

	e, err := w.Spawn()
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	cb := ecs.NewCommandBuffer()
	ecs.AddComponentCmd(cb, e, Position{X: 1})
	if err := cb.Apply(w); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if fired != 1 {
		t.Fatalf("expected OnAdd to fire once via CommandBuffer.Apply, got %d", fired)
	}
}
