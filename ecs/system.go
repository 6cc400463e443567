package ecs

import (
	"github.com/kelindar/bitmap"
)

// TriggerEvent identifies which structural change a ReactiveTrigger fires
// on (spec.md §4.C).
type TriggerEvent uint8

const (
	OnAdd TriggerEvent = iota
	OnRemove
	OnChange
)

// SystemDesc declares one system's name, advisory read/write sets, ordering
// dependencies, and execute callable (spec.md §4.C, grounded on
// original_source/include/engine/ecs/system.hpp's SystemDesc).
type SystemDesc struct {
	Name     string
	Reads    []ComponentID
	Writes   []ComponentID
	RunAfter []string
	Execute  func(*World)
}

// ReactiveTrigger fires when a component add/remove happens, or when a
// writer explicitly calls World.NotifyChange for OnChange — true mutation
// interception of raw pointer writes is not possible without copy-on-write
// columns, so OnChange is opt-in caller cooperation, per spec.md §4.C/§9.
type ReactiveTrigger struct {
	Name      string
	Component ComponentID
	Event     TriggerEvent
	Handler   func(*World, Entity)
}

// readWriteSet bundles a system's advisory component dependencies as a
// kelindar/bitmap.Bitmap, grounded on Argus-Labs-world-engine's
// systemScheduler.deps field — cheap to union/intersect for a future
// parallel scheduler, even though the baseline executes serially.
type readWriteSet struct {
	reads  bitmap.Bitmap
	writes bitmap.Bitmap
}

func newReadWriteSet(reads, writes []ComponentID) readWriteSet {
	var rw readWriteSet
	for _, id := range reads {
		rw.reads.Set(uint32(id))
	}
	for _, id := range writes {
		rw.writes.Set(uint32(id))
	}
	return rw
}

// conflictsWith reports whether two systems' declared sets overlap in a way
// that forbids running them concurrently: either writes the other reads or
// writes, in either direction. Overlap is tested the way
// Argus-Labs-world-engine's buildDependencyGraph tests it — ranging over
// one bitmap's set bits and probing Contains on the other.
func (rw readWriteSet) conflictsWith(other readWriteSet) bool {
	return overlaps(rw.writes, other.reads) ||
		overlaps(rw.writes, other.writes) ||
		overlaps(other.writes, rw.reads)
}

func overlaps(a, b bitmap.Bitmap) bool {
	found := false
	a.Range(func(x uint32) {
		if !found && b.Contains(x) {
			found = true
		}
	})
	return found
}

type registeredSystem struct {
	desc SystemDesc
	rw   readWriteSet
}

// SystemScheduler orders and runs systems registered against a World. The
// baseline scheduler, per spec.md §4.C, computes a topological order via
// Kahn's algorithm over run_after edges and invokes systems sequentially;
// read/write sets are advisory metadata for parallel.ParallelStage, not
// used to parallelize this scheduler's own Run.
type SystemScheduler struct {
	world    *World
	systems  []registeredSystem
	triggers []ReactiveTrigger
}

func newSystemScheduler(w *World) *SystemScheduler {
	return &SystemScheduler{world: w}
}

// SystemsConflict reports whether two SystemDescs' declared read/write sets
// overlap in a way that forbids running them concurrently. Exported for
// parallel.ParallelStage's wave partitioning, which lives outside this
// package (it also depends on the job package) but needs this test without
// reaching into the bitmap-backed readWriteSet type.
func SystemsConflict(a, b SystemDesc) bool {
	rwA := newReadWriteSet(a.Reads, a.Writes)
	rwB := newReadWriteSet(b.Reads, b.Writes)
	return rwA.conflictsWith(rwB)
}

// AddSystem registers a system. Order of registration only matters as a
// tie-break among systems with no ordering constraint between them.
func (s *SystemScheduler) AddSystem(desc SystemDesc) {
	s.systems = append(s.systems, registeredSystem{
		desc: desc,
		rw:   newReadWriteSet(desc.Reads, desc.Writes),
	})
}

// AddTrigger registers a reactive trigger.
func (s *SystemScheduler) AddTrigger(trigger ReactiveTrigger) {
	s.triggers = append(s.triggers, trigger)
}

// SystemNames returns the registered systems' names, in registration order
// (not execution order).
func (s *SystemScheduler) SystemNames() []string {
	names := make([]string, len(s.systems))
	for i, sys := range s.systems {
		names[i] = sys.desc.Name
	}
	return names
}

// Run executes every registered system exactly once, in an order consistent
// with every run_after edge. An edge naming an unknown system is ignored,
// per spec.md §4.C. Systems that lie on a run_after cycle, or depend on one,
// never become ready and are not run.
func (s *SystemScheduler) Run() {
	order := s.topologicalOrder()
	for _, idx := range order {
		s.systems[idx].desc.Execute(s.world)
	}
}

func (s *SystemScheduler) topologicalOrder() []int {
	n := len(s.systems)
	nameToIdx := make(map[string]int, n)
	for i, sys := range s.systems {
		nameToIdx[sys.desc.Name] = i
	}

	// dependents[i] = systems that run_after system i.
	dependents := make([][]int, n)
	indegree := make([]int, n)
	for i, sys := range s.systems {
		for _, depName := range sys.desc.RunAfter {
			depIdx, ok := nameToIdx[depName]
			if !ok {
				continue // unknown run_after target is ignored
			}
			dependents[depIdx] = append(dependents[depIdx], i)
			indegree[i]++
		}
	}

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, n)
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		order = append(order, idx)
		for _, dep := range dependents[idx] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	return order
}

// fireTriggers invokes every registered trigger matching (component, event)
// for entity e. Called internally by the World on structural mutation
// (OnAdd/OnRemove); OnChange firing requires the caller to call
// World.NotifyChange explicitly.
func (s *SystemScheduler) fireTriggers(component ComponentID, event TriggerEvent, e Entity) {
	for _, t := range s.triggers {
		if t.Component == component && t.Event == event {
			t.Handler(s.world, e)
		}
	}
}

// NotifyChange fires any OnChange triggers registered for component on
// entity e. The World cannot intercept raw pointer writes returned by
// GetComponent, so OnChange detection is opt-in: callers that mutate a
// component in place and want reactive dispatch call this explicitly
// (spec.md §4.C, §9).
func (w *World) NotifyChange(component ComponentID, e Entity) {
	w.scheduler.fireTriggers(component, OnChange, e)
}
