package ecs

import (
	"unsafe"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// World owns entity records, the archetype registry, the component
// registry, the resource store and the system scheduler that operate on
// them. It holds no CommandBuffer of its own: buffers are separate values
// created with NewCommandBuffer and applied to a World with Apply. One
// World exists per simulation (spec.md §9) — there is no global singleton.
type World struct {
	components componentRegistry
	records    []entityRecord
	freeIndices []uint32

	archetypesByID map[archetypeID]*archetype
	archetypesByMask map[bitmask256]*archetype
	archetypeList  []*archetype
	empty          *archetype

	addTransitions    map[*archetype]map[ComponentID]*archetype
	removeTransitions map[*archetype]map[ComponentID]*archetype

	resources *Resources
	scheduler *SystemScheduler

	logger *zap.Logger
}

// NewWorld creates an empty World. initialCapacity pre-sizes the entity
// record table; it is an optimization hint, not a hard limit — the table
// grows on demand.
func NewWorld(initialCapacity int) *World {
	w := &World{
		components:        newComponentRegistry(),
		records:           make([]entityRecord, 1, max(initialCapacity, 1)+1),
		archetypesByID:    make(map[archetypeID]*archetype),
		archetypesByMask:  make(map[bitmask256]*archetype),
		addTransitions:    make(map[*archetype]map[ComponentID]*archetype),
		removeTransitions: make(map[*archetype]map[ComponentID]*archetype),
		resources:         NewResources(),
		logger:            zap.NewNop(),
	}
	w.scheduler = newSystemScheduler(w)
	w.empty = w.getOrCreateArchetype(bitmask256{}, nil)
	return w
}

// SetLogger installs a structured logger for diagnostics. The ECS hot path
// (component add/remove/get/query) never logs, per spec.md §7's "quiet
// tolerance" design. The World stores the logger, but none of its
// operations, including reactive-trigger dispatch, write to it; it is safe
// to leave at the zap.NewNop() default.
func (w *World) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w.logger = logger
}

// Resources returns the World's global key-by-type resource store — the
// mechanism render/physics/audio/script collaborators use to reach shared,
// non-entity state (spec.md §6).
func (w *World) Resources() *Resources {
	return w.resources
}

// Scheduler returns the World's serial system scheduler (spec.md §4.C).
func (w *World) Scheduler() *SystemScheduler {
	return w.scheduler
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// --- entity allocation -----------------------------------------------------

// Spawn allocates a new entity with no components and returns its handle.
// Returns an error only if the entity record table could not grow (resource
// exhaustion, spec.md §7); in practice this only happens on genuine
// allocator failure.
func (w *World) Spawn() (Entity, error) {
	idx, err := w.allocIndex()
	if err != nil {
		return NullEntity, err
	}
	rec := &w.records[idx]
	rec.archetype = w.empty
	row, err := w.empty.addEntity(Entity{Index: idx, Generation: rec.generation})
	if err != nil {
		rec.alive = false
		w.freeIndices = append(w.freeIndices, idx)
		return NullEntity, err
	}
	rec.row = row
	return Entity{Index: idx, Generation: rec.generation}, nil
}

// allocIndex reserves a record slot (reusing a freed index if one exists)
// and bumps its generation, leaving rec.archetype/rec.row for the caller to
// fill in once it knows which archetype the entity lands in. Factored out
// of Spawn so Batch's bulk-creation path can reuse the same free-list
// bookkeeping without going through the single-component AddComponent
// migration path once per entity.
func (w *World) allocIndex() (uint32, error) {
	var idx uint32
	if n := len(w.freeIndices); n > 0 {
		idx = w.freeIndices[n-1]
		w.freeIndices = w.freeIndices[:n-1]
	} else {
		idx = uint32(len(w.records))
		if func() (grew bool) {
			defer func() {
				if recover() != nil {
					grew = false
				}
			}()
			w.records = append(w.records, entityRecord{})
			return true
		}() == false {
			return 0, eris.New("ecs: failed to grow entity record table")
		}
	}
	rec := &w.records[idx]
	rec.generation++
	rec.alive = true
	return idx, nil
}

// Alive reports whether e refers to a currently live entity. Stale handles
// (index reused with a different generation, or out-of-range index) report
// false rather than panicking, per spec.md §3's handle invariant.
func (w *World) Alive(e Entity) bool {
	if e.Index == 0 || int(e.Index) >= len(w.records) {
		return false
	}
	rec := &w.records[e.Index]
	return rec.alive && rec.generation == e.Generation
}

// Despawn removes e from its archetype (if any) and frees its index for
// reuse. Idempotent: despawning a dead or stale handle is a no-op, per
// spec.md §4.C/§7's soft-failure design.
func (w *World) Despawn(e Entity) {
	if !w.Alive(e) {
		return
	}
	rec := &w.records[e.Index]
	w.removeFromArchetype(rec)
	rec.alive = false
	rec.archetype = nil
	rec.row = 0
	w.freeIndices = append(w.freeIndices, e.Index)
}

// removeFromArchetype swap-removes rec's entity from its current archetype
// and fixes up the record of whichever entity was swapped into its row.
func (w *World) removeFromArchetype(rec *entityRecord) {
	a := rec.archetype
	if a == nil {
		return
	}
	moved := a.removeEntity(rec.row)
	if !moved.IsNull() {
		w.records[moved.Index].row = rec.row
	}
}

// --- archetype registry -----------------------------------------------------

// getOrCreateArchetype returns the archetype for the given (mask, sortedIDs)
// pair, creating one with fresh columns if it does not exist yet.
func (w *World) getOrCreateArchetype(mask bitmask256, sortedIDs []ComponentID) *archetype {
	if a, ok := w.archetypesByMask[mask]; ok {
		return a
	}
	columns := make([]*column, len(sortedIDs))
	for i, id := range sortedIDs {
		desc := w.components.descriptor(id)
		columns[i] = newColumn(desc.typ)
	}
	id := computeArchetypeID(sortedIDs)
	a := newArchetype(id, mask, append([]ComponentID(nil), sortedIDs...), columns)
	w.archetypesByID[id] = a
	w.archetypesByMask[mask] = a
	w.archetypeList = append(w.archetypeList, a)
	return a
}

func sortedIDsWith(ids []ComponentID, add ComponentID) []ComponentID {
	out := make([]ComponentID, 0, len(ids)+1)
	inserted := false
	for _, id := range ids {
		if id == add {
			return append([]ComponentID(nil), ids...)
		}
		if !inserted && id > add {
			out = append(out, add)
			inserted = true
		}
		out = append(out, id)
	}
	if !inserted {
		out = append(out, add)
	}
	return out
}

func sortedIDsWithout(ids []ComponentID, remove ComponentID) []ComponentID {
	out := make([]ComponentID, 0, len(ids))
	for _, id := range ids {
		if id != remove {
			out = append(out, id)
		}
	}
	return out
}

// --- component mutation ------------------------------------------------------

// AddComponent sets entity e's component of type T to value, migrating e to
// a new archetype if it does not already carry T. This is the key algorithm
// of spec.md §4.C: compute the target component set, find-or-create the
// target archetype, copy every existing component across, write the new
// one, swap-remove from the source, and fix up the record of whatever
// entity the swap-remove relocated.
func AddComponent[T any](w *World, e Entity, value T) error {
	if !w.Alive(e) {
		return nil
	}
	id := ComponentIDOf[T](w)
	rec := &w.records[e.Index]
	src := rec.archetype

	if src.has(id) {
		src.column(id).writeAt(rec.row, unsafe.Pointer(&value))
		return nil
	}

	target := w.archetypeForAdd(src, id)
	row, err := target.addEntity(Entity{Index: e.Index, Generation: e.Generation})
	if err != nil {
		return err
	}
	copyComponents(src, rec.row, target, row)
	target.column(id).writeAt(row, unsafe.Pointer(&value))

	moved := src.removeEntity(rec.row)
	if !moved.IsNull() {
		w.records[moved.Index].row = rec.row
	}
	rec.archetype = target
	rec.row = row
	w.scheduler.fireTriggers(id, OnAdd, e)
	return nil
}

// RemoveComponent removes entity e's component of type T, migrating it to
// the archetype for its remaining component set (the empty archetype if T
// was its only component). Removing an absent component is a no-op
// (spec.md §7 soft failure).
func RemoveComponent[T any](w *World, e Entity) {
	if !w.Alive(e) {
		return
	}
	id, ok := w.components.idForRegistered(typeFor[T]())
	if !ok {
		return
	}
	rec := &w.records[e.Index]
	src := rec.archetype
	if !src.has(id) {
		return
	}

	target := w.archetypeForRemove(src, id)
	row, err := target.addEntity(Entity{Index: e.Index, Generation: e.Generation})
	if err != nil {
		// Removal shrinks storage; allocation failure here would be
		// surprising, but surface it the same way growth failures are
		// surfaced elsewhere rather than silently corrupting state.
		panic(err)
	}
	copyComponents(src, rec.row, target, row)

	moved := src.removeEntity(rec.row)
	if !moved.IsNull() {
		w.records[moved.Index].row = rec.row
	}
	rec.archetype = target
	rec.row = row
	w.scheduler.fireTriggers(id, OnRemove, e)
}

// GetComponent returns a pointer to entity e's component of type T, or nil
// if e is dead or lacks T. The pointer is borrowed: valid until the next
// structural mutation of e's archetype (spec.md §5).
func GetComponent[T any](w *World, e Entity) *T {
	if !w.Alive(e) {
		return nil
	}
	id, ok := w.components.idForRegistered(typeFor[T]())
	if !ok {
		return nil
	}
	rec := &w.records[e.Index]
	col := rec.archetype.column(id)
	if col == nil {
		return nil
	}
	return (*T)(col.at(rec.row))
}

// HasComponent reports whether entity e currently carries a component of
// type T.
func HasComponent[T any](w *World, e Entity) bool {
	if !w.Alive(e) {
		return false
	}
	id, ok := w.components.idForRegistered(typeFor[T]())
	if !ok {
		return false
	}
	return w.records[e.Index].archetype.has(id)
}

// SetComponent overwrites entity e's existing component of type T in place.
// Setting a component e does not have is a no-op (spec.md §4.D "SetComponent
// on a missing component is a no-op").
func SetComponent[T any](w *World, e Entity, value T) {
	p := GetComponent[T](w, e)
	if p == nil {
		return
	}
	*p = value
}

func (w *World) archetypeForAdd(src *archetype, id ComponentID) *archetype {
	if m, ok := w.addTransitions[src]; ok {
		if target, ok := m[id]; ok {
			return target
		}
	}
	newMask := src.mask
	newMask.set(id)
	sortedIDs := sortedIDsWith(src.sortedIDs, id)
	target := w.getOrCreateArchetype(newMask, sortedIDs)
	if w.addTransitions[src] == nil {
		w.addTransitions[src] = make(map[ComponentID]*archetype)
	}
	w.addTransitions[src][id] = target
	return target
}

func (w *World) archetypeForRemove(src *archetype, id ComponentID) *archetype {
	if m, ok := w.removeTransitions[src]; ok {
		if target, ok := m[id]; ok {
			return target
		}
	}
	newMask := src.mask
	newMask.unset(id)
	sortedIDs := sortedIDsWithout(src.sortedIDs, id)
	target := w.getOrCreateArchetype(newMask, sortedIDs)
	if w.removeTransitions[src] == nil {
		w.removeTransitions[src] = make(map[ComponentID]*archetype)
	}
	w.removeTransitions[src][id] = target
	return target
}

// copyComponents copies every component src and dst have in common from
// srcRow to dstRow.
func copyComponents(src *archetype, srcRow uint32, dst *archetype, dstRow uint32) {
	for _, id := range src.sortedIDs {
		dstCol := dst.column(id)
		if dstCol == nil {
			continue
		}
		srcCol := src.column(id)
		dstCol.writeAt(dstRow, srcCol.at(srcRow))
	}
}

// EntityCount returns the total number of live entities across all
// archetypes.
func (w *World) EntityCount() int {
	n := 0
	for _, a := range w.archetypeList {
		n += a.count()
	}
	return n
}

// ArchetypeCount returns the number of distinct archetypes the World has
// created so far.
func (w *World) ArchetypeCount() int {
	return len(w.archetypeList)
}
