package ecs

import "reflect"

// teardown releases whatever a resource slot was backed by outside the
// ECS's own bookkeeping. The ECS never holds a *resource.Manager itself
// (spec.md §6: "The ECS does not depend on this [resource manager
// boundary]") — a caller that loaded a global value through one closes
// over the Manager/path/Handle it needs and hands Resources only this
// opaque callback.
type teardown func()

// Resources manages a collection of global, non-entity values keyed by
// type: the mechanism render/physics/audio/script collaborators use to
// reach shared state without going through an entity (spec.md §6). A
// resource can optionally carry a teardown callback, set by the caller at
// AddManaged time, so removing or clearing the global value also releases
// whatever external state it was backed by (a loaded file, a GPU texture)
// without Resources knowing anything about what that state is.
type Resources struct {
	items    []any
	types    map[reflect.Type]int
	freeIDs  []int
	teardown map[int]teardown
}

// NewResources constructs an empty resource store.
func NewResources() *Resources {
	return &Resources{types: make(map[reflect.Type]int), teardown: make(map[int]teardown)}
}

// Add registers res under its concrete type and returns its index. Adding a
// second resource of a type already present is a contract violation and
// panics, per spec.md §7.
func (r *Resources) Add(res any) int {
	if res == nil {
		panic("ecs: cannot add nil resource")
	}
	t := reflect.TypeOf(res)
	if _, ok := r.types[t]; ok {
		panic("ecs: resource of type " + t.String() + " already exists")
	}
	var id int
	if n := len(r.freeIDs); n > 0 {
		id = r.freeIDs[n-1]
		r.freeIDs = r.freeIDs[:n-1]
		r.items[id] = res
	} else {
		r.items = append(r.items, res)
		id = len(r.items) - 1
	}
	r.types[t] = id
	return id
}

// AddManaged registers res the same way Add does, but additionally runs
// release when res is later torn down (via Remove or Clear). The caller is
// responsible for closing over whatever release actually needs to do — for
// a resource loaded through a resource.Manager, that is typically
// `func() { mgr.Unload(path) }` — so a global resource backed by external
// state never outlives that state without Resources itself depending on
// what kind of state it is.
func (r *Resources) AddManaged(res any, release func()) int {
	id := r.Add(res)
	r.teardown[id] = release
	return id
}

// Has reports whether id currently names a live resource.
func (r *Resources) Has(id int) bool {
	return id >= 0 && id < len(r.items) && r.items[id] != nil
}

// Get returns the resource at id, or nil if it does not exist.
func (r *Resources) Get(id int) any {
	if !r.Has(id) {
		return nil
	}
	return r.items[id]
}

// Remove drops the resource at id, freeing the index for reuse, and runs
// its release callback if it was added via AddManaged. Removing an absent
// id is a no-op, per spec.md §7's soft-failure design.
func (r *Resources) Remove(id int) {
	if !r.Has(id) {
		return
	}
	t := reflect.TypeOf(r.items[id])
	delete(r.types, t)
	r.items[id] = nil
	r.freeIDs = append(r.freeIDs, id)
	if release, ok := r.teardown[id]; ok {
		release()
		delete(r.teardown, id)
	}
}

// Clear removes every resource, resetting the store to empty, and runs
// every release callback registered via AddManaged.
func (r *Resources) Clear() {
	for i := range r.items {
		r.items[i] = nil
	}
	r.items = r.items[:0]
	clear(r.types)
	r.freeIDs = r.freeIDs[:0]
	for _, release := range r.teardown {
		release()
	}
	clear(r.teardown)
}

// HasResource reports whether a resource of type T exists, and its index.
// Like GetResource, it looks for a resource that was added as a *T.
func HasResource[T any](r *Resources) (bool, int) {
	t := typeFor[*T]()
	id, ok := r.types[t]
	return ok, idOr(ok, id)
}

func idOr(ok bool, id int) int {
	if ok {
		return id
	}
	return -1
}

// GetResource returns the resource of type T and its index, or (nil, -1) if
// none is registered.
func GetResource[T any](r *Resources) (*T, int) {
	t := typeFor[*T]()
	id, ok := r.types[t]
	if !ok {
		return nil, -1
	}
	res, ok := r.items[id].(*T)
	if !ok {
		return nil, -1
	}
	return res, id
}
