package ecs

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"
)

// MaxInlineCommandSize bounds the component payload a CommandBuffer can
// hold inline, mirroring original_source/include/engine/ecs/command_buffer.hpp's
// u8 data[256]. A component larger than this is a contract violation
// (spec.md §4.D) and the push panics rather than silently allocating
// out-of-band storage.
const MaxInlineCommandSize = 256

// placeholderBit marks an Entity.Index returned by CommandBuffer.Spawn as
// not-yet-real: a placeholder resolved to an actual World-assigned entity
// only once Apply runs the queued spawn command, per spec.md §4.D.
const placeholderBit = uint32(1) << 31

type commandKind uint8

const (
	cmdSpawn commandKind = iota
	cmdDespawn
	cmdAddComponent
	cmdRemoveComponent
	cmdSetComponent
)

type command struct {
	kind     commandKind
	entity   Entity
	compType reflect.Type
	data     [MaxInlineCommandSize]byte
	dataLen  int
}

// CommandBuffer accumulates deferred structural mutations so they can be
// applied in one batch at a frame/tick boundary instead of interleaved with
// whatever is currently iterating the World, per spec.md §4.D. Recording
// calls (Spawn, Despawn, AddComponentCmd, SetComponentCmd,
// RemoveComponentCmd) are safe from multiple goroutines at once; Apply is
// not meant to run concurrently with them.
type CommandBuffer struct {
	mu              sync.Mutex
	commands        []command
	nextPlaceholder uint32
}

// NewCommandBuffer constructs an empty buffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

// Pending reports how many commands are currently queued.
func (cb *CommandBuffer) Pending() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return len(cb.commands)
}

// Spawn reserves a new entity and returns a placeholder handle for it.
// The placeholder is only valid as an argument to this same buffer's
// AddComponentCmd/SetComponentCmd/RemoveComponentCmd/Despawn calls before
// Apply runs; it
// resolves to a real World entity once the queued spawn command executes.
func (cb *CommandBuffer) Spawn() Entity {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	idx := placeholderBit | cb.nextPlaceholder
	cb.nextPlaceholder++
	e := Entity{Index: idx}
	cb.commands = append(cb.commands, command{kind: cmdSpawn, entity: e})
	return e
}

// Despawn queues e for removal at Apply time.
func (cb *CommandBuffer) Despawn(e Entity) {
	cb.push(command{kind: cmdDespawn, entity: e})
}

// AddComponentCmd queues adding (or overwriting, if e already has T)
// component value to e.
func AddComponentCmd[T any](cb *CommandBuffer, e Entity, value T) {
	cb.pushComponent(cmdAddComponent, e, typeFor[T](), unsafe.Pointer(&value), unsafe.Sizeof(value))
}

// SetComponentCmd queues overwriting e's existing component of type T. A
// no-op at Apply time if e does not carry T, per spec.md §4.D.
func SetComponentCmd[T any](cb *CommandBuffer, e Entity, value T) {
	cb.pushComponent(cmdSetComponent, e, typeFor[T](), unsafe.Pointer(&value), unsafe.Sizeof(value))
}

// RemoveComponentCmd queues removing e's component of type T.
func RemoveComponentCmd[T any](cb *CommandBuffer, e Entity) {
	cb.push(command{kind: cmdRemoveComponent, entity: e, compType: typeFor[T]()})
}

func (cb *CommandBuffer) pushComponent(kind commandKind, e Entity, typ reflect.Type, ptr unsafe.Pointer, size uintptr) {
	if size > MaxInlineCommandSize {
		panic(fmt.Sprintf("ecs: component %s (%d bytes) exceeds command buffer inline limit of %d bytes", typ, size, MaxInlineCommandSize))
	}
	cmd := command{kind: kind, entity: e, compType: typ, dataLen: int(size)}
	if size > 0 {
		copy(cmd.data[:size], unsafe.Slice((*byte)(ptr), size))
	}
	cb.push(cmd)
}

func (cb *CommandBuffer) push(cmd command) {
	cb.mu.Lock()
	cb.commands = append(cb.commands, cmd)
	cb.mu.Unlock()
}

// Clear discards every queued command without applying them.
func (cb *CommandBuffer) Clear() {
	cb.mu.Lock()
	cb.commands = cb.commands[:0]
	cb.nextPlaceholder = 0
	cb.mu.Unlock()
}

// Apply runs every queued command against w, in the order they were pushed,
// resolving placeholder entities from Spawn commands to their real World
// handles as each spawn executes. The buffer is empty again when Apply
// returns.
func (cb *CommandBuffer) Apply(w *World) error {
	cb.mu.Lock()
	commands := cb.commands
	cb.commands = nil
	cb.nextPlaceholder = 0
	cb.mu.Unlock()

	resolved := make(map[uint32]Entity, 8)
	resolve := func(e Entity) Entity {
		if e.Index&placeholderBit == 0 {
			return e
		}
		return resolved[e.Index]
	}

	for _, cmd := range commands {
		switch cmd.kind {
		case cmdSpawn:
			real, err := w.Spawn()
			if err != nil {
				return err
			}
			resolved[cmd.entity.Index] = real
		case cmdDespawn:
			w.Despawn(resolve(cmd.entity))
		case cmdAddComponent, cmdSetComponent:
			applyComponentWrite(w, resolve(cmd.entity), cmd.compType, cmd.data[:cmd.dataLen], cmd.kind == cmdSetComponent)
		case cmdRemoveComponent:
			applyComponentRemove(w, resolve(cmd.entity), cmd.compType)
		}
	}
	return nil
}

// applyComponentWrite is the type-erased counterpart to AddComponent/
// SetComponent: the command buffer only has a reflect.Type and raw bytes by
// the time Apply runs, not a generic parameter, so it re-derives the
// archetype transition World.AddComponent performs rather than calling it.
func applyComponentWrite(w *World, e Entity, typ reflect.Type, data []byte, setOnly bool) {
	if !w.Alive(e) {
		return
	}
	id := w.components.idFor(typ)
	rec := &w.records[e.Index]
	src := rec.archetype

	if src.has(id) {
		src.column(id).writeAt(rec.row, bytesPtr(data))
		return
	}
	if setOnly {
		return
	}

	target := w.archetypeForAdd(src, id)
	row, err := target.addEntity(Entity{Index: e.Index, Generation: e.Generation})
	if err != nil {
		panic(err)
	}
	copyComponents(src, rec.row, target, row)
	target.column(id).writeAt(row, bytesPtr(data))

	moved := src.removeEntity(rec.row)
	if !moved.IsNull() {
		w.records[moved.Index].row = rec.row
	}
	rec.archetype = target
	rec.row = row
	w.scheduler.fireTriggers(id, OnAdd, e)
}

func applyComponentRemove(w *World, e Entity, typ reflect.Type) {
	if !w.Alive(e) {
		return
	}
	id, ok := w.components.idForRegistered(typ)
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

func bytesPtr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

// CommandBufferPool reuses CommandBuffers across ticks/workers to avoid
// reallocating their backing slice every frame, the same pooling idiom
// DangerosoDavo-ecs's command buffer uses.
type CommandBufferPool struct {
	pool sync.Pool
}

// NewCommandBufferPool constructs a pool that vends fresh buffers on miss.
func NewCommandBufferPool() *CommandBufferPool {
	p := &CommandBufferPool{}
	p.pool.New = func() any { return NewCommandBuffer() }
	return p
}

// Get retrieves a buffer from the pool, or a fresh one if empty.
func (p *CommandBufferPool) Get() *CommandBuffer {
	return p.pool.Get().(*CommandBuffer)
}

// Put clears buf and returns it to the pool.
func (p *CommandBufferPool) Put(buf *CommandBuffer) {
	if buf == nil {
		return
	}
	buf.Clear()
	p.pool.Put(buf)
}
