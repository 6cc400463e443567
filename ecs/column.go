package ecs

import (
	"reflect"
	"unsafe"

	"github.com/rotisserie/eris"
)

// columnInitialCapacity is the first capacity a column grows to; spec.md
// §4.A: "geometric 2x growth starting at 64".
const columnInitialCapacity = 64

// column is one component type's contiguous SoA buffer within an archetype.
// Storage is a reflect-backed slice of the concrete component type rather
// than a raw []byte buffer, the same type-erasure idiom the teacher uses in
// getOrCreateArchetype: it gets correct alignment and zero-initialization
// from the Go runtime's slice allocator for free.
type column struct {
	typ      reflect.Type
	elemSize uintptr
	ptr      unsafe.Pointer
	count    uint32
	capacity uint32
}

func newColumn(typ reflect.Type) *column {
	return &column{typ: typ, elemSize: typ.Size()}
}

// grow reallocates the backing slice to at least minCapacity elements, preserving
// existing data. Returns an error wrapping the out-of-memory condition if
// the runtime allocator cannot satisfy the request; this is the column
// store's one real (non-panic) error path, per spec.md §7.
func (c *column) grow(minCapacity uint32) error {
	newCap := c.capacity
	if newCap == 0 {
		newCap = columnInitialCapacity
	}
	for newCap < minCapacity {
		newCap *= 2
	}
	var newPtr unsafe.Pointer
	ok := func() (success bool) {
		defer func() {
			if recover() != nil {
				success = false
			}
		}()
		slice := reflect.MakeSlice(reflect.SliceOf(c.typ), int(newCap), int(newCap))
		newPtr = slice.UnsafePointer()
		return true
	}()
	if !ok {
		return eris.Errorf("ecs: column growth allocation failed for %s at capacity %d", c.typ, newCap)
	}
	if c.count > 0 {
		memCopy(newPtr, c.ptr, uintptr(c.count)*c.elemSize)
	}
	c.ptr = newPtr
	c.capacity = newCap
	return nil
}

// pushZero appends a zero-initialized element and returns its row. Grows the
// backing slice first if full.
func (c *column) pushZero() (uint32, error) {
	if c.count >= c.capacity {
		if err := c.grow(c.count + 1); err != nil {
			return 0, err
		}
	}
	row := c.count
	c.zeroRow(row)
	c.count++
	return row, nil
}

func (c *column) zeroRow(row uint32) {
	dst := unsafe.Add(c.ptr, uintptr(row)*c.elemSize)
	b := unsafe.Slice((*byte)(dst), c.elemSize)
	for i := range b {
		b[i] = 0
	}
}

// at returns a pointer to the element at row. The caller must ensure
// row < count; this is a contract violation otherwise (spec.md §4.A).
func (c *column) at(row uint32) unsafe.Pointer {
	if row >= c.count {
		panic("ecs: column read out of range")
	}
	return unsafe.Add(c.ptr, uintptr(row)*c.elemSize)
}

// writeAt memcpys elemSize bytes from src into the element at row.
func (c *column) writeAt(row uint32, src unsafe.Pointer) {
	dst := c.at(row)
	memCopy(dst, src, c.elemSize)
}

// swapRemove overwrites row with the last element and truncates. O(1).
func (c *column) swapRemove(row uint32) {
	if row >= c.count {
		panic("ecs: column swap-remove out of range")
	}
	last := c.count - 1
	if row < last {
		dst := unsafe.Add(c.ptr, uintptr(row)*c.elemSize)
		src := unsafe.Add(c.ptr, uintptr(last)*c.elemSize)
		memCopy(dst, src, c.elemSize)
	}
	c.count--
}

// memCopy copies size bytes from src to dst. Components are required to be
// trivially copyable (spec.md §3), so a flat byte copy is always correct.
func memCopy(dst, src unsafe.Pointer, size uintptr) {
	if size == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), size), unsafe.Slice((*byte)(src), size))
}
