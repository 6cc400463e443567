package ecs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fenwickengine/core/ecs"
	"github.com/fenwickengine/core/resource"
)

type loadedAtlas struct {
	handle resource.Handle
}

type loadedSheet struct {
	handle resource.Handle
}

// go test -run ^TestResourcesAddManagedUnloadsBackingFileOnRemove$ ./ecs -count 1
func TestResourcesAddManagedUnloadsBackingFileOnRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "atlas.bin")
	if err := os.WriteFile(path, []byte("pixels"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var unloaded bool
	mgr := resource.NewManager(nil)
	mgr.RegisterLoader(".bin", func(path string, data []byte) (resource.Handle, resource.Destructor, error) {
		return resource.Handle(1), func() { unloaded = true }, nil
	})

	handle, err := mgr.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	r := ecs.NewResources()
	id := r.AddManaged(&loadedAtlas{handle: handle}, func() { mgr.Unload(path) })

	r.Remove(id)
	if !unloaded {
		t.Fatalf("expected Remove to unload the backing resource through the Manager")
	}
	if r.Has(id) {
		t.Fatalf("expected the resource slot to be freed after Remove")
	}
}

// go test -run ^TestResourcesClearUnloadsEveryManagedBacking$ ./ecs -count 1
func TestResourcesClearUnloadsEveryManagedBacking(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.bin")
	pathB := filepath.Join(dir, "b.bin")
	for _, p := range []string{pathA, pathB} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	unloadCount := 0
	mgr := resource.NewManager(nil)
	mgr.RegisterLoader(".bin", func(path string, data []byte) (resource.Handle, resource.Destructor, error) {
		return resource.Handle(1), func() { unloadCount++ }, nil
	})

	hA, err := mgr.Load(pathA)
	if err != nil {
		t.Fatalf("Load a: %v", err)
	}
	hB, err := mgr.Load(pathB)
	if err != nil {
		t.Fatalf("Load b: %v", err)
	}

	r := ecs.NewResources()
	r.AddManaged(&loadedAtlas{handle: hA}, func() { mgr.Unload(pathA) })
	r.AddManaged(&loadedSheet{handle: hB}, func() { mgr.Unload(pathB) })

	r.Clear()
	if unloadCount != 2 {
		t.Fatalf("expected Clear to unload both managed resources, got %d", unloadCount)
	}
}
