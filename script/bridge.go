package script

import (
	"fmt"
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/fenwickengine/core/ecs"
)

// ComponentKind bridges one Go component type into Tengo scripts under a
// script-visible name. Since Tengo scripts only see tengo.Object values,
// the Go-generic ecs.AddComponent[T]/ecs.GetComponent[T] calls have to be
// captured as closures at registration time — one ComponentKind per
// concrete component type the embedding application wants scripts to
// touch, grounded on milk9111-sidescroller's buildAIScriptEngine pattern
// of exposing only a curated builtin surface, not the whole ECS.
type ComponentKind struct {
	Name string
	Add  func(w *ecs.World, e ecs.Entity, value tengo.Object) error
	Get  func(w *ecs.World, e ecs.Entity) (tengo.Object, bool)
}

// Bridge wraps a World with a Tengo VM surface: Spawn/Despawn/AddComponent/
// GetComponent builtins that call straight through to *ecs.World's public
// operations, plus a script-owned side table for dynamic fields a script
// wants to attach to an entity without a backing Go component (spec.md
// §6's "layered shim"). The core ecs package has zero awareness of this
// type.
type Bridge struct {
	world *ecs.World
	kinds map[string]ComponentKind

	mu     sync.RWMutex
	fields map[ecs.Entity]map[string]tengo.Object
}

// NewBridge constructs a Bridge over world with no component kinds
// registered yet.
func NewBridge(world *ecs.World) *Bridge {
	return &Bridge{
		world:  world,
		kinds:  make(map[string]ComponentKind),
		fields: make(map[ecs.Entity]map[string]tengo.Object),
	}
}

// RegisterComponentKind makes kind's component type reachable from scripts
// under kind.Name via add_component/get_component.
func (b *Bridge) RegisterComponentKind(kind ComponentKind) {
	b.kinds[kind.Name] = kind
}

// Compile compiles src into a *tengo.Compiled with every bridge builtin and
// the Tengo standard library's modules available, ready to Run.
func (b *Bridge) Compile(src []byte) (*tengo.Compiled, error) {
	s := tengo.NewScript(src)
	s.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))
	for name, fn := range b.builtins() {
		if err := s.Add(name, fn); err != nil {
			return nil, fmt.Errorf("script: register builtin %s: %w", name, err)
		}
	}
	return s.Compile()
}

func (b *Bridge) builtins() map[string]*tengo.UserFunction {
	return map[string]*tengo.UserFunction{
		"spawn":         {Name: "spawn", Value: b.spawn},
		"despawn":       {Name: "despawn", Value: b.despawn},
		"add_component": {Name: "add_component", Value: b.addComponent},
		"get_component": {Name: "get_component", Value: b.getComponent},
		"set_field":     {Name: "set_field", Value: b.setField},
		"get_field":     {Name: "get_field", Value: b.getField},
	}
}

func (b *Bridge) spawn(args ...tengo.Object) (tengo.Object, error) {
	e, err := b.world.Spawn()
	if err != nil {
		return nil, err
	}
	return entityToObject(e), nil
}

func (b *Bridge) despawn(args ...tengo.Object) (tengo.Object, error) {
	e, ok := objectToEntity(argAt(args, 0))
	if !ok {
		return tengo.FalseValue, nil
	}
	b.world.Despawn(e)
	b.clearFields(e)
	return tengo.TrueValue, nil
}

func (b *Bridge) addComponent(args ...tengo.Object) (tengo.Object, error) {
	e, ok := objectToEntity(argAt(args, 0))
	if !ok || len(args) < 3 {
		return tengo.FalseValue, nil
	}
	kindName := objectAsString(args[1])
	kind, ok := b.kinds[kindName]
	if !ok {
		return nil, fmt.Errorf("script: no component kind registered as %q", kindName)
	}
	if err := kind.Add(b.world, e, args[2]); err != nil {
		return nil, err
	}
	return tengo.TrueValue, nil
}

func (b *Bridge) getComponent(args ...tengo.Object) (tengo.Object, error) {
	e, ok := objectToEntity(argAt(args, 0))
	if !ok || len(args) < 2 {
		return tengo.UndefinedValue, nil
	}
	kindName := objectAsString(args[1])
	kind, ok := b.kinds[kindName]
	if !ok {
		return nil, fmt.Errorf("script: no component kind registered as %q", kindName)
	}
	val, ok := kind.Get(b.world, e)
	if !ok {
		return tengo.UndefinedValue, nil
	}
	return val, nil
}

// setField stores an arbitrary named value against e in the bridge's own
// side table, for script-defined state with no corresponding Go component.
func (b *Bridge) setField(args ...tengo.Object) (tengo.Object, error) {
	e, ok := objectToEntity(argAt(args, 0))
	if !ok || len(args) < 3 {
		return tengo.FalseValue, nil
	}
	name := objectAsString(args[1])
	b.mu.Lock()
	if b.fields[e] == nil {
		b.fields[e] = make(map[string]tengo.Object)
	}
	b.fields[e][name] = args[2]
	b.mu.Unlock()
	return tengo.TrueValue, nil
}

func (b *Bridge) getField(args ...tengo.Object) (tengo.Object, error) {
	e, ok := objectToEntity(argAt(args, 0))
	if !ok || len(args) < 2 {
		return tengo.UndefinedValue, nil
	}
	name := objectAsString(args[1])
	b.mu.RLock()
	defer b.mu.RUnlock()
	fields, ok := b.fields[e]
	if !ok {
		return tengo.UndefinedValue, nil
	}
	val, ok := fields[name]
	if !ok {
		return tengo.UndefinedValue, nil
	}
	return val, nil
}

func (b *Bridge) clearFields(e ecs.Entity) {
	b.mu.Lock()
	delete(b.fields, e)
	b.mu.Unlock()
}

func argAt(args []tengo.Object, i int) tengo.Object {
	if i >= len(args) {
		return tengo.UndefinedValue
	}
	return args[i]
}

// entityToObject packs an Entity's index and generation into one tengo.Int,
// the opaque-handle style a script only ever round-trips, never inspects.
func entityToObject(e ecs.Entity) tengo.Object {
	return &tengo.Int{Value: int64(e.Index)<<32 | int64(e.Generation)}
}

func objectToEntity(obj tengo.Object) (ecs.Entity, bool) {
	i, ok := obj.(*tengo.Int)
	if !ok {
		return ecs.Entity{}, false
	}
	v := uint64(i.Value)
	return ecs.Entity{Index: uint32(v >> 32), Generation: uint32(v)}, true
}

func objectAsString(obj tengo.Object) string {
	if s, ok := obj.(*tengo.String); ok {
		return s.Value
	}
	return obj.String()
}
