package ecs

import "reflect"

// typeFor is a local stand-in for reflect.TypeFor (added in Go 1.22),
// needed because this build runs on an older toolchain. Implementation
// mirrors the stdlib version exactly.
func typeFor[T any]() reflect.Type {
	var v T
	if t := reflect.TypeOf(v); t != nil {
		return t
	}
	return reflect.TypeOf((*T)(nil)).Elem()
}
