// Profiling:
// go build ./cmd/profile/entities
// go tool pprof -http=":8000" -nodefraction=0.001 ./entities mem.pprof
package main

import (
	"github.com/pkg/profile"

	"github.com/fenwickengine/core/ecs"
)

type position struct {
	X, Y float64
}

type velocity struct {
	X, Y float64
}

func main() {
	count := 50
	iters := 10000
	entities := 1000
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(count, iters, entities)
	p.Stop()
}

func run(rounds, iters, numEntities int) {
	for i := 0; i < rounds; i++ {
		w := ecs.NewWorld(numEntities)

		for j := 0; j < iters; j++ {
			for i := 0; i < numEntities; i++ {
				e, err := w.Spawn()
				if err != nil {
					panic(err)
				}
				if err := ecs.AddComponent(w, e, position{}); err != nil {
					panic(err)
				}
				if err := ecs.AddComponent(w, e, velocity{X: 1, Y: 1}); err != nil {
					panic(err)
				}
			}

			var toDespawn []ecs.Entity
			ecs.ForEach2(w, nil, func(e ecs.Entity, pos *position, vel *velocity) {
				pos.X += vel.X
				pos.Y += vel.Y
				toDespawn = append(toDespawn, e)
			})
			for _, e := range toDespawn {
				w.Despawn(e)
			}
		}
	}
}
