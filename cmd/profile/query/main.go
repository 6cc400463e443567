// Profiling:
// go build ./cmd/profile/query
// go tool pprof -http=":8000" -nodefraction=0.001 ./query mem.prof
package main

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/fenwickengine/core/ecs"
)

type comp1 struct{ V, W int64 }
type comp2 struct{ V, W int64 }
type comp3 struct{ V, W int64 }
type comp4 struct{ V, W int64 }
type comp5 struct{ V, W int64 }
type comp6 struct{ V, W int64 }

func main() {
	f, _ := os.Create("cpu.prof")
	_ = pprof.StartCPUProfile(f)
	defer pprof.StopCPUProfile()

	count := 50
	iters := 10000
	entities := 100000
	run(count, iters, entities)

	memFile, _ := os.Create("mem.prof")
	defer memFile.Close()
	runtime.GC()
	_ = pprof.WriteHeapProfile(memFile)
}

func run(rounds, iters, numEntities int) {
	for r := 0; r < rounds; r++ {
		w := ecs.NewWorld(numEntities)
		for i := 0; i < numEntities; i++ {
			e, err := w.Spawn()
			if err != nil {
				panic(err)
			}
			if err := ecs.AddComponent(w, e, comp1{}); err != nil {
				panic(err)
			}
			if err := ecs.AddComponent(w, e, comp2{V: 1, W: 1}); err != nil {
				panic(err)
			}
			if err := ecs.AddComponent(w, e, comp3{}); err != nil {
				panic(err)
			}
			if err := ecs.AddComponent(w, e, comp4{}); err != nil {
				panic(err)
			}
			if err := ecs.AddComponent(w, e, comp5{}); err != nil {
				panic(err)
			}
			if err := ecs.AddComponent(w, e, comp6{}); err != nil {
				panic(err)
			}
		}

		// comp3-comp6 widen the archetype without participating in the
		// query below, so this measures scan cost over a realistically
		// wide archetype rather than a synthetic two-column one.
		for k := 0; k < iters; k++ {
			ecs.ForEach2(w, nil, func(e ecs.Entity, c1 *comp1, c2 *comp2) {
				c1.V += c2.V
				c1.W += c2.W
			})
		}
	}
}
