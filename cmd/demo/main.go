// demo wires the full engine core together for one interactive sanity
// check: a World, a job System backing a TaskGraph, the baseline serial
// SystemScheduler, and a CommandBuffer-driven structural mutation each
// tick.
package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fenwickengine/core/ecs"
	"github.com/fenwickengine/core/job"
)

type position struct{ X, Y float64 }
type velocity struct{ X, Y float64 }
type expired struct{}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	w := ecs.NewWorld(1024)
	w.SetLogger(logger)

	js := job.New(0, logger)
	defer js.Shutdown()

	for i := 0; i < 16; i++ {
		e, err := w.Spawn()
		if err != nil {
			logger.Fatal("spawn failed", zap.Error(err))
		}
		if err := ecs.AddComponent(w, e, position{}); err != nil {
			logger.Fatal("add position failed", zap.Error(err))
		}
		if err := ecs.AddComponent(w, e, velocity{X: float64(i % 3), Y: 1}); err != nil {
			logger.Fatal("add velocity failed", zap.Error(err))
		}
	}

	cb := ecs.NewCommandBuffer()
	w.Scheduler().AddSystem(ecs.SystemDesc{
		Name:   "movement",
		Reads:  []ecs.ComponentID{ecs.TypeID[velocity](w)},
		Writes: []ecs.ComponentID{ecs.TypeID[position](w)},
		Execute: func(w *ecs.World) {
			ecs.ForEach2(w, nil, func(e ecs.Entity, pos *position, vel *velocity) {
				pos.X += vel.X
				pos.Y += vel.Y
				if pos.X > 10 {
					ecs.AddComponentCmd(cb, e, expired{})
				}
			})
		},
	})
	w.Scheduler().AddSystem(ecs.SystemDesc{
		Name:     "sweep_expired",
		Reads:    []ecs.ComponentID{ecs.TypeID[expired](w)},
		RunAfter: []string{"movement"},
		Execute: func(w *ecs.World) {
			ecs.ForEach1(w, nil, func(e ecs.Entity, _ *expired) {
				cb.Despawn(e)
			})
		},
	})

	graph := job.NewTaskGraph(js)
	for tick := 0; tick < 20; tick++ {
		tickJob := graph.Add(fmt.Sprintf("tick-%d", tick), func() {
			w.Scheduler().Run()
		})
		applyJob := graph.Add(fmt.Sprintf("apply-%d", tick), func() {
			if err := cb.Apply(w); err != nil {
				logger.Error("command buffer apply failed", zap.Error(err))
			}
		})
		graph.DependsOn(applyJob, tickJob)
		graph.Execute()
		graph.Clear()

		logger.Info("tick complete", zap.Int("tick", tick), zap.Int("entities", w.EntityCount()))
	}
}
