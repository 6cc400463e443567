package parallel

import (
	"golang.org/x/sync/errgroup"

	"github.com/fenwickengine/core/ecs"
	"github.com/fenwickengine/core/job"
)

// System is one participant in a ParallelStage wave. Unlike
// ecs.SystemDesc.Execute, which is handed the World directly for the
// serial SystemScheduler, a parallel System is handed its own CommandBuffer
// and must defer every structural mutation through it (spec.md §5) — the
// World itself is only safe to read concurrently while a wave runs.
type System struct {
	Name    string
	Reads   []ecs.ComponentID
	Writes  []ecs.ComponentID
	Execute func(w *ecs.World, cb *ecs.CommandBuffer)
}

func (s System) asDesc() ecs.SystemDesc {
	return ecs.SystemDesc{Name: s.Name, Reads: s.Reads, Writes: s.Writes}
}

// ParallelStage runs a fixed list of systems against a World using waves of
// concurrent execution instead of the baseline SystemScheduler's strict
// serial order (spec.md §4.G). Each system in a wave writes exclusively
// into its own CommandBuffer; once every job in the wave completes, the
// buffers are merge-applied to the World in wave order before the next
// wave starts — the concrete realization of §9's "one buffer per worker,
// merge-apply at the frame boundary" design note.
//
// Wave partitioning is a one-shot best-effort conflict partition, not full
// dependency-DAG scheduling: each system joins the first existing wave it
// has no read/write conflict with, and starts a new wave only when it
// conflicts with some system in every existing wave. This is simpler and
// more conservative than an optimal coloring, and is documented as such
// rather than pretending to be one.
type ParallelStage struct {
	waves [][]System
	js    *job.System
	pool  *ecs.CommandBufferPool
}

// NewParallelStage partitions systems into conflict-free waves and binds
// the stage to js for wave fan-out.
func NewParallelStage(js *job.System, systems []System) *ParallelStage {
	return &ParallelStage{
		waves: partitionWaves(systems),
		js:    js,
		pool:  ecs.NewCommandBufferPool(),
	}
}

// Waves returns the computed wave partition, for diagnostics/tests.
func (s *ParallelStage) Waves() [][]System {
	return s.waves
}

func partitionWaves(systems []System) [][]System {
	var waves [][]System
	for _, sys := range systems {
		placed := false
		for i, wave := range waves {
			if fitsWave(sys, wave) {
				waves[i] = append(wave, sys)
				placed = true
				break
			}
		}
		if !placed {
			waves = append(waves, []System{sys})
		}
	}
	return waves
}

func fitsWave(sys System, wave []System) bool {
	desc := sys.asDesc()
	for _, other := range wave {
		if ecs.SystemsConflict(desc, other.asDesc()) {
			return false
		}
	}
	return true
}

// Run executes every wave in order against w, merge-applying each wave's
// command buffers before starting the next wave. Returns the first error
// any wave's command-buffer apply produced (resource exhaustion, spec.md
// §7). Each system in a wave runs as its own job.System job, so a panic
// inside one system is recovered and logged by job.System rather than
// taking down the whole stage; errgroup only fans the wave's job.Wait
// calls out across goroutines so Run can block on all of them at once.
func (s *ParallelStage) Run(w *ecs.World) error {
	for _, wave := range s.waves {
		buffers := make([]*ecs.CommandBuffer, len(wave))
		jobs := make([]*job.Job, len(wave))
		for i, sys := range wave {
			i, sys := i, sys
			buf := s.pool.Get()
			buffers[i] = buf
			jobs[i] = job.NewJob(sys.Name, func() {
				sys.Execute(w, buf)
			})
			s.js.Submit(jobs[i])
		}

		var g errgroup.Group
		for _, j := range jobs {
			j := j
			g.Go(func() error {
				s.js.Wait(j)
				return nil
			})
		}
		_ = g.Wait() // job.System.Wait never returns an error; panics are recovered internally

		var firstErr error
		for _, buf := range buffers {
			if err := buf.Apply(w); err != nil && firstErr == nil {
				firstErr = err
			}
			s.pool.Put(buf)
		}
		if firstErr != nil {
			return firstErr
		}
	}
	return nil
}
