package job_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/fenwickengine/core/job"
)

// go test -run ^TestJobRunsExactlyOnce$ ./job -count 1
func TestJobRunsExactlyOnce(t *testing.T) {
	s := job.New(4, nil)
	defer s.Shutdown()

	var runs atomic.Int32
	j := job.NewJob("once", func() { runs.Add(1) })
	s.Submit(j)
	s.Wait(j)

	if got := runs.Load(); got != 1 {
		t.Fatalf("expected job to run exactly once, ran %d times", got)
	}
}

// go test -run ^TestDependencyOrder$ ./job -count 1
func TestDependencyOrder(t *testing.T) {
	s := job.New(4, nil)
	defer s.Shutdown()
	g := job.NewTaskGraph(s)

	var order []string
	a := g.Add("a", func() { order = append(order, "a") })
	b := g.Add("b", func() { order = append(order, "b") })
	g.DependsOn(b, a)

	g.Execute()

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected [a b], got %v", order)
	}
}

// go test -run ^TestDiamondGraphCompletesEachNodeOnce$ ./job -count 1
//
// A depends on nothing; B and C depend on A; D depends on both B and C.
// Every node must run exactly once, and D must not start before B and C
// have both finished.
func TestDiamondGraphCompletesEachNodeOnce(t *testing.T) {
	s := job.New(4, nil)
	defer s.Shutdown()
	g := job.NewTaskGraph(s)

	var aRuns, bRuns, cRuns, dRuns atomic.Int32
	var bDone, cDone atomic.Bool

	a := g.Add("a", func() { aRuns.Add(1) })
	b := g.Add("b", func() { time.Sleep(time.Millisecond); bRuns.Add(1); bDone.Store(true) })
	c := g.Add("c", func() { time.Sleep(time.Millisecond); cRuns.Add(1); cDone.Store(true) })
	d := g.Add("d", func() {
		if !bDone.Load() || !cDone.Load() {
			t.Error("d ran before both b and c completed")
		}
		dRuns.Add(1)
	})

	g.DependsOn(b, a)
	g.DependsOn(c, a)
	g.DependsOn(d, b)
	g.DependsOn(d, c)

	g.Execute()

	for name, n := range map[string]int32{"a": aRuns.Load(), "b": bRuns.Load(), "c": cRuns.Load(), "d": dRuns.Load()} {
		if n != 1 {
			t.Errorf("expected %s to run exactly once, ran %d times", name, n)
		}
	}
}

// go test -run ^TestWaitAllDrainsQueuedJobs$ ./job -count 1
func TestWaitAllDrainsQueuedJobs(t *testing.T) {
	s := job.New(2, nil)
	defer s.Shutdown()

	var runs atomic.Int32
	for i := 0; i < 20; i++ {
		s.Submit(job.NewJob("n", func() { runs.Add(1) }))
	}
	s.WaitAll()

	if got := runs.Load(); got != 20 {
		t.Fatalf("expected 20 jobs to run, got %d", got)
	}
}

// go test -run ^TestPanicIsRecoveredAndDependentsStillRun$ ./job -count 1
func TestPanicIsRecoveredAndDependentsStillRun(t *testing.T) {
	s := job.New(2, nil)
	defer s.Shutdown()
	g := job.NewTaskGraph(s)

	var depRan atomic.Bool
	a := g.Add("panics", func() { panic("boom") })
	b := g.Add("dependent", func() { depRan.Store(true) })
	g.DependsOn(b, a)

	g.Execute()

	if !depRan.Load() {
		t.Error("expected dependent job to run after its dependency panicked")
	}
}
