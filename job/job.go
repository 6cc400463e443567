package job

import "sync/atomic"

// Func is the callable a Job runs.
type Func func()

// Job is one unit of work submitted to a JobSystem: a callable plus the
// dependency bookkeeping a work-stealing scheduler needs to chain jobs
// without blocking a worker thread on them, grounded on
// original_source/include/engine/core/task_graph.hpp's Job struct.
type Job struct {
	Name string
	fn   Func

	unfinishedDeps atomic.Int32
	dependents     []*Job
	completed      atomic.Bool
}

// NewJob constructs a job named name that runs fn when executed. name is
// diagnostic only — it shows up in panic-recovery log lines — and has no
// effect on scheduling.
func NewJob(name string, fn Func) *Job {
	return &Job{Name: name, fn: fn}
}

// Completed reports whether the job has finished running (successfully or
// via a recovered panic).
func (j *Job) Completed() bool {
	return j.completed.Load()
}

// addDependent records that dep must wait for j to finish, incrementing
// dep's unfinished-dependency count. Not safe to call once j may already be
// running.
func (j *Job) addDependent(dep *Job) {
	dep.unfinishedDeps.Add(1)
	j.dependents = append(j.dependents, dep)
}
