package job

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// System is a fixed-size work-stealing scheduler: each worker owns a deque,
// submission round-robins across deques, and an idle worker steals from the
// front of any other worker's queue. Grounded directly on
// original_source/include/engine/core/task_graph.hpp's JobSystem — the
// mutex-guarded deque-of-deques is the baseline design spec.md §9 calls out
// explicitly as acceptable ("lock-free deques are a possible future
// enhancement, not a required redesign").
type System struct {
	queues     [][]*Job
	mu         sync.Mutex
	cond       *sync.Cond
	shutdown   atomic.Bool
	activeJobs atomic.Uint32
	wg         sync.WaitGroup
	logger     *zap.Logger
}

// New starts a System with workerCount workers. workerCount <= 0 means
// max(1, runtime.NumCPU()-1), matching the teacher's hardware_concurrency-1
// default.
func New(workerCount int, logger *zap.Logger) *System {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU() - 1
		if workerCount < 1 {
			workerCount = 1
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &System{
		queues: make([][]*Job, workerCount),
		logger: logger,
	}
	s.cond = sync.NewCond(&s.mu)
	s.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go s.workerLoop(i)
	}
	return s
}

// WorkerCount returns the number of worker goroutines.
func (s *System) WorkerCount() int {
	return len(s.queues)
}

// Shutdown signals every worker to stop after its current job and blocks
// until they have all exited.
func (s *System) Shutdown() {
	s.shutdown.Store(true)
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}

// Submit enqueues job for execution if it has no unfinished dependencies.
// A job with pending dependencies is submitted automatically, by whichever
// worker finishes its last remaining dependency.
func (s *System) Submit(j *Job) {
	if j == nil {
		return
	}
	if j.unfinishedDeps.Load() > 0 {
		return
	}
	s.mu.Lock()
	idx := int(s.activeJobs.Add(1)-1) % len(s.queues)
	s.queues[idx] = append(s.queues[idx], j)
	s.cond.Signal()
	s.mu.Unlock()
}

// Wait blocks the calling goroutine until j completes, stealing and running
// other queued jobs in the meantime so the caller contributes capacity
// instead of idling.
func (s *System) Wait(j *Job) {
	for !j.Completed() {
		if stolen := s.steal(); stolen != nil {
			s.run(stolen)
			continue
		}
		runtime.Gosched()
	}
}

// WaitAll blocks until every queue is empty, helping drain them in the
// meantime.
func (s *System) WaitAll() {
	for {
		if s.allQueuesEmpty() {
			return
		}
		if stolen := s.steal(); stolen != nil {
			s.run(stolen)
			continue
		}
		runtime.Gosched()
	}
}

func (s *System) allQueuesEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.queues {
		if len(q) > 0 {
			return false
		}
	}
	return true
}

// steal pops the front job of the first non-empty queue it finds.
func (s *System) steal() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.queues {
		if len(q) > 0 {
			j := q[0]
			s.queues[i] = q[1:]
			return j
		}
	}
	return nil
}

func (s *System) workerLoop(id int) {
	defer s.wg.Done()
	for {
		if s.shutdown.Load() {
			return
		}
		s.mu.Lock()
		var j *Job
		if len(s.queues[id]) > 0 {
			j = s.queues[id][0]
			s.queues[id] = s.queues[id][1:]
		}
		s.mu.Unlock()

		if j == nil {
			j = s.steal()
		}
		if j != nil {
			s.run(j)
			continue
		}

		if s.shutdown.Load() {
			return
		}
		s.mu.Lock()
		s.cond.Wait()
		s.mu.Unlock()
		if s.shutdown.Load() {
			return
		}
	}
}

// run executes j's callable, recovering any panic so one bad job cannot
// wedge the pool or leave its dependents waiting forever, then fires every
// dependent whose last outstanding dependency was j.
func (s *System) run(j *Job) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("job panicked", zap.String("job", j.Name), zap.Any("recovered", r))
			}
		}()
		if j.fn != nil {
			j.fn()
		}
	}()
	j.completed.Store(true)
	for _, dep := range j.dependents {
		if dep.unfinishedDeps.Add(-1) == 0 {
			s.Submit(dep)
		}
	}
}
