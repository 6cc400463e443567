package job

// TaskGraph is a thin DAG builder over a System: Add creates a node,
// DependsOn wires an edge, and Execute submits every root (a job with no
// incoming edge) and waits for the whole graph to finish. Cycles are not
// detected — a cyclic graph simply never completes, the same contract
// original_source/include/engine/core/task_graph.hpp's TaskGraph carries
// ("ノード追加", "依存関係", "グラフ実行"; no cycle check in depends_on).
type TaskGraph struct {
	system *System
	jobs   []*Job
	roots  []*Job
}

// NewTaskGraph builds an empty graph that submits its jobs to system.
func NewTaskGraph(system *System) *TaskGraph {
	return &TaskGraph{system: system}
}

// Add registers a new node named name running fn, initially a root.
func (g *TaskGraph) Add(name string, fn Func) *Job {
	j := NewJob(name, fn)
	g.jobs = append(g.jobs, j)
	g.roots = append(g.roots, j)
	return j
}

// DependsOn records that after must not run until before has completed.
// after stops being a root the first time it gains a dependency.
func (g *TaskGraph) DependsOn(after, before *Job) {
	if after == nil || before == nil {
		return
	}
	before.addDependent(after)
	for i, r := range g.roots {
		if r == after {
			g.roots = append(g.roots[:i], g.roots[i+1:]...)
			break
		}
	}
}

// Execute submits every root job and blocks until all jobs in the graph
// have completed.
func (g *TaskGraph) Execute() {
	for _, root := range g.roots {
		g.system.Submit(root)
	}
	for _, j := range g.jobs {
		g.system.Wait(j)
	}
}

// Clear drops every job and edge, resetting the graph to empty. The
// underlying System is untouched.
func (g *TaskGraph) Clear() {
	g.jobs = nil
	g.roots = nil
}
