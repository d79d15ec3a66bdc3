// Package depgraph computes the task dependency graph purely in
// memory (spec §4.B). It is rebuilt from the current task set on every
// change rather than incrementally maintained, which keeps it simple
// and matches the teacher's own re-derive-don't-mutate style seen in
// changes.FileStore.LoadActive (scan-and-filter the whole set rather
// than keeping a running index).
//
// Cycle detection is a DFS with a recursion-stack set, grounded on the
// DAG/scheduler idioms surveyed across the example pack's
// orchestrator snippets; the ready set is a status filter over each
// task's direct prerequisites and the dependency chain a DFS
// post-order walk (no in-degree counting), written against task.Task
// instead of generic
// string nodes, with no third-party dependency: every DAG
// implementation surveyed in the pack is itself zero-dependency
// stdlib code, so a stdlib-only package matches the pack's own
// practice for this concern.
package depgraph

import (
	"fmt"
	"strings"

	"github.com/hoofy-labs/pipeline-engine/internal/task"
)

// Graph is an adjacency list: node -> prerequisite nodes (node depends
// on each of its prerequisites). Missing entries are treated as empty
// (spec §4.B "Missing entries are treated as empty").
type Graph struct {
	Prereqs map[int64][]int64
	Status  map[int64]task.Status
	order   []int64 // insertion order, for deterministic iteration
}

// BuildGraph constructs a Graph from the current task set.
func BuildGraph(tasks []*task.Task) *Graph {
	g := &Graph{
		Prereqs: make(map[int64][]int64, len(tasks)),
		Status:  make(map[int64]task.Status, len(tasks)),
	}
	for _, t := range tasks {
		g.addNode(t.ID)
		g.Status[t.ID] = t.Status
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			g.addNode(dep)
			g.Prereqs[t.ID] = append(g.Prereqs[t.ID], dep)
		}
	}
	return g
}

func (g *Graph) addNode(id int64) {
	if _, ok := g.Prereqs[id]; ok {
		return
	}
	g.Prereqs[id] = nil
	g.order = append(g.order, id)
}

// CycleError reports a detected cycle as the path from the re-entered
// node through the DFS stack back to itself.
type CycleError struct {
	Path []int64
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("dependency cycle: %s", strings.Join(parts, " -> "))
}

// ValidateNoCycles runs DFS with a recursion-stack set over the graph.
// Returns nil if the graph is a valid DAG (a disconnected graph is
// valid), or a *CycleError naming the offending cycle on the first
// back-edge found.
func ValidateNoCycles(g *Graph) error {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS stack
		black = 2 // fully explored
	)
	color := make(map[int64]int, len(g.order))
	stack := make([]int64, 0, len(g.order))

	var visit func(id int64) error
	visit = func(id int64) error {
		color[id] = gray
		stack = append(stack, id)

		for _, dep := range g.Prereqs[id] {
			switch color[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				// Back-edge: build the cycle path from dep's position
				// in the stack through to id, then back to dep.
				start := 0
				for i, n := range stack {
					if n == dep {
						start = i
						break
					}
				}
				cyclePath := append([]int64{}, stack[start:]...)
				cyclePath = append(cyclePath, dep)
				return &CycleError{Path: cyclePath}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, id := range g.order {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetReadyTaskIds returns every node whose status is backlog AND whose
// every prerequisite has status done.
func GetReadyTaskIds(g *Graph) []int64 {
	var ready []int64
	for _, id := range g.order {
		if g.Status[id] != task.StatusBacklog {
			continue
		}
		if len(isBlockedBy(g, id)) == 0 {
			ready = append(ready, id)
		}
	}
	return ready
}

// IsTaskBlocked returns the list of prerequisites of id that are not
// yet done.
func IsTaskBlocked(g *Graph, id int64) []int64 {
	return isBlockedBy(g, id)
}

func isBlockedBy(g *Graph, id int64) []int64 {
	var blocking []int64
	for _, dep := range g.Prereqs[id] {
		if g.Status[dep] != task.StatusDone {
			blocking = append(blocking, dep)
		}
	}
	return blocking
}

// GetDependencyChain returns all transitive prerequisites of id in
// topological order (prerequisite first), with no duplicates even
// under a diamond dependency shape.
func GetDependencyChain(g *Graph, id int64) []int64 {
	visited := make(map[int64]bool)
	var order []int64

	var visit func(n int64)
	visit = func(n int64) {
		for _, dep := range g.Prereqs[n] {
			if !visited[dep] {
				visited[dep] = true
				visit(dep)
				order = append(order, dep)
			}
		}
	}
	visit(id)
	return order
}
