package depgraph

import (
	"testing"

	"github.com/hoofy-labs/pipeline-engine/internal/task"
)

func mkTask(id int64, status task.Status, deps ...int64) *task.Task {
	return &task.Task{ID: id, Status: status, DependsOn: deps}
}

func TestBuildGraph_MissingEntriesTreatedEmpty(t *testing.T) {
	g := BuildGraph([]*task.Task{mkTask(1, task.StatusBacklog)})
	if len(g.Prereqs[1]) != 0 {
		t.Fatalf("expected no prereqs, got %v", g.Prereqs[1])
	}
	if len(g.Prereqs[999]) != 0 {
		t.Fatalf("missing node should report empty prereqs")
	}
}

func TestValidateNoCycles_Valid(t *testing.T) {
	g := BuildGraph([]*task.Task{
		mkTask(1, task.StatusDone),
		mkTask(2, task.StatusBacklog, 1),
		mkTask(3, task.StatusBacklog, 1, 2),
	})
	if err := ValidateNoCycles(g); err != nil {
		t.Fatalf("expected valid DAG, got %v", err)
	}
}

func TestValidateNoCycles_Disconnected(t *testing.T) {
	g := BuildGraph([]*task.Task{
		mkTask(1, task.StatusBacklog),
		mkTask(2, task.StatusBacklog),
	})
	if err := ValidateNoCycles(g); err != nil {
		t.Fatalf("disconnected graph should be valid, got %v", err)
	}
}

func TestValidateNoCycles_DetectsCycle(t *testing.T) {
	g := BuildGraph([]*task.Task{
		mkTask(1, task.StatusBacklog, 2),
		mkTask(2, task.StatusBacklog, 3),
		mkTask(3, task.StatusBacklog, 1),
	})
	err := ValidateNoCycles(g)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	cycleErr, ok := err.(*CycleError)
	if !ok {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if len(cycleErr.Path) < 2 {
		t.Fatalf("cycle path too short: %v", cycleErr.Path)
	}
	if cycleErr.Path[0] != cycleErr.Path[len(cycleErr.Path)-1] {
		t.Errorf("cycle path should start and end at the same node, got %v", cycleErr.Path)
	}
}

func TestGetReadyTaskIds(t *testing.T) {
	g := BuildGraph([]*task.Task{
		mkTask(1, task.StatusDone),
		mkTask(2, task.StatusBacklog, 1), // ready: prereq done
		mkTask(3, task.StatusBacklog, 4), // not ready: prereq not done
		mkTask(4, task.StatusBacklog),
		mkTask(5, task.StatusPlan), // not backlog, excluded regardless of prereqs
	})
	ready := GetReadyTaskIds(g)
	want := map[int64]bool{2: true, 4: true}
	if len(ready) != len(want) {
		t.Fatalf("ready = %v, want keys of %v", ready, want)
	}
	for _, id := range ready {
		if !want[id] {
			t.Errorf("unexpected ready id %d", id)
		}
	}
}

func TestIsTaskBlocked(t *testing.T) {
	g := BuildGraph([]*task.Task{
		mkTask(1, task.StatusBacklog),
		mkTask(2, task.StatusPlan),
		mkTask(3, task.StatusBacklog, 1, 2),
	})
	blocking := IsTaskBlocked(g, 3)
	if len(blocking) != 2 {
		t.Fatalf("expected both prereqs blocking, got %v", blocking)
	}
}

func TestGetDependencyChain_DiamondNoDuplicates(t *testing.T) {
	// 4 depends on 2 and 3; both 2 and 3 depend on 1 (diamond).
	g := BuildGraph([]*task.Task{
		mkTask(1, task.StatusDone),
		mkTask(2, task.StatusDone, 1),
		mkTask(3, task.StatusDone, 1),
		mkTask(4, task.StatusBacklog, 2, 3),
	})
	chain := GetDependencyChain(g, 4)

	seen := make(map[int64]int)
	for _, id := range chain {
		seen[id]++
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("node %d appeared %d times, want 1", id, count)
		}
	}
	if len(chain) != 3 {
		t.Fatalf("chain = %v, want 3 unique ancestors", chain)
	}

	// Topological order: 1 must precede both 2 and 3.
	pos := make(map[int64]int)
	for i, id := range chain {
		pos[id] = i
	}
	if pos[1] > pos[2] || pos[1] > pos[3] {
		t.Errorf("chain %v is not topologically ordered", chain)
	}
}

func TestGetDependencyChain_NoDeps(t *testing.T) {
	g := BuildGraph([]*task.Task{mkTask(1, task.StatusBacklog)})
	chain := GetDependencyChain(g, 1)
	if len(chain) != 0 {
		t.Fatalf("expected empty chain, got %v", chain)
	}
}
