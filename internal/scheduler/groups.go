package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// groupLimiter bounds how many tasks within one TaskGroup run
// concurrently (spec §4.F "Group orchestration ... sibling tasks may
// run in parallel only if they have no mutual dependency"). Each
// group's weighted semaphore is sized from TaskGroup.MaxConcurrency;
// tasks with no group (GroupID == "") are never limited here, since
// the fleet-wide cap is enforced by maxConcurrentDispatch instead.
type groupLimiter struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
	caps map[string]int
}

func newGroupLimiter() *groupLimiter {
	return &groupLimiter{
		sems: make(map[string]*semaphore.Weighted),
		caps: make(map[string]int),
	}
}

// configure (re)sizes groupID's semaphore to match max, recreating it
// only when max actually changed (recreating an in-use semaphore would
// orphan outstanding acquires).
func (l *groupLimiter) configure(groupID string, max int) {
	if groupID == "" {
		return
	}
	if max <= 0 {
		max = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.caps[groupID] == max {
		return
	}
	l.caps[groupID] = max
	l.sems[groupID] = semaphore.NewWeighted(int64(max))
}

// acquire blocks until a slot in groupID is free (or ctx is
// cancelled), returning a release func. Ungrouped tasks (groupID=="")
// acquire nothing and release is a no-op.
func (l *groupLimiter) acquire(ctx context.Context, groupID string) (release func(), err error) {
	if groupID == "" {
		return func() {}, nil
	}

	l.mu.Lock()
	sem, ok := l.sems[groupID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[groupID] = sem
		l.caps[groupID] = 1
	}
	l.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}
