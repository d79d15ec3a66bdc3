package scheduler

// TaskUnblockedEvent fires when a backlog task's last outstanding
// prerequisite completes (spec §4.F "Auto-unblock").
type TaskUnblockedEvent struct {
	TaskID int64
}

// UsagePausedEvent fires when capacity throttling pauses the fleet
// (spec §4.F "Capacity throttling").
type UsagePausedEvent struct {
	PausedTaskIDs []int64
	Utilisation   float64
}

// ResumedEvent fires when utilisation falls back under Config.Floor
// and paused tasks resume.
type ResumedEvent struct {
	ResumedTaskIDs []int64
}

// ContextHandoffEvent fires when a task's estimated next-stage context
// need would exceed its session's remaining window (spec §4.F "Context
// handoff gate"). The task is suspended until ApproveContextHandoff is
// called.
type ContextHandoffEvent struct {
	TaskID         int64
	UsedTokens     int
	MaxTokens      int
	NextStageNeeds int
}

// Observer receives the Scheduler's telemetry streams, mirroring
// pipelineengine.Observer's nil-callback-is-no-op shape. It is a
// distinct type from pipelineengine.Observer because the two packages
// emit different event vocabularies (task lifecycle vs. arbitration
// decisions).
type Observer struct {
	OnTaskUnblocked  func(TaskUnblockedEvent)
	OnUsagePaused    func(UsagePausedEvent)
	OnResumed        func(ResumedEvent)
	OnContextHandoff func(ContextHandoffEvent)
}

func (o Observer) emitTaskUnblocked(ev TaskUnblockedEvent) {
	if o.OnTaskUnblocked != nil {
		o.OnTaskUnblocked(ev)
	}
}

func (o Observer) emitUsagePaused(ev UsagePausedEvent) {
	if o.OnUsagePaused != nil {
		o.OnUsagePaused(ev)
	}
}

func (o Observer) emitResumed(ev ResumedEvent) {
	if o.OnResumed != nil {
		o.OnResumed(ev)
	}
}

func (o Observer) emitContextHandoff(ev ContextHandoffEvent) {
	if o.OnContextHandoff != nil {
		o.OnContextHandoff(ev)
	}
}
