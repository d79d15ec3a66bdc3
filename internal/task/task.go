// Package task defines the core data model shared by every other
// component: tasks, hand-offs, todos, task groups, dependency edges,
// settings and approval requests (spec §3).
//
// This is the engine's equivalent of the teacher's config.ProjectConfig
// and changes.ChangeRecord, generalized into one entity that follows
// one of the fixed L1/L2/L3 stage sequences selected by its Tier
// instead of a single fixed pipeline; there is no adaptive (type,
// size) flow.
package task

import "time"

// Tier selects which subset of stages a task runs through.
type Tier string

const (
	TierL1 Tier = "L1"
	TierL2 Tier = "L2"
	TierL3 Tier = "L3"
)

// Stage identifies one unit of model-driven work inside a task.
type Stage string

const (
	StageBrainstorm   Stage = "brainstorm"
	StageDesignReview Stage = "design_review"
	StagePlan         Stage = "plan"
	StageImplement    Stage = "implement"
	StageCodeReview   Stage = "code_review"
	StageVerify       Stage = "verify"
	StageDone         Stage = "done"
)

// Stages returns the ordered stage sequence for a tier. Returns nil
// for an unrecognized tier.
func Stages(t Tier) []Stage {
	seq, ok := tierStages[t]
	if !ok {
		return nil
	}
	out := make([]Stage, len(seq))
	copy(out, seq)
	return out
}

var tierStages = map[Tier][]Stage{
	TierL1: {StagePlan, StageImplement, StageDone},
	TierL2: {StageBrainstorm, StagePlan, StageImplement, StageVerify, StageDone},
	TierL3: {StageBrainstorm, StageDesignReview, StagePlan, StageImplement, StageCodeReview, StageVerify, StageDone},
}

// ValidTier reports whether t is one of L1/L2/L3.
func ValidTier(t Tier) bool {
	_, ok := tierStages[t]
	return ok
}

// Status is a task's place in its lifecycle (spec §3 "Lifecycles").
// Most values mirror a stage name; backlog/blocked/paused/awaiting_review
// and the terminal "done" sit between or after stages.
type Status string

const (
	StatusBacklog         Status = "backlog"
	StatusBrainstorm      Status = "brainstorm"
	StatusDesignReview    Status = "design_review"
	StatusPlan            Status = "plan"
	StatusImplement       Status = "implement"
	StatusCodeReview      Status = "code_review"
	StatusVerify          Status = "verify"
	StatusAwaitingReview  Status = "awaiting_review"
	StatusPaused          Status = "paused"
	StatusBlocked         Status = "blocked"
	StatusDone            Status = "done"
)

// StatusForStage maps a stage to the status a task has while running it.
func StatusForStage(s Stage) Status {
	return Status(s)
}

// Priority is a simple ordering hint; higher runs first when capacity
// allows a choice among ready tasks.
type Priority int

// HandoffOutcome is the resolution recorded on a hand-off record.
type HandoffOutcome string

const (
	HandoffCompleted          HandoffOutcome = "completed"
	HandoffBlocked            HandoffOutcome = "blocked"
	HandoffNeedsIntervention  HandoffOutcome = "needs_intervention"
)

// Handoff is the append-only record each stage emits (spec §3 "Hand-off").
type Handoff struct {
	ID               string         `json:"id"`
	TaskID           int64          `json:"task_id"`
	Stage            Stage          `json:"stage"`
	Agent            string         `json:"agent"`
	Model            string         `json:"model"`
	Timestamp        time.Time      `json:"timestamp"`
	Status           HandoffOutcome `json:"status"`
	Summary          string         `json:"summary"`
	KeyDecisions     string         `json:"key_decisions"`
	OpenQuestions    string         `json:"open_questions"`
	FilesModified    string         `json:"files_modified"`
	NextStageNeeds   string         `json:"next_stage_needs"`
	Warnings         string         `json:"warnings"`
	StatusNote       string         `json:"status_note,omitempty"`
}

// TodoStatus is the lifecycle of a single todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// TodoItem is an informational, non-blocking checklist entry scoped to
// a stage (spec §3 "Todo Item").
type TodoItem struct {
	ID        string     `json:"id"`
	TaskID    int64      `json:"task_id"`
	Stage     Stage      `json:"stage"`
	Subject   string     `json:"subject"`
	Status    TodoStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// GroupStatus tracks a task group's overall lifecycle.
type GroupStatus string

const (
	GroupPlanning GroupStatus = "planning"
	GroupQueued   GroupStatus = "queued"
	GroupRunning  GroupStatus = "running"
	GroupPaused   GroupStatus = "paused"
	GroupFailed   GroupStatus = "failed"
	GroupDone     GroupStatus = "completed"
)

// TaskGroup is an optional parent sharing context and ordering across
// related tasks (spec §3 "Task Group").
type TaskGroup struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Status          GroupStatus `json:"status"`
	ExecutionOrder  []int64     `json:"execution_order"`
	SharedContext   string      `json:"shared_context"`
	MaxConcurrency  int         `json:"max_concurrency"`
}

// WorkOrder scopes a grouped task's work (GLOSSARY "Work order").
type WorkOrder struct {
	Objective          string       `json:"objective"`
	Files              []FileAction `json:"files"`
	Patterns           []string     `json:"patterns"`
	IntegrationPoints  []string     `json:"integration_points"`
	Constraints        []string     `json:"constraints"`
	ExpectedTests      []string     `json:"expected_tests"`
}

// FileAction names a file, the action to take, and a description used
// in grouped-task prompts.
type FileAction struct {
	Path        string `json:"path"`
	Action      string `json:"action"` // create | modify | delete
	Description string `json:"description"`
}

// StageOutputs holds the per-stage structured/free-text payloads a
// task accumulates as it runs (spec §3 "per-stage output payloads").
type StageOutputs struct {
	Brainstorm         string `json:"brainstorm,omitempty"`
	DesignReview        string `json:"design_review,omitempty"`
	Plan                string `json:"plan,omitempty"`
	ImplementationNotes string `json:"implementation_notes,omitempty"`
	ReviewComments      string `json:"review_comments,omitempty"`
	ReviewScore         float64 `json:"review_score,omitempty"`
	TestResults         string `json:"test_results,omitempty"`
	VerifyResult        string `json:"verify_result,omitempty"`
}

// Clear resets the output belonging to stage s, used when restarting
// from an earlier stage (spec §4.E.3 "restart from stage T").
func (o *StageOutputs) Clear(s Stage) {
	switch s {
	case StageBrainstorm:
		o.Brainstorm = ""
	case StageDesignReview:
		o.DesignReview = ""
	case StagePlan:
		o.Plan = ""
	case StageImplement:
		o.ImplementationNotes = ""
	case StageCodeReview:
		o.ReviewComments = ""
		o.ReviewScore = 0
	case StageVerify:
		o.TestResults = ""
		o.VerifyResult = ""
	}
}

// Counters tracks per-stage rejection counts used by circuit breakers
// (spec §4.E.3 "plan_review_count", "impl_review_count").
type Counters struct {
	PlanReviewCount int `json:"plan_review_count"`
	ImplReviewCount int `json:"impl_review_count"`
}

// Reset zeroes the counter belonging to stage s, if any.
func (c *Counters) Reset(s Stage) {
	switch s {
	case StagePlan:
		c.PlanReviewCount = 0
	case StageImplement:
		c.ImplReviewCount = 0
	}
}

// Increment bumps the counter belonging to stage s, if any, and
// returns the new value (0 if the stage has no counter).
func (c *Counters) Increment(s Stage) int {
	switch s {
	case StagePlan:
		c.PlanReviewCount++
		return c.PlanReviewCount
	case StageImplement:
		c.ImplReviewCount++
		return c.ImplReviewCount
	}
	return 0
}

// ActivityEntry is one line of a task's append-only activity log.
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
}

// Task is the primary entity (spec §3 "Task").
type Task struct {
	ID          int64
	Title       string
	Description string
	Tier        Tier
	Priority    Priority
	Status      Status
	AutoMode    bool
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CurrentAgent string
	GroupID     string
	DependsOn   []int64

	Outputs  StageOutputs
	Counters Counters

	Handoffs []Handoff
	Activity []ActivityEntry
	Todos    map[Stage][]TodoItem

	PendingContent string // transient streaming buffer (spec §4.E.4)

	SessionID        string // active-session handle for resume, empty if none
	PauseReason      string
	PausedFromStatus Status

	WorkOrder *WorkOrder
}

// Stages returns the ordered stage sequence for this task's tier.
func (t *Task) Stages() []Stage { return Stages(t.Tier) }

// CurrentStage derives the stage implied by Status, or "" if the task
// is in a non-stage status (backlog/blocked/paused/awaiting_review).
func (t *Task) CurrentStage() Stage {
	switch t.Status {
	case StatusBacklog, StatusBlocked, StatusPaused, StatusAwaitingReview, StatusDone:
		return ""
	default:
		return Stage(t.Status)
	}
}

// LastHandoff returns the most recent hand-off, or nil if none exist.
func (t *Task) LastHandoff() *Handoff {
	if len(t.Handoffs) == 0 {
		return nil
	}
	return &t.Handoffs[len(t.Handoffs)-1]
}

// AppendActivity appends one activity log entry.
func (t *Task) AppendActivity(kind, message string, now time.Time) {
	t.Activity = append(t.Activity, ActivityEntry{Timestamp: now, Kind: kind, Message: message})
}

// ApprovalRequest is a transient tool-use approval mediation (spec §3).
type ApprovalRequest struct {
	ID       string
	TaskID   int64
	Session  string
	ToolName string
	ToolInput map[string]any
}

// ApprovalResolution is what onApprovalRequest's caller decides.
type ApprovalResolution struct {
	Allow   bool
	Message string
}
