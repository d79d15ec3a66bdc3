package assembler

import (
	"fmt"
	"strings"
	"time"

	"github.com/hoofy-labs/pipeline-engine/internal/task"
)

// PromptData holds every placeholder the stage templates may
// reference (spec §4.C "The recognised tokens are...").
type PromptData struct {
	Title       string
	Description string
	Tier        task.Tier
	Priority    task.Priority
	Now         time.Time

	Brainstorm         string
	DesignReview       string
	Plan               string
	ImplementationNotes string
	ReviewComments      string
	ReviewScore         string
	TestResults         string
	VerifyResult        string

	PreviousHandoff string
	HandoffChain    string

	// Grouped-task-only placeholders (spec §4.C "Grouped-task prompts").
	WorkOrder string
	Siblings  string
}

const naFallback = "N/A"

func naOr(s string) string {
	if strings.TrimSpace(s) == "" {
		return naFallback
	}
	return s
}

// BuildPromptData projects a task's persisted outputs and hand-off
// chain into the placeholder set for prompt assembly.
func BuildPromptData(t *task.Task, now time.Time) PromptData {
	reviewScore := naFallback
	if t.Outputs.ReviewScore != 0 {
		reviewScore = fmt.Sprintf("%.1f", t.Outputs.ReviewScore)
	}

	return PromptData{
		Title:       t.Title,
		Description: t.Description,
		Tier:        t.Tier,
		Priority:    t.Priority,
		Now:         now,

		Brainstorm:          naOr(t.Outputs.Brainstorm),
		DesignReview:        naOr(t.Outputs.DesignReview),
		Plan:                naOr(t.Outputs.Plan),
		ImplementationNotes: naOr(t.Outputs.ImplementationNotes),
		ReviewComments:      naOr(t.Outputs.ReviewComments),
		ReviewScore:         reviewScore,
		TestResults:         naOr(t.Outputs.TestResults),
		VerifyResult:        naOr(t.Outputs.VerifyResult),

		PreviousHandoff: RenderHandoff(t.LastHandoff()),
		HandoffChain:    RenderHandoffChain(t.Handoffs),
	}
}

// RenderHandoff renders a single hand-off entry as it appears in
// `previous_handoff`. A nil hand-off renders as N/A.
func RenderHandoff(h *task.Handoff) string {
	if h == nil {
		return naFallback
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Hand-off: %s (%s)\n", h.Stage, h.Status)
	fmt.Fprintf(&b, "- **Agent**: %s\n", naOr(h.Agent))
	fmt.Fprintf(&b, "- **Model**: %s\n", naOr(h.Model))
	fmt.Fprintf(&b, "- **Timestamp**: %s\n", h.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Summary**: %s\n", naOr(h.Summary))
	fmt.Fprintf(&b, "- **Key Decisions**: %s\n", naOr(h.KeyDecisions))
	fmt.Fprintf(&b, "- **Open Questions**: %s\n", naOr(h.OpenQuestions))
	fmt.Fprintf(&b, "- **Files Modified**: %s\n", naOr(h.FilesModified))
	fmt.Fprintf(&b, "- **Next Stage Needs**: %s\n", naOr(h.NextStageNeeds))
	fmt.Fprintf(&b, "- **Warnings**: %s\n", naOr(h.Warnings))
	if h.StatusNote != "" {
		fmt.Fprintf(&b, "- **Status Note**: %s\n", h.StatusNote)
	}
	return b.String()
}

// RenderHandoffChain renders every hand-off as a numbered listing.
func RenderHandoffChain(hs []task.Handoff) string {
	if len(hs) == 0 {
		return naFallback
	}
	var b strings.Builder
	for i := range hs {
		fmt.Fprintf(&b, "%d. %s", i+1, RenderHandoff(&hs[i]))
	}
	return b.String()
}

// RenderWorkOrder renders a task's work order for grouped-task prompts.
func RenderWorkOrder(w *task.WorkOrder) string {
	if w == nil {
		return naFallback
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Objective**: %s\n\n", naOr(w.Objective))
	b.WriteString("**Files**:\n")
	for _, f := range w.Files {
		fmt.Fprintf(&b, "- `%s` (%s): %s\n", f.Path, f.Action, f.Description)
	}
	if len(w.Patterns) > 0 {
		fmt.Fprintf(&b, "\n**Patterns**: %s\n", strings.Join(w.Patterns, ", "))
	}
	if len(w.IntegrationPoints) > 0 {
		fmt.Fprintf(&b, "\n**Integration Points**: %s\n", strings.Join(w.IntegrationPoints, ", "))
	}
	if len(w.Constraints) > 0 {
		fmt.Fprintf(&b, "\n**Constraints**: %s\n", strings.Join(w.Constraints, ", "))
	}
	if len(w.ExpectedTests) > 0 {
		fmt.Fprintf(&b, "\n**Expected Tests**: %s\n", strings.Join(w.ExpectedTests, ", "))
	}
	return b.String()
}

// SiblingInfo is the minimal per-sibling info shown in grouped prompts.
type SiblingInfo struct {
	ID    int64
	Title string
	Files []string
}

// RenderSiblings renders the sibling-task listing for grouped prompts.
func RenderSiblings(siblings []SiblingInfo) string {
	if len(siblings) == 0 {
		return naFallback
	}
	var b strings.Builder
	for _, s := range siblings {
		fmt.Fprintf(&b, "- #%d %s — files: %s\n", s.ID, s.Title, strings.Join(s.Files, ", "))
	}
	return b.String()
}
