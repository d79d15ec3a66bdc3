package assembler

import (
	"testing"

	"github.com/hoofy-labs/pipeline-engine/internal/task"
)

func TestParseHandoffBlock_AllFields(t *testing.T) {
	raw := `I did the work.

## Hand-off

- **Summary**: implemented the widget loader
- **Key Decisions**: used a buffered channel
- **Open Questions**: should retries be bounded
- **Files Modified**: internal/widget/loader.go, internal/widget/loader_test.go
- **Next Stage Needs**: review the channel sizing
- **Warnings**: no integration test yet
`
	h, ok := ParseHandoffBlock(raw)
	if !ok {
		t.Fatalf("expected hand-off block to be found")
	}
	if h.Summary != "implemented the widget loader" {
		t.Errorf("Summary = %q", h.Summary)
	}
	if h.KeyDecisions != "used a buffered channel" {
		t.Errorf("KeyDecisions = %q", h.KeyDecisions)
	}
	if h.OpenQuestions != "should retries be bounded" {
		t.Errorf("OpenQuestions = %q", h.OpenQuestions)
	}
	if h.FilesModified != "internal/widget/loader.go, internal/widget/loader_test.go" {
		t.Errorf("FilesModified = %q", h.FilesModified)
	}
	if h.NextStageNeeds != "review the channel sizing" {
		t.Errorf("NextStageNeeds = %q", h.NextStageNeeds)
	}
	if h.Warnings != "no integration test yet" {
		t.Errorf("Warnings = %q", h.Warnings)
	}
}

func TestParseHandoffBlock_NoHeader_ReturnsFalse(t *testing.T) {
	h, ok := ParseHandoffBlock("just some free-form text with no marker")
	if ok {
		t.Fatalf("expected no hand-off block to be found, got %+v", h)
	}
	if h != nil {
		t.Fatalf("expected nil hand-off on miss")
	}
}

func TestParseHandoffBlock_PartialFields(t *testing.T) {
	raw := `## Hand-off

- **Summary**: short summary only
`
	h, ok := ParseHandoffBlock(raw)
	if !ok {
		t.Fatalf("expected hand-off block to be found")
	}
	if h.Summary != "short summary only" {
		t.Errorf("Summary = %q", h.Summary)
	}
	if h.Warnings != "" {
		t.Errorf("expected empty Warnings, got %q", h.Warnings)
	}
}

func TestSynthesizeHandoff_UsesRawOutput(t *testing.T) {
	h := SynthesizeHandoff("the model rambled without a hand-off block")
	if h.Summary != "the model rambled without a hand-off block" {
		t.Errorf("Summary = %q", h.Summary)
	}
	if h.StatusNote == "" {
		t.Errorf("expected a status note explaining synthesis")
	}
}

func TestSynthesizeHandoff_EmptyRaw_FallsBackToNA(t *testing.T) {
	h := SynthesizeHandoff("   ")
	if h.Summary != naFallback {
		t.Errorf("Summary = %q, want %q", h.Summary, naFallback)
	}
}

func TestParseLegacyHandoffChain_WellFormed(t *testing.T) {
	raw := "brainstorm::looked at three approaches||plan::picked option B"
	got := ParseLegacyHandoffChain(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Stage != task.StageBrainstorm || got[0].Summary != "looked at three approaches" {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].Stage != task.StagePlan || got[1].Summary != "picked option B" {
		t.Errorf("entry 1 = %+v", got[1])
	}
}

func TestParseLegacyHandoffChain_MalformedSegmentsSkipped(t *testing.T) {
	raw := "not-a-valid-segment||plan::picked option B||::missing-stage||dangling::"
	got := ParseLegacyHandoffChain(raw)
	if len(got) != 1 {
		t.Fatalf("expected 1 well-formed entry survives, got %d: %+v", len(got), got)
	}
	if got[0].Stage != task.StagePlan {
		t.Errorf("entry 0 stage = %q", got[0].Stage)
	}
}

func TestParseLegacyHandoffChain_EmptyInput(t *testing.T) {
	if got := ParseLegacyHandoffChain(""); got != nil {
		t.Fatalf("expected nil chain for empty input, got %+v", got)
	}
	if got := ParseLegacyHandoffChain("   "); got != nil {
		t.Fatalf("expected nil chain for blank input, got %+v", got)
	}
}
