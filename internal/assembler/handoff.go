package assembler

import (
	"regexp"
	"strings"

	"github.com/hoofy-labs/pipeline-engine/internal/task"
)

var handoffHeaderRe = regexp.MustCompile(`(?m)^##\s+Hand-off\s*$`)

// fieldPatterns maps the labelled markdown fields in a "## Hand-off"
// block to the Handoff struct field they populate. Matching is
// line-anchored and tolerant of bold markers around the label (spec
// §4.C "Hand-off parsing" — fields are recognised by label, not by
// position).
var fieldPatterns = []struct {
	re   *regexp.Regexp
	set  func(h *task.Handoff, v string)
}{
	{regexp.MustCompile(`(?mi)^[-*]\s*\*{0,2}Summary\*{0,2}\s*:\s*(.+)$`), func(h *task.Handoff, v string) { h.Summary = v }},
	{regexp.MustCompile(`(?mi)^[-*]\s*\*{0,2}Key Decisions\*{0,2}\s*:\s*(.+)$`), func(h *task.Handoff, v string) { h.KeyDecisions = v }},
	{regexp.MustCompile(`(?mi)^[-*]\s*\*{0,2}Open Questions\*{0,2}\s*:\s*(.+)$`), func(h *task.Handoff, v string) { h.OpenQuestions = v }},
	{regexp.MustCompile(`(?mi)^[-*]\s*\*{0,2}Files Modified\*{0,2}\s*:\s*(.+)$`), func(h *task.Handoff, v string) { h.FilesModified = v }},
	{regexp.MustCompile(`(?mi)^[-*]\s*\*{0,2}Next Stage Needs\*{0,2}\s*:\s*(.+)$`), func(h *task.Handoff, v string) { h.NextStageNeeds = v }},
	{regexp.MustCompile(`(?mi)^[-*]\s*\*{0,2}Warnings\*{0,2}\s*:\s*(.+)$`), func(h *task.Handoff, v string) { h.Warnings = v }},
	{regexp.MustCompile(`(?mi)^[-*]\s*\*{0,2}Status Note\*{0,2}\s*:\s*(.+)$`), func(h *task.Handoff, v string) { h.StatusNote = v }},
}

// ParseHandoffBlock scans a model's raw response text for a trailing
// "## Hand-off" block and extracts its labelled fields into a partial
// Handoff. It returns (nil, false) when no header is found, so the
// caller can synthesize a minimal hand-off from whatever text was
// produced (spec §4.C: "if a model's response contains no parseable
// hand-off, the engine synthesises one from the raw output rather
// than blocking the stage transition").
func ParseHandoffBlock(raw string) (*task.Handoff, bool) {
	locs := handoffHeaderRe.FindAllStringIndex(raw, -1)
	if locs == nil {
		return nil, false
	}
	block := raw[locs[len(locs)-1][1]:] // the last header is the trailing block

	h := &task.Handoff{}
	for _, fp := range fieldPatterns {
		m := fp.re.FindStringSubmatch(block)
		if m != nil {
			fp.set(h, strings.TrimSpace(m[1]))
		}
	}
	return h, true
}

// SynthesizeHandoff builds a minimal Handoff from raw model output
// when no parseable "## Hand-off" block was found, per spec §4.C.
func SynthesizeHandoff(raw string) *task.Handoff {
	summary := strings.TrimSpace(raw)
	if len(summary) > 500 {
		summary = summary[:500] + "…"
	}
	return &task.Handoff{
		Summary:    naOr(summary),
		StatusNote: "synthesized: no hand-off block found in model output",
	}
}

// ParseLegacyHandoffChain parses a pipe-delimited legacy hand-off
// chain string of the form "stage1::summary1||stage2::summary2" into
// a best-effort slice of partial hand-offs. It never returns an error:
// malformed segments (missing delimiters, empty parts) are skipped and
// the well-formed ones kept, so input with no well-formed segment
// yields an empty chain.
func ParseLegacyHandoffChain(raw string) []task.Handoff {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	segments := strings.Split(raw, "||")
	out := make([]task.Handoff, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		parts := strings.SplitN(seg, "::", 2)
		if len(parts) != 2 {
			continue
		}
		stage := strings.TrimSpace(parts[0])
		summary := strings.TrimSpace(parts[1])
		if stage == "" || summary == "" {
			continue
		}
		out = append(out, task.Handoff{
			Stage:   task.Stage(stage),
			Summary: summary,
		})
	}
	return out
}
