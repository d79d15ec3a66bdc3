// Package runner implements the Model Session Runner (spec §4.D): the
// adapter between a stage's assembled prompt and an external model
// session, independent of any particular model vendor. It generalizes
// the teacher's plain request/response MCP tool calls (internal/tools)
// into a long-lived, streaming, cancellable session with tool-call
// interception and retry/back-off, the way
// other_examples/8f6f9710_fanjia1024-Aetheris's executor.Runner
// generalizes a single-shot Invoke into a steppable, event-sinked run.
package runner

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// EventType identifies one kind of streaming event a session can emit
// (spec §4.D "Streaming protocol").
type EventType string

const (
	EventText       EventType = "text"
	EventToolUse    EventType = "tool_use"
	EventToolResult EventType = "tool_result"
	EventContext    EventType = "context"
	EventTodo       EventType = "todo"
	EventError      EventType = "error"
)

// StreamEvent is the payload delivered to onStream for every
// incremental event a session produces.
type StreamEvent struct {
	Type    EventType
	Content string

	// Populated for EventToolUse / EventToolResult.
	ToolName  string
	ToolInput json.RawMessage

	// Populated for EventContext ("<usedTokens>:<maxTokens>" parsed).
	UsedTokens int
	MaxTokens  int
	ContextOK  bool // false when the context payload was malformed

	// Populated for EventTodo.
	Todo *TodoEvent
}

// TodoTool is the shape of a todo-tool invocation, parsed from its
// tool_use payload into one of three forms (spec §4.D).
type TodoTool string

const (
	TodoCreateOne   TodoTool = "create_one"
	TodoUpdateOneByID TodoTool = "update_one"
	TodoWriteList     TodoTool = "write_list"
)

// TodoEvent carries a parsed todo-tool invocation.
type TodoEvent struct {
	Kind    TodoTool
	Subject string          // create_one
	ID      string          // update_one
	Status  string          // update_one
	Items   json.RawMessage // write_list, raw array to be unmarshalled by the caller
}

// toolCallRe recognises `<tool_call name="NAME">payload</tool_call>`
// inline in assistant text, for surfacing older inline-emitted tools
// as events (spec §4.D "Tool interception"). Tool names may contain
// letters, digits, hyphens and underscores.
var toolCallRe = regexp.MustCompile(`<tool_call\s+name="([A-Za-z0-9_-]+)">([\s\S]*?)</tool_call>`)

// toolCallStrictRe is the stricter `\w+` variant, used where a
// caller wants to reject hyphenated tool names (spec §8 "regex
// comparison" test requirement). Unlike toolCallRe it will not match
// names containing a hyphen.
var toolCallStrictRe = regexp.MustCompile(`<tool_call\s+name="(\w+)">([\s\S]*?)</tool_call>`)

// InlineToolCall is one interception match.
type InlineToolCall struct {
	Name    string
	Payload json.RawMessage
	Raw     string // raw payload text, retained even if it fails to parse as JSON
}

// ExtractInlineToolCalls scans text for `<tool_call>` blocks using the
// permissive `[A-Za-z0-9_-]+` name pattern. Malformed JSON payloads do
// not cause an error: the raw text is retained on the match and
// Payload is left nil.
func ExtractInlineToolCalls(text string) []InlineToolCall {
	return extractToolCalls(text, toolCallRe)
}

// ExtractInlineToolCallsStrict is the `\w+`-only variant (no hyphens
// in tool names), kept distinct from ExtractInlineToolCalls so the two
// interception strategies can be compared directly (spec §8).
func ExtractInlineToolCallsStrict(text string) []InlineToolCall {
	return extractToolCalls(text, toolCallStrictRe)
}

func extractToolCalls(text string, re *regexp.Regexp) []InlineToolCall {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]InlineToolCall, 0, len(matches))
	for _, m := range matches {
		call := InlineToolCall{Name: m[1], Raw: m[2]}
		var payload json.RawMessage
		if err := json.Unmarshal([]byte(m[2]), &payload); err == nil {
			call.Payload = payload
		}
		out = append(out, call)
	}
	return out
}

// ParseContextTelemetry parses a "<used>:<max>" context payload. ok is
// false on a malformed payload, in which case the event must be
// ignored rather than surfaced (spec §4.D).
func ParseContextTelemetry(content string) (used, max int, ok bool) {
	var u, mx int
	n, err := fmt.Sscanf(content, "%d:%d", &u, &mx)
	if err != nil || n != 2 {
		return 0, 0, false
	}
	return u, mx, true
}
