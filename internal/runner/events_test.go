package runner

import "testing"

func TestExtractInlineToolCalls_PermissiveAllowsHyphens(t *testing.T) {
	text := `before <tool_call name="read-file">{"path":"a.go"}</tool_call> after`
	calls := ExtractInlineToolCalls(text)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "read-file" {
		t.Errorf("Name = %q, want read-file", calls[0].Name)
	}
	if calls[0].Payload == nil {
		t.Errorf("expected parsed payload")
	}
}

func TestExtractInlineToolCallsStrict_RejectsHyphenatedNames(t *testing.T) {
	text := `<tool_call name="read-file">{"path":"a.go"}</tool_call>`
	calls := ExtractInlineToolCallsStrict(text)
	if len(calls) != 0 {
		t.Fatalf("expected strict matcher to reject hyphenated name, got %d calls", len(calls))
	}
}

func TestExtractInlineToolCallsStrict_MatchesUnderscoreNames(t *testing.T) {
	text := `<tool_call name="read_file">{"path":"a.go"}</tool_call>`
	calls := ExtractInlineToolCallsStrict(text)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "read_file" {
		t.Errorf("Name = %q", calls[0].Name)
	}
}

func TestExtractInlineToolCalls_MalformedJSONRetainsRawPayload(t *testing.T) {
	text := `<tool_call name="write_file">{not valid json</tool_call>`
	calls := ExtractInlineToolCalls(text)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Payload != nil {
		t.Errorf("expected nil Payload on malformed JSON, got %s", calls[0].Payload)
	}
	if calls[0].Raw != "{not valid json" {
		t.Errorf("Raw = %q", calls[0].Raw)
	}
}

func TestExtractInlineToolCalls_NoMatchesReturnsNil(t *testing.T) {
	if got := ExtractInlineToolCalls("plain text, no tool calls here"); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestExtractInlineToolCalls_MultipleCalls(t *testing.T) {
	text := `<tool_call name="a">{}</tool_call> middle <tool_call name="b">{}</tool_call>`
	calls := ExtractInlineToolCalls(text)
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Name != "a" || calls[1].Name != "b" {
		t.Errorf("unexpected names: %q, %q", calls[0].Name, calls[1].Name)
	}
}

func TestParseContextTelemetry_ValidPayload(t *testing.T) {
	used, max, ok := ParseContextTelemetry("1200:8000")
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if used != 1200 || max != 8000 {
		t.Errorf("got used=%d max=%d", used, max)
	}
}

func TestParseContextTelemetry_MalformedIsIgnored(t *testing.T) {
	if _, _, ok := ParseContextTelemetry("not-a-ratio"); ok {
		t.Errorf("expected ok=false for malformed payload")
	}
	if _, _, ok := ParseContextTelemetry(""); ok {
		t.Errorf("expected ok=false for empty payload")
	}
}
