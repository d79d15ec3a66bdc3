package runner

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeBackend struct {
	calls   int
	fail    int // number of leading calls that return a RetryableError
	finalRes Result
	finalErr error
}

func (f *fakeBackend) Invoke(ctx context.Context, req Request) (Result, error) {
	f.calls++
	if f.calls <= f.fail {
		return Result{}, &RetryableError{Err: errors.New("rate limited"), RetryAfterSeconds: 0}
	}
	return f.finalRes, f.finalErr
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	backend := &fakeBackend{fail: 1, finalRes: Result{FinalText: "done"}}
	r := NewRunner(backend)

	// One retry costs one BackoffDelay(0, 0) = 1s real sleep; kept to a
	// single retry so the test stays fast.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res := r.Run(ctx, Request{Prompt: "hello"})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.FinalText != "done" {
		t.Errorf("FinalText = %q, want done", res.FinalText)
	}
	if backend.calls != 2 {
		t.Errorf("calls = %d, want 2", backend.calls)
	}
}

func TestRun_NonRetryableErrorSurfacesImmediately(t *testing.T) {
	wantErr := errors.New("bad prompt")
	backend := &fakeBackend{finalErr: wantErr}
	r := NewRunner(backend)

	res := r.Run(context.Background(), Request{Prompt: "hello"})
	if !errors.Is(res.Err, wantErr) {
		t.Errorf("Err = %v, want %v", res.Err, wantErr)
	}
	if backend.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", backend.calls)
	}
}

func TestRun_CancelledContextReturnsCancelledResult(t *testing.T) {
	backend := &fakeBackend{fail: 100}
	r := NewRunner(backend)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Run(ctx, Request{Prompt: "hello"})
	if !res.Cancelled {
		t.Errorf("expected Cancelled=true")
	}
}

func TestRun_InterceptsInlineToolCallsInTextEvents(t *testing.T) {
	var seen []EventType
	backend := backendFunc(func(ctx context.Context, req Request) (Result, error) {
		req.OnStream(ctx, StreamEvent{Type: EventText, Content: `see <tool_call name="grep">{}</tool_call>`})
		return Result{FinalText: "ok"}, nil
	})
	r := NewRunner(backend)

	res := r.Run(context.Background(), Request{
		OnStream: func(ctx context.Context, ev StreamEvent) { seen = append(seen, ev.Type) },
	})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(seen) != 2 || seen[0] != EventToolUse || seen[1] != EventText {
		t.Errorf("seen = %v, want [tool_use text]", seen)
	}
}

type backendFunc func(ctx context.Context, req Request) (Result, error)

func (f backendFunc) Invoke(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

func TestApprovalRegistry_ResolveDeliversDecision(t *testing.T) {
	reg := NewApprovalRegistry()
	id, decisions := reg.Request("session-1")

	go func() {
		_ = reg.Resolve(id, ApprovalDecision{Allow: true})
	}()

	select {
	case d := <-decisions:
		if !d.Allow {
			t.Errorf("expected allow=true")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for decision")
	}
}

func TestApprovalRegistry_ResolveUnknownRequestErrors(t *testing.T) {
	reg := NewApprovalRegistry()
	if err := reg.Resolve("missing", ApprovalDecision{Allow: true}); err == nil {
		t.Fatalf("expected error for unknown request id")
	}
}

func TestApprovalRegistry_CancelSessionDeniesOnlyThatSessionsApprovals(t *testing.T) {
	reg := NewApprovalRegistry()
	idA, chA := reg.Request("session-a")
	_, chB := reg.Request("session-b")

	reg.CancelSession("session-a")

	select {
	case d := <-chA:
		if d.Allow {
			t.Errorf("expected deny for cancelled session")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for session-a decision")
	}

	select {
	case <-chB:
		t.Fatalf("session-b approval should not have been resolved")
	default:
	}

	if err := reg.Resolve(idA, ApprovalDecision{Allow: true}); err == nil {
		t.Fatalf("expected error resolving an already-cancelled request")
	}
}
