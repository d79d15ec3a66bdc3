package runner

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ApprovalDecision is the caller's resolution of a pending tool
// approval request.
type ApprovalDecision struct {
	Allow   bool
	Message string // populated on deny
}

// pendingApproval is one outstanding tool-use approval, parked until
// the owning application resolves it via Resolve.
type pendingApproval struct {
	sessionID string
	resolve   chan ApprovalDecision
}

// ApprovalRegistry is the process-wide map of outstanding approval
// requests, keyed by request id and tagged by owning session so a
// terminating session's approvals can be cleaned up without touching
// any other session's. Grounded on the teacher's MCP tool-call model,
// where each call is independently addressable; generalized here to
// support asynchronous resolution from outside the calling goroutine.
type ApprovalRegistry struct {
	mu      sync.Mutex
	pending map[string]*pendingApproval
}

// NewApprovalRegistry creates an empty registry.
func NewApprovalRegistry() *ApprovalRegistry {
	return &ApprovalRegistry{pending: make(map[string]*pendingApproval)}
}

// Request registers a new pending approval for sessionID and returns
// its id plus a channel that receives exactly one decision.
func (r *ApprovalRegistry) Request(sessionID string) (requestID string, decisions <-chan ApprovalDecision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan ApprovalDecision, 1)
	r.pending[id] = &pendingApproval{sessionID: sessionID, resolve: ch}
	return id, ch
}

// Resolve delivers a decision for requestID. Returns an error if the
// request is unknown or already resolved.
func (r *ApprovalRegistry) Resolve(requestID string, decision ApprovalDecision) error {
	r.mu.Lock()
	pa, ok := r.pending[requestID]
	if ok {
		delete(r.pending, requestID)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("runner: no pending approval request %q", requestID)
	}
	pa.resolve <- decision
	return nil
}

// CancelSession resolves every pending approval owned by sessionID
// with a deny, so cancellation never leaves a caller blocked forever
// waiting on a decision that can no longer arrive (spec §4.D
// "Cancellation ... resolve outstanding approval promises with deny,
// so they never leak").
func (r *ApprovalRegistry) CancelSession(sessionID string) {
	r.mu.Lock()
	var toDeny []*pendingApproval
	for id, pa := range r.pending {
		if pa.sessionID == sessionID {
			toDeny = append(toDeny, pa)
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()

	for _, pa := range toDeny {
		pa.resolve <- ApprovalDecision{Allow: false, Message: "session cancelled"}
	}
}
