package pipelineengine

import (
	"context"
	"strings"

	"github.com/hoofy-labs/pipeline-engine/internal/runner"
)

// defaultSessionTitle is the title assigned to a free-form chat
// session at creation, before auto-naming has run.
const defaultSessionTitle = "New session"

// WorkshopSession is the minimal view of a free-form chat session the
// auto-naming flow needs.
type WorkshopSession struct {
	ID    string
	Title string
}

// WorkshopRenamer persists a session's new title.
type WorkshopRenamer interface {
	RenameSession(ctx context.Context, sessionID, title string) error
}

// AutoNameSession issues a short secondary prompt asking the model
// for a 3-5 word title once a free-form session's first assistant
// turn completes with the default title still in place, and renames
// the session on success. Failure is silent: the title is left as-is
// (spec §4.E.7 "Session auto-naming").
func (e *Engine) AutoNameSession(ctx context.Context, sess WorkshopSession, renamer WorkshopRenamer) {
	if sess.Title != defaultSessionTitle {
		return
	}

	req := runner.Request{
		Prompt:       "Summarise this conversation so far in a 3-5 word title. Respond with only the title, no punctuation.",
		ResumeHandle: sess.ID,
	}
	res := e.runner.Run(ctx, req)
	if res.Err != nil || res.Cancelled {
		return
	}

	title := strings.TrimSpace(res.FinalText)
	title = strings.Trim(title, "\"'")
	if title == "" {
		return
	}

	_ = renamer.RenameSession(ctx, sess.ID, title)
}
