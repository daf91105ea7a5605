package sync

import (
	"context"
	"time"

	"github.com/wendleyw/boardsync/pkg/types"
)

// BoardAdapter is the narrow capability the engine needs from the whiteboard
// side. Implemented by board.Client.
type BoardAdapter interface {
	Ready() bool
	UpdateTaskWidget(ctx context.Context, boardID, widgetID string, completed bool, taskName string) error
	AddLogEntry(ctx context.Context, boardID, frameID, message, author string, at time.Time) error
}

// TrackerAdapter is the narrow capability the engine needs from the task
// platform side. Implemented by tracker.Client.
type TrackerAdapter interface {
	Ready() bool
	UpdateItemCompletion(ctx context.Context, itemID string, completed bool) error
	AddComment(ctx context.Context, itemID, comment string) error
}

// PropagationFailure records one failed attempt to mirror a change onto a
// platform. Propagation failures never fail the overall sync call: the
// authoritative local write has already committed by the time they happen.
type PropagationFailure struct {
	Platform types.Platform `json:"platform"`
	Error    string         `json:"error"`
}

// Result is the outcome of a sync operation. NotFound marks failures caused
// by a missing mapping or ticket so callers can branch without matching
// error strings; it is not part of the wire format.
type Result struct {
	Success     bool                 `json:"success"`
	Error       string               `json:"error,omitempty"`
	NotFound    bool                 `json:"-"`
	Propagation []PropagationFailure `json:"propagation_failures,omitempty"`
}

func failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

func notFound(msg string) Result {
	return Result{Success: false, Error: msg, NotFound: true}
}
