package engine

import (
	"context"
	"errors"

	"github.com/atlasreq/tracegraph/core/graph"
	"github.com/atlasreq/tracegraph/core/impact"
	"github.com/atlasreq/tracegraph/core/model"
	"github.com/atlasreq/tracegraph/core/store"
)

// ErrorCode classifies operation failures for the calling layer. Cycle
// detection and depth exhaustion are successful results and never map to a
// code here.
type ErrorCode string

const (
	CodeInvalidInput  ErrorCode = "invalid_input"
	CodeNotFound      ErrorCode = "not_found"
	CodeDuplicateLink ErrorCode = "duplicate_link"
	CodeCycleDetected ErrorCode = "cycle_detected"
	CodeConflict      ErrorCode = "version_conflict"
	CodeTimeout       ErrorCode = "timeout"
	CodeBackingStore  ErrorCode = "backing_store"
)

// Status is the success/error envelope every operation returns. Failures
// carry a code and message; they never surface as panics or bare errors
// across the boundary.
type Status struct {
	Success   bool      `json:"success"`
	ErrorCode ErrorCode `json:"error_code,omitempty"`
	Message   string    `json:"message,omitempty"`
}

func ok() Status {
	return Status{Success: true}
}

func fail(code ErrorCode, err error) Status {
	return Status{Success: false, ErrorCode: code, Message: err.Error()}
}

// classify maps an internal error to the boundary taxonomy. Anything
// unrecognized is a backing-store failure: the store is the only
// collaborator that can fail in ways the engine does not enumerate.
func classify(err error) Status {
	switch {
	case errors.Is(err, model.ErrSelfReference),
		errors.Is(err, graph.ErrSelfReference),
		errors.Is(err, model.ErrUnknownLinkType),
		errors.Is(err, model.ErrStrengthOutOfRange),
		errors.Is(err, graph.ErrInvalidDirection),
		errors.Is(err, impact.ErrInsufficientSamples):
		return fail(CodeInvalidInput, err)

	case errors.Is(err, store.ErrEntityNotFound),
		errors.Is(err, store.ErrLinkNotFound),
		errors.Is(err, graph.ErrRootNotFound),
		errors.Is(err, impact.ErrTargetNotFound):
		return fail(CodeNotFound, err)

	case errors.Is(err, store.ErrDuplicateLink):
		return fail(CodeDuplicateLink, err)

	case errors.Is(err, store.ErrVersionConflict):
		return fail(CodeConflict, err)

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fail(CodeTimeout, err)

	default:
		return fail(CodeBackingStore, err)
	}
}
