package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gova-training/gova/internal/backend"
)

// callError carries the phase of a failed booking call. Interrupt is set
// when the command context ended the call rather than the service.
type callError struct {
	Phase     string
	Interrupt string
	Deadline  *time.Time
	Err       error
}

func (e *callError) Error() string {
	if e == nil {
		return "booking call failed"
	}
	switch e.Interrupt {
	case "timeout":
		if e.Deadline != nil {
			return fmt.Sprintf("%s timed out after deadline %s: %v", e.Phase, e.Deadline.Format(time.RFC3339), e.Err)
		}
		return fmt.Sprintf("%s timed out: %v", e.Phase, e.Err)
	case "canceled":
		return fmt.Sprintf("%s canceled: %v", e.Phase, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *callError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func annotateBackendError(ctx context.Context, phase string, err error) error {
	if err == nil {
		return nil
	}
	ce := &callError{Phase: phase, Err: err}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		ce.Interrupt = "timeout"
		if deadline, ok := ctx.Deadline(); ok {
			deadline = deadline.UTC()
			ce.Deadline = &deadline
		}
	case errors.Is(err, context.Canceled):
		ce.Interrupt = "canceled"
	}
	return ce
}

// interrupted reports whether the command context, not the service, ended
// the call.
func interrupted(err error) bool {
	var ce *callError
	return errors.As(err, &ce) && ce.Interrupt != ""
}

func backendErrorMeta(err error) map[string]any {
	var ce *callError
	if !errors.As(err, &ce) || ce == nil {
		return nil
	}
	meta := map[string]any{"phase": ce.Phase}
	if ce.Interrupt != "" {
		meta["interrupt"] = ce.Interrupt
	}
	if ce.Deadline != nil {
		meta["deadline"] = ce.Deadline.Format(time.RFC3339)
	}
	var be *backend.Error
	if errors.As(ce.Err, &be) && be != nil {
		meta["kind"] = string(be.Kind)
		if be.Op != "" {
			meta["op"] = be.Op
		}
		if be.Status != 0 {
			meta["status"] = be.Status
		}
	}
	return meta
}
