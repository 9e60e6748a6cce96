package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gova-training/gova/internal/backend"
	"github.com/gova-training/gova/internal/output"
)

func TestBackendErrorMetaFromDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := annotateBackendError(ctx, "backend.booked_slots", context.DeadlineExceeded)
	meta := backendErrorMeta(err)
	if meta == nil {
		t.Fatalf("expected metadata for annotated timeout")
	}
	if meta["phase"] != "backend.booked_slots" || meta["interrupt"] != "timeout" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if _, ok := meta["deadline"]; !ok {
		t.Fatalf("expected deadline in metadata: %+v", meta)
	}
	if !interrupted(err) {
		t.Fatalf("timeout should count as interrupted")
	}
}

func TestBackendErrorMetaCarriesServiceFailure(t *testing.T) {
	err := annotateBackendError(context.Background(), "backend.book",
		&backend.Error{Kind: backend.KindConflict, Status: 409, Op: "book", Message: "slot already taken"})
	meta := backendErrorMeta(err)
	if meta["phase"] != "backend.book" || meta["kind"] != "conflict" || meta["op"] != "book" || meta["status"] != 409 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if _, ok := meta["interrupt"]; ok {
		t.Fatalf("service failure is not an interrupt: %+v", meta)
	}
	if interrupted(err) {
		t.Fatalf("service failure should not count as interrupted")
	}
	if backend.KindOf(err) != backend.KindConflict {
		t.Fatalf("annotation hid the backend kind: %q", backend.KindOf(err))
	}
	if err.Error() != "book: slot already taken" {
		t.Fatalf("annotation changed the message: %q", err.Error())
	}
}

func TestAnnotatedServiceFailureKeepsServerMessage(t *testing.T) {
	var errOut bytes.Buffer
	p := output.Printer{Mode: output.ModePlain, Err: &errOut}
	err := failBackend(p, annotateBackendError(context.Background(), "backend.book",
		&backend.Error{Kind: backend.KindConflict, Status: 409, Op: "book", Message: "slot already taken"}))
	if ExitCode(err) != 5 {
		t.Fatalf("expected exit 5, got %d", ExitCode(err))
	}
	if !strings.Contains(errOut.String(), "error: slot already taken") {
		t.Fatalf("unexpected stderr: %q", errOut.String())
	}
}

func TestBackendErrorMetaNilForGenericError(t *testing.T) {
	meta := backendErrorMeta(context.Canceled)
	if meta != nil {
		t.Fatalf("did not expect metadata for unannotated error: %+v", meta)
	}
	if annotateBackendError(context.Background(), "backend.book", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}

func TestBackendContextErrorMessageContainsPhase(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := annotateBackendError(ctx, "backend.book", context.DeadlineExceeded)
	if !strings.Contains(err.Error(), "backend.book timed out") {
		t.Fatalf("expected phase-aware message, got: %q", err.Error())
	}
}
