package app

import (
	"context"
	"strings"
	"testing"

	"github.com/gova-training/gova/internal/availability"
	"github.com/gova-training/gova/internal/contract"
)

type blockingBackend struct {
	fakeBackend
}

func (b *blockingBackend) BookedSlots(ctx context.Context, _ string) (availability.BookedSlotsMap, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingBackend) Profile(ctx context.Context, _ string) (*contract.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSlotsTimeoutIncludesBackendPhase(t *testing.T) {
	newTestEnv(t, &blockingBackend{})
	out, errOut, err := run(t, "slots", "--date", "2099-01-05", "--timeout", "1ns", "--json")
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if code := ExitCode(err); code != 6 {
		t.Fatalf("exit code mismatch: got=%d want=6", code)
	}
	if got := out + errOut; !strings.Contains(got, "backend.booked_slots timed out") {
		t.Fatalf("expected backend phase timeout in output, got: %q", got)
	}
}

func TestBookTimeoutIncludesBackendPhase(t *testing.T) {
	env := newTestEnv(t, &blockingBackend{})
	env.signIn(t, "USER")
	out, errOut, err := run(t, "book", "--date", "2099-01-05", "--slot", "morning", "--timeout", "1ns", "--json")
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if code := ExitCode(err); code != 6 {
		t.Fatalf("exit code mismatch: got=%d want=6", code)
	}
	if got := out + errOut; !strings.Contains(got, "backend.profile timed out") {
		t.Fatalf("expected backend phase timeout in output, got: %q", got)
	}
}
