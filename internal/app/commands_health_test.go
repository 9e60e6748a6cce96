package app

import (
	"errors"
	"strings"
	"testing"

	"github.com/gova-training/gova/internal/contract"
)

var healthyChecks = []contract.DoctorCheck{
	{Name: "api_url", Status: "ok", Message: "http://localhost:4040"},
	{Name: "api_reachable", Status: "ok", Message: "booking service answered HTTP 200"},
}

func TestVersionCommand(t *testing.T) {
	SetBuildInfo("v9.9.9", "abc", "2026-02-17T00:00:00Z")
	out, _, err := run(t, "version")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !strings.Contains(out, "gova v9.9.9 (abc) 2026-02-17T00:00:00Z") {
		t.Fatalf("unexpected version output: %q", out)
	}
}

func TestCompletionInvalidShellExitCode(t *testing.T) {
	_, _, err := run(t, "completion", "tcsh")
	if err == nil {
		t.Fatalf("expected error")
	}
	if code := ExitCode(err); code != 2 {
		t.Fatalf("exit code mismatch: got=%d want=2", code)
	}
}

func TestDoctorCommand(t *testing.T) {
	newTestEnv(t, &fakeBackend{checks: healthyChecks})
	out, _, err := run(t, "doctor", "--json")
	if err != nil {
		t.Fatalf("doctor failed: %v", err)
	}
	if !strings.Contains(out, `"command": "doctor"`) || !strings.Contains(out, `"api_reachable"`) {
		t.Fatalf("unexpected doctor output: %q", out)
	}
}

func TestDoctorFailureProducesSinglePayload(t *testing.T) {
	newTestEnv(t, &fakeBackend{
		checks:    []contract.DoctorCheck{{Name: "api_url", Status: "ok"}, {Name: "api_reachable", Status: "fail"}},
		doctorErr: errors.New("connection refused"),
	})
	out, errOut, err := run(t, "doctor", "--json")
	if err == nil {
		t.Fatalf("expected doctor error")
	}
	if code := ExitCode(err); code != 6 {
		t.Fatalf("exit code mismatch: got=%d want=6", code)
	}
	if errOut != "" {
		t.Fatalf("expected no stderr payload, got: %q", errOut)
	}
	if !strings.Contains(out, `"warnings": [`) || !strings.Contains(out, "connection refused") {
		t.Fatalf("expected warnings in doctor payload: %q", out)
	}
}

func TestStatusCommand(t *testing.T) {
	env := newTestEnv(t, &fakeBackend{checks: healthyChecks})
	env.signIn(t, "ADMIN")
	out, _, err := run(t, "status", "--json")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	for _, want := range []string{`"command": "status"`, `"ready": true`, `"logged_in": true`, `"role": "ADMIN"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in output: %q", want, out)
		}
	}
}

func TestStatusCommandNotReadyExitCode(t *testing.T) {
	newTestEnv(t, &fakeBackend{
		checks:    []contract.DoctorCheck{{Name: "api_url", Status: "ok"}, {Name: "api_reachable", Status: "fail"}},
		doctorErr: errors.New("connection refused"),
	})
	_, _, err := run(t, "status", "--json")
	if err == nil {
		t.Fatalf("expected status error")
	}
	if code := ExitCode(err); code != 6 {
		t.Fatalf("exit code mismatch: got=%d want=6", code)
	}
}

func TestStatusCommandReportsEffectiveOutputMode(t *testing.T) {
	newTestEnv(t, &fakeBackend{checks: healthyChecks})
	out, _, err := run(t, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, `"output_mode": "json"`) {
		t.Fatalf("expected effective output_mode json in non-tty, got: %q", out)
	}
}

func TestStatusExplainPlain(t *testing.T) {
	newTestEnv(t, &fakeBackend{checks: []contract.DoctorCheck{
		{Name: "api_url", Status: "ok"},
		{Name: "api_reachable", Status: "warn", Message: "booking service answered HTTP 502"},
	}})
	out, _, err := run(t, "status", "explain", "--plain")
	if err != nil {
		t.Fatalf("status explain failed: %v", err)
	}
	if !strings.Contains(out, "ready=true degraded=true") || !strings.Contains(out, "reasons=api_reachable_warn") {
		t.Fatalf("unexpected explain output: %q", out)
	}
}
