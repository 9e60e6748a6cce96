package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/gova-training/gova/internal/contract"
)

func TestSchemaVersionDefault(t *testing.T) {
	p := Printer{}
	if p.schemaVersion() != contract.SchemaVersion {
		t.Fatalf("expected default schema version %q", contract.SchemaVersion)
	}
}

func TestFlattenWithFields(t *testing.T) {
	a := contract.Appointment{
		ID:       "42",
		Date:     "2025-06-15",
		TimeSlot: "morning",
	}
	got := flatten(a, []string{"id", "time_slot"}, time.Now())
	if got != "42\tmorning" {
		t.Fatalf("unexpected flatten result: %q", got)
	}
}

func TestFlattenHumanizesTimes(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	row := struct {
		Code string
		At   time.Time
	}{Code: "ABC", At: now.Add(-3 * time.Hour)}
	got := flatten(row, []string{"code", "at"}, now)
	if got != "ABC\t3 hours ago" {
		t.Fatalf("unexpected flatten result: %q", got)
	}
}

func TestAutoModeIsJSONWhenNotATerminal(t *testing.T) {
	var out bytes.Buffer
	p := Printer{Mode: ModeAuto, Command: "slots", Out: &out}
	if p.EffectiveSuccessMode() != ModeJSON {
		t.Fatalf("expected json for a buffer, got %s", p.EffectiveSuccessMode())
	}
	if err := p.Success(map[string]string{"a": "b"}, nil, nil); err != nil {
		t.Fatalf("success: %v", err)
	}
	var env contract.SuccessEnvelope
	if err := json.Unmarshal(out.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if env.Command != "slots" || env.SchemaVersion != contract.SchemaVersion {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Warnings == nil || env.Meta == nil {
		t.Fatalf("warnings and meta must be non-nil: %+v", env)
	}
}

func TestJSONLWritesOneLinePerItem(t *testing.T) {
	var out bytes.Buffer
	p := Printer{Mode: ModeJSONL, Out: &out}
	if err := p.Success([]contract.Appointment{{ID: "1"}, {ID: "2"}}, nil, nil); err != nil {
		t.Fatalf("success: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out.String())
	}
}

func TestPlainWarningsGoToStderr(t *testing.T) {
	var out, errOut bytes.Buffer
	p := Printer{Mode: ModePlain, Out: &out, Err: &errOut}
	if err := p.Success([]string{}, nil, []string{"availability stale"}); err != nil {
		t.Fatalf("success: %v", err)
	}
	if strings.TrimSpace(out.String()) != "no results" {
		t.Fatalf("unexpected stdout: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "warning: availability stale") {
		t.Fatalf("unexpected stderr: %q", errOut.String())
	}
}

func TestErrorEnvelopeInJSONMode(t *testing.T) {
	var errOut bytes.Buffer
	p := Printer{Mode: ModeJSON, Err: &errOut}
	if err := p.Error(contract.ErrConflict, "slot taken", "pick another slot"); err != nil {
		t.Fatalf("error: %v", err)
	}
	var env contract.ErrorEnvelope
	if err := json.Unmarshal(errOut.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Code != contract.ErrConflict || env.Error.Hint != "pick another slot" {
		t.Fatalf("unexpected error envelope: %+v", env)
	}
}
