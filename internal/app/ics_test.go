package app

import (
	"strings"
	"testing"
	"time"

	"github.com/gova-training/gova/internal/contract"
)

func TestBuildICS(t *testing.T) {
	loc := time.FixedZone("IDT", 3*3600)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	items := []contract.Appointment{
		{ID: "a-1", Date: "2026-05-03", TimeSlot: "evening", ConfirmationCode: "ABC123", FullName: "Levi, Dana"},
		{ID: "a-2", Date: "2026-05-04", TimeSlot: "night"},
	}
	ics, warnings := buildICS(items, loc, now)
	if len(warnings) != 1 || !strings.Contains(warnings[0], "a-2") {
		t.Fatalf("expected warning for unknown slot, got %v", warnings)
	}
	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"UID:ABC123@gova\r\n",
		"DTSTAMP:20260501T080000Z\r\n",
		"DTSTART:20260503T130000Z\r\n",
		"DTEND:20260503T170000Z\r\n",
		`DESCRIPTION:Confirmation: ABC123\nName: Levi\, Dana`,
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(ics, want) {
			t.Fatalf("missing %q in:\n%s", want, ics)
		}
	}
	if got := strings.Count(ics, "BEGIN:VEVENT"); got != 1 {
		t.Fatalf("expected one event, got %d", got)
	}
}

func TestEscapeICSText(t *testing.T) {
	got := escapeICSText("a;b,c\\d\r\ne")
	if want := `a\;b\,c\\d\ne`; got != want {
		t.Fatalf("escapeICSText = %q, want %q", got, want)
	}
}
