package app

import (
	"testing"
	"time"

	"github.com/gova-training/gova/internal/availability"
)

func TestParseBookingPhrase(t *testing.T) {
	loc := time.UTC
	// Tuesday.
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, loc)

	cases := []struct {
		in   string
		date availability.DateKey
		slot availability.SlotKey
	}{
		{"tomorrow evening", "2025-06-11", availability.Evening},
		{"Morning today", "2025-06-10", availability.Morning},
		{"next sunday morning", "2025-06-15", availability.Morning},
		{"on friday in the evening", "2025-06-13", availability.Evening},
		{"15/06/2025 בוקר", "2025-06-15", availability.Morning},
		{"2025-06-20 ערב", "2025-06-20", availability.Evening},
		{"+3d morning", "2025-06-13", availability.Morning},
	}
	for _, tc := range cases {
		date, slot, err := parseBookingPhrase(tc.in, now, loc)
		if err != nil {
			t.Fatalf("parseBookingPhrase(%q) error: %v", tc.in, err)
		}
		if date != tc.date || slot != tc.slot {
			t.Fatalf("parseBookingPhrase(%q) = (%s, %s), want (%s, %s)", tc.in, date, slot, tc.date, tc.slot)
		}
	}
}

func TestParseBookingPhraseRejects(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"",
		"tomorrow",
		"evening",
		"tomorrow afternoon",
		"tomorrow morning evening",
		"today tomorrow morning",
	} {
		if _, _, err := parseBookingPhrase(in, now, time.UTC); err == nil {
			t.Fatalf("parseBookingPhrase(%q) should fail", in)
		}
	}
}
