package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/gova-training/gova/internal/availability"
	"github.com/gova-training/gova/internal/timeparse"
)

var phraseFillers = map[string]bool{"on": true, "in": true, "the": true, "at": true, "for": true, "a": true}

// parseBookingPhrase reads a date and a slot out of short text such as
// "tomorrow evening", "next sunday morning" or "15/06/2025 בוקר".
func parseBookingPhrase(input string, now time.Time, loc *time.Location) (availability.DateKey, availability.SlotKey, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return "", "", fmt.Errorf("input is required")
	}
	tokens := strings.Fields(text)
	var date availability.DateKey
	var slot availability.SlotKey
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		lower := strings.ToLower(tok)
		if phraseFillers[lower] {
			continue
		}
		if s, err := availability.ParseSlot(tok); err == nil {
			if slot != "" && slot != s {
				return "", "", fmt.Errorf("more than one slot in %q", input)
			}
			slot = s
			continue
		}
		if lower == "next" && i+1 < len(tokens) && timeparse.IsWeekday(tokens[i+1]) {
			tok = tok + " " + tokens[i+1]
			i++
		}
		if !isDayToken(tok) {
			return "", "", fmt.Errorf("unrecognized word %q", tok)
		}
		day, err := timeparse.ParseDateTime(tok, now, loc)
		if err != nil {
			return "", "", fmt.Errorf("invalid day: %w", err)
		}
		if date != "" {
			return "", "", fmt.Errorf("more than one date in %q", input)
		}
		date = availability.NormalizeDate(day)
	}
	if date == "" {
		return "", "", fmt.Errorf("missing date; include a day such as tomorrow or 2025-06-15")
	}
	if slot == "" {
		return "", "", fmt.Errorf("missing slot; include morning or evening")
	}
	return date, slot, nil
}

func isDayToken(token string) bool {
	s := strings.ToLower(strings.TrimSpace(token))
	if s == "today" || s == "tomorrow" {
		return true
	}
	if strings.HasSuffix(s, "d") && strings.HasPrefix(s, "+") {
		return true
	}
	if timeparse.IsWeekday(s) {
		return true
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006", "2/1/2006", "02.01.2006"} {
		if _, err := time.Parse(layout, token); err == nil {
			return true
		}
	}
	return false
}
