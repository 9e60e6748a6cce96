package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/gova-training/gova/internal/availability"
	"github.com/gova-training/gova/internal/contract"
)

// slotHours is the local opening window of each slot.
var slotHours = map[availability.SlotKey][2]int{
	availability.Morning: {9, 13},
	availability.Evening: {16, 20},
}

func slotWindow(a contract.Appointment, loc *time.Location) (time.Time, time.Time, error) {
	key, err := availability.ParseDateKey(a.Date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	day, err := key.Time(loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	slot, err := availability.ParseSlot(a.TimeSlot)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	h := slotHours[slot]
	start := time.Date(day.Year(), day.Month(), day.Day(), h[0], 0, 0, 0, loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), h[1], 0, 0, 0, loc)
	return start, end, nil
}

// buildICS renders appointments as an iCalendar feed. Appointments whose date
// or slot cannot be read are skipped and reported.
func buildICS(items []contract.Appointment, loc *time.Location, now time.Time) (string, []string) {
	var b strings.Builder
	var warnings []string
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//gova//EN\r\n")
	b.WriteString("CALSCALE:GREGORIAN\r\n")
	stamp := now.UTC().Format("20060102T150405Z")
	for _, a := range items {
		start, end, err := slotWindow(a, loc)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipped appointment %s: %v", firstNonEmpty(a.ID, a.ConfirmationCode), err))
			continue
		}
		uid := firstNonEmpty(a.ConfirmationCode, a.ID)
		if uid == "" {
			uid = fmt.Sprintf("gova-%d", start.Unix())
		}
		b.WriteString("BEGIN:VEVENT\r\n")
		b.WriteString("UID:" + escapeICSText(uid) + "@gova\r\n")
		b.WriteString("DTSTAMP:" + stamp + "\r\n")
		b.WriteString("DTSTART:" + start.UTC().Format("20060102T150405Z") + "\r\n")
		b.WriteString("DTEND:" + end.UTC().Format("20060102T150405Z") + "\r\n")
		b.WriteString("SUMMARY:" + escapeICSText("Safety training ("+a.TimeSlot+")") + "\r\n")
		var notes []string
		if a.ConfirmationCode != "" {
			notes = append(notes, "Confirmation: "+a.ConfirmationCode)
		}
		if a.FullName != "" {
			notes = append(notes, "Name: "+a.FullName)
		}
		if a.PhoneNumber != "" {
			notes = append(notes, "Phone: "+a.PhoneNumber)
		}
		if len(notes) > 0 {
			b.WriteString("DESCRIPTION:" + escapeICSText(strings.Join(notes, "\n")) + "\r\n")
		}
		b.WriteString("END:VEVENT\r\n")
	}
	b.WriteString("END:VCALENDAR\r\n")
	return b.String(), warnings
}

func escapeICSText(v string) string {
	replacer := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n", "\r", "")
	return replacer.Replace(v)
}
