package availability

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// DayStatus is one row of an availability calendar.
type DayStatus struct {
	Date        DateKey `json:"date"`
	Weekday     string  `json:"weekday"`
	Available   SlotSet `json:"available"`
	Booked      SlotSet `json:"booked"`
	FullyBooked bool    `json:"fully_booked"`
	Selectable  bool    `json:"selectable"`
	Reason      string  `json:"reason,omitempty"`
}

type CalendarOptions struct {
	// Closed lists weekdays on which no bookings are taken. Those dates are
	// skipped entirely.
	Closed []time.Weekday
	// NotBefore marks dates earlier than this day as not selectable.
	NotBefore time.Time
	Location  *time.Location
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// Calendar lists every open date between from and to (inclusive) with the
// slots still available on it, the way a date picker disables cells.
func Calendar(m BookedSlotsMap, from, to time.Time, opts CalendarOptions) ([]DayStatus, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	start := midnight(from.In(loc))
	end := midnight(to.In(loc))
	if end.Before(start) {
		return nil, fmt.Errorf("calendar end %s is before start %s", end.Format(DateLayout), start.Format(DateLayout))
	}
	days, err := openDays(start, end, opts.Closed)
	if err != nil {
		return nil, err
	}
	var floor DateKey
	if !opts.NotBefore.IsZero() {
		floor = NormalizeDate(opts.NotBefore.In(loc))
	}
	rows := make([]DayStatus, 0, len(days))
	for _, day := range days {
		key := NormalizeDate(day)
		booked := m[key].Recognized()
		row := DayStatus{
			Date:        key,
			Weekday:     day.Weekday().String(),
			Available:   AvailableSlots(m, key),
			Booked:      booked,
			FullyBooked: IsDateFullyBooked(m, key),
		}
		switch {
		case floor != "" && key < floor:
			row.Reason = "past"
		case row.FullyBooked:
			row.Reason = "fully_booked"
		default:
			row.Selectable = true
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func openDays(start, end time.Time, closed []time.Weekday) ([]time.Time, error) {
	closedSet := map[time.Weekday]bool{}
	for _, wd := range closed {
		closedSet[wd] = true
	}
	weekdays := make([]rrule.Weekday, 0, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if !closedSet[wd] {
			weekdays = append(weekdays, rruleWeekdays[wd])
		}
	}
	if len(weekdays) == 0 {
		return nil, nil
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Dtstart:   start,
		Until:     end,
		Byweekday: weekdays,
	})
	if err != nil {
		return nil, fmt.Errorf("build calendar rule: %w", err)
	}
	return r.All(), nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
