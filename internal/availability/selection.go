package availability

import (
	"errors"
	"fmt"
)

var (
	ErrNoDateSelected  = errors.New("select a date before choosing a time slot")
	ErrSlotUnavailable = errors.New("time slot is not available on the selected date")
	ErrDateFullyBooked = errors.New("date is fully booked")
)

// Selection holds the date and slot chosen on a booking form. Choosing a new
// date always clears the slot, so a slot picked for one date is never
// submitted against another.
type Selection struct {
	date DateKey
	slot SlotKey
}

func (s *Selection) Date() DateKey { return s.date }
func (s *Selection) Slot() SlotKey { return s.slot }

// Complete reports whether both a date and a slot are chosen.
func (s *Selection) Complete() bool {
	return s.date != "" && s.slot != ""
}

// SelectDate sets the date, clears the slot, and returns the slots still
// available on that date.
func (s *Selection) SelectDate(m BookedSlotsMap, d DateKey) SlotSet {
	s.date = d
	s.slot = ""
	return AvailableSlots(m, d)
}

// SelectSlot chooses a slot for the current date. It fails when no date is
// selected or the slot is already taken in m.
func (s *Selection) SelectSlot(m BookedSlotsMap, slot SlotKey) error {
	if s.date == "" {
		return ErrNoDateSelected
	}
	if !slot.Known() {
		return fmt.Errorf("invalid time slot %q", slot)
	}
	if IsDateFullyBooked(m, s.date) {
		return fmt.Errorf("%w: %s", ErrDateFullyBooked, s.date)
	}
	if !AvailableSlots(m, s.date).Has(slot) {
		return fmt.Errorf("%w: %s %s", ErrSlotUnavailable, s.date, slot)
	}
	s.slot = slot
	return nil
}

func (s *Selection) Reset() {
	s.date = ""
	s.slot = ""
}
