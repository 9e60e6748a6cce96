// Package availability derives which booking slots remain selectable from a
// snapshot of booked dates, and tracks the date/slot selection of a form.
package availability

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const DateLayout = "2006-01-02"

// SlotKey names one of the two daily booking windows.
type SlotKey string

const (
	Morning SlotKey = "morning"
	Evening SlotKey = "evening"
)

// Slots is the fixed recognized universe, in display order.
var Slots = []SlotKey{Morning, Evening}

var hebrewLabels = map[SlotKey]string{
	Morning: "בוקר",
	Evening: "ערב",
}

func (s SlotKey) Known() bool {
	return s == Morning || s == Evening
}

// Label returns the display label for the slot in the given language ("en" or "he").
func (s SlotKey) Label(lang string) string {
	if strings.EqualFold(strings.TrimSpace(lang), "he") {
		if l, ok := hebrewLabels[s]; ok {
			return l
		}
	}
	return string(s)
}

// ParseSlot accepts the English slot names in any case and the Hebrew labels.
func ParseSlot(v string) (SlotKey, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return "", fmt.Errorf("time slot is required")
	}
	for _, k := range Slots {
		if strings.EqualFold(s, string(k)) || s == hebrewLabels[k] {
			return k, nil
		}
	}
	return "", fmt.Errorf("invalid time slot %q: use morning or evening", v)
}

// DateKey is a calendar date in canonical YYYY-MM-DD form.
type DateKey string

// NormalizeDate converts an instant to the DateKey of its local calendar day.
// The zone offset is applied before truncation so late-evening local times do
// not roll over into the next UTC day.
func NormalizeDate(t time.Time) DateKey {
	_, offset := t.Zone()
	shifted := t.UTC().Add(time.Duration(offset) * time.Second)
	return DateKey(shifted.Format(DateLayout))
}

// ParseDateKey validates a YYYY-MM-DD string. A longer ISO timestamp is
// truncated to its date part.
func ParseDateKey(v string) (DateKey, error) {
	s := strings.TrimSpace(v)
	if len(s) > len(DateLayout) && (s[len(DateLayout)] == 'T' || s[len(DateLayout)] == ' ') {
		s = s[:len(DateLayout)]
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: use YYYY-MM-DD", v)
	}
	return DateKey(s), nil
}

func (d DateKey) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, string(d), loc)
}

// SlotSet is a set of slot names. Unrecognized names can be present when the
// backend reports them; callers filter with Recognized before measuring.
type SlotSet map[SlotKey]struct{}

func NewSlotSet(slots ...SlotKey) SlotSet {
	s := make(SlotSet, len(slots))
	for _, k := range slots {
		s[k] = struct{}{}
	}
	return s
}

func (s SlotSet) Has(k SlotKey) bool {
	_, ok := s[k]
	return ok
}

func (s SlotSet) Len() int { return len(s) }

// Recognized returns the subset of s that belongs to the fixed slot universe.
func (s SlotSet) Recognized() SlotSet {
	out := make(SlotSet, len(Slots))
	for _, k := range Slots {
		if s.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

// Slice lists the members with recognized slots first in display order and
// unrecognized names sorted after them.
func (s SlotSet) Slice() []SlotKey {
	out := make([]SlotKey, 0, len(s))
	for _, k := range Slots {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	extra := make([]string, 0)
	for k := range s {
		if !k.Known() {
			extra = append(extra, string(k))
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		out = append(out, SlotKey(k))
	}
	return out
}

func (s SlotSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// BookedSlotsMap is the booked-slots snapshot: for each date, the set of
// slots already taken.
type BookedSlotsMap map[DateKey]SlotSet

// FromWire builds a snapshot from the backend's date -> slot list payload.
// Duplicate entries collapse, slot names are canonicalized, and empty sets are
// dropped.
func FromWire(raw map[string][]string) BookedSlotsMap {
	out := make(BookedSlotsMap, len(raw))
	for k, vals := range raw {
		key, err := ParseDateKey(k)
		if err != nil {
			key = DateKey(strings.TrimSpace(k))
		}
		set := out[key]
		if set == nil {
			set = SlotSet{}
		}
		for _, v := range vals {
			name := strings.ToLower(strings.TrimSpace(v))
			if name == "" {
				continue
			}
			if slot, err := ParseSlot(name); err == nil {
				set[slot] = struct{}{}
				continue
			}
			set[SlotKey(name)] = struct{}{}
		}
		if len(set) > 0 {
			out[key] = set
		}
	}
	return out
}

func (m *BookedSlotsMap) UnmarshalJSON(b []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = FromWire(raw)
	return nil
}

// Dates returns the snapshot's dates in ascending order.
func (m BookedSlotsMap) Dates() []DateKey {
	out := make([]DateKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AvailableSlots returns the recognized slots not yet booked on d. An absent
// date has both slots available.
func AvailableSlots(m BookedSlotsMap, d DateKey) SlotSet {
	booked := m[d]
	out := make(SlotSet, len(Slots))
	for _, k := range Slots {
		if !booked.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

// IsDateFullyBooked reports whether every recognized slot on d is taken.
func IsDateFullyBooked(m BookedSlotsMap, d DateKey) bool {
	return m[d].Recognized().Len() == len(Slots)
}
