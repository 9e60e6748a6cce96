package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gova-training/gova/internal/availability"
	"github.com/gova-training/gova/internal/backend"
	"github.com/gova-training/gova/internal/contract"
	"github.com/gova-training/gova/internal/output"
)

type slotsResult struct {
	Date        availability.DateKey `json:"date"`
	Available   availability.SlotSet `json:"available"`
	Booked      availability.SlotSet `json:"booked"`
	FullyBooked bool                 `json:"fully_booked"`
	Past        bool                 `json:"past"`
}

func newSlotsCmd(opts *globalOptions) *cobra.Command {
	var dateS string
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Show the slots still available on a date",
		RunE: func(c *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(c, opts, "slots")
			if err != nil {
				return err
			}
			loc := resolveLocation(ro.TZ)
			now := time.Now()
			day, err := parseDay(dateS, now, loc)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, fmt.Errorf("invalid --date: %w", err), "Use YYYY-MM-DD, DD/MM/YYYY, today, tomorrow, +Nd or a weekday", 2)
			}
			key := availability.NormalizeDate(day)
			ctx, cancel := commandContext(ro)
			defer cancel()
			snapshot, err := loadSnapshot(ctx, be, ro)
			if err != nil {
				return failBackend(p, err)
			}
			res := slotsResult{
				Date:        key,
				Available:   availability.AvailableSlots(snapshot, key),
				Booked:      snapshot[key].Recognized(),
				FullyBooked: availability.IsDateFullyBooked(snapshot, key),
				Past:        key < availability.NormalizeDate(now.In(loc)),
			}
			if res.Past {
				res.Available = availability.NewSlotSet()
			}
			if p.EffectiveSuccessMode() == output.ModePlain {
				return printSlotsPlain(c.OutOrStdout(), res, ro.Labels)
			}
			return successWithMeta(ctx, p, ro, res, map[string]any{"count": res.Available.Len()}, nil)
		},
	}
	cmd.Flags().StringVar(&dateS, "date", "today", "Date to check")
	return cmd
}

func newCalendarCmd(opts *globalOptions) *cobra.Command {
	var fromS, toS string
	var all bool
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show availability for a range of dates",
		RunE: func(c *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(c, opts, "calendar")
			if err != nil {
				return err
			}
			loc := resolveLocation(ro.TZ)
			now := time.Now()
			from, err := parseDay(fromS, now, loc)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, fmt.Errorf("invalid --from: %w", err), "Use YYYY-MM-DD, today, +Nd or a weekday", 2)
			}
			to, err := parseDay(toS, now, loc)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, fmt.Errorf("invalid --to: %w", err), "Use YYYY-MM-DD, today, +Nd or a weekday", 2)
			}
			if to.Before(from) {
				return failWithHint(p, contract.ErrInvalidUsage, fmt.Errorf("--to must not be earlier than --from"), "Swap --from and --to", 2)
			}
			closed, err := parseClosedDays(ro.ClosedDays)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use weekday names like fri,sat", 2)
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			snapshot, err := loadSnapshot(ctx, be, ro)
			if err != nil {
				return failBackend(p, err)
			}
			rows, err := availability.Calendar(snapshot, from, to, availability.CalendarOptions{
				Closed:    closed,
				NotBefore: now,
				Location:  loc,
			})
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Narrow the date range", 2)
			}
			if !all {
				rows = selectableOnly(rows)
			}
			meta := map[string]any{
				"count": len(rows),
				"from":  availability.NormalizeDate(from),
				"to":    availability.NormalizeDate(to),
			}
			if p.EffectiveSuccessMode() == output.ModePlain {
				return printCalendarPlain(c.OutOrStdout(), rows, ro.Labels)
			}
			return successWithMeta(ctx, p, ro, rows, meta, nil)
		},
	}
	cmd.Flags().StringVar(&fromS, "from", "today", "Range start")
	cmd.Flags().StringVar(&toS, "to", "+14d", "Range end")
	cmd.Flags().StringVar(&opts.ClosedDays, "closed", "", "Weekdays with no bookings, comma-separated (e.g. fri,sat)")
	cmd.Flags().BoolVar(&all, "all", false, "Include past and fully booked dates")
	return cmd
}

// loadSnapshot fetches the booked-slots snapshot with the stored access
// token, if there is one.
func loadSnapshot(ctx context.Context, be backend.Backend, ro *globalOptions) (availability.BookedSlotsMap, error) {
	token := ""
	if mgr, closeSession, err := openSession(ctx, ro); err == nil {
		if s, err := mgr.Current(ctx); err == nil {
			token = s.AccessToken
		}
		closeSession()
	}
	return be.BookedSlots(ctx, token)
}

func selectableOnly(rows []availability.DayStatus) []availability.DayStatus {
	out := make([]availability.DayStatus, 0, len(rows))
	for _, r := range rows {
		if r.Selectable {
			out = append(out, r)
		}
	}
	return out
}

func slotLabels(s availability.SlotSet, lang string) string {
	keys := s.Slice()
	if len(keys) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k.Label(lang))
	}
	return strings.Join(parts, ",")
}

func printSlotsPlain(out io.Writer, res slotsResult, lang string) error {
	status := "open"
	switch {
	case res.Past:
		status = "past"
	case res.FullyBooked:
		status = "fully_booked"
	}
	_, err := fmt.Fprintf(out, "%s\t%s\t%s\n", res.Date, status, slotLabels(res.Available, lang))
	return err
}

func printCalendarPlain(out io.Writer, rows []availability.DayStatus, lang string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(out, "no results")
		return err
	}
	for _, r := range rows {
		status := r.Reason
		if status == "" {
			status = "open"
		}
		if _, err := fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", r.Date, r.Weekday[:3], status, slotLabels(r.Available, lang)); err != nil {
			return err
		}
	}
	return nil
}
