package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gova-training/gova/internal/availability"
	"github.com/gova-training/gova/internal/contract"
	"github.com/gova-training/gova/internal/output"
)

func newBookingsCmd(opts *globalOptions) *cobra.Command {
	bookings := &cobra.Command{Use: "bookings", Short: "Your appointments"}

	var upcoming bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List your appointments",
		RunE: func(c *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(c, opts, "bookings.list")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			mgr, closeSession, err := openSession(ctx, ro)
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check config directory permissions", 1)
			}
			defer closeSession()
			sess, err := requireSession(ctx, mgr)
			if err != nil {
				return failSession(p, err)
			}
			if sess.UserID == "" {
				return failWithHint(p, contract.ErrUnauthorized, errors.New("session has no user id"), "Run `gova login` again", 3)
			}
			items, err := be.UserBookings(ctx, sess.AccessToken, sess.UserID)
			if err != nil {
				return failBackend(p, err)
			}
			sortAppointments(items)
			if upcoming {
				items = upcomingOnly(items, availability.NormalizeDate(time.Now().In(resolveLocation(ro.TZ))))
			}
			if p.EffectiveSuccessMode() == output.ModePlain && len(p.Fields) == 0 {
				return printAppointmentsPlain(c.OutOrStdout(), items, ro.Labels)
			}
			return successWithMeta(ctx, p, ro, items, map[string]any{"count": len(items)}, nil)
		},
	}
	list.Flags().BoolVar(&upcoming, "upcoming", false, "Only today and later")

	show := &cobra.Command{
		Use:   "show <confirmation-code>",
		Short: "Look up an appointment by confirmation code",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			p, be, ro, err := buildContext(c, opts, "bookings.show")
			if err != nil {
				return err
			}
			code := strings.TrimSpace(args[0])
			if code == "" {
				return failWithHint(p, contract.ErrInvalidUsage, errors.New("confirmation code is required"), "Example: gova bookings show ABC123", 2)
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			token := ""
			if mgr, closeSession, err := openSession(ctx, ro); err == nil {
				if s, err := mgr.Current(ctx); err == nil {
					token = s.AccessToken
				}
				closeSession()
			}
			item, err := be.AppointmentByCode(ctx, token, code)
			if err != nil {
				return failBackend(p, err)
			}
			return successWithMeta(ctx, p, ro, item, map[string]any{"count": 1}, nil)
		},
	}

	var outPath string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export your appointments to ICS",
		RunE: func(c *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(c, opts, "bookings.export")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			mgr, closeSession, err := openSession(ctx, ro)
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check config directory permissions", 1)
			}
			defer closeSession()
			sess, err := requireSession(ctx, mgr)
			if err != nil {
				return failSession(p, err)
			}
			items, err := be.UserBookings(ctx, sess.AccessToken, sess.UserID)
			if err != nil {
				return failBackend(p, err)
			}
			sortAppointments(items)
			ics, warnings := buildICS(items, resolveLocation(ro.TZ), time.Now())
			meta := map[string]any{"count": len(items) - len(warnings)}
			if strings.TrimSpace(outPath) != "" {
				if err := os.WriteFile(outPath, []byte(ics), 0o644); err != nil {
					return failWithHint(p, contract.ErrGeneric, err, "Check destination path permissions", 1)
				}
				return successWithMeta(ctx, p, ro, map[string]any{"path": outPath, "appointments": len(items) - len(warnings)}, meta, warnings)
			}
			if m := p.EffectiveSuccessMode(); m == output.ModeJSON || m == output.ModeJSONL {
				return successWithMeta(ctx, p, ro, map[string]any{"ics": ics, "appointments": len(items) - len(warnings)}, meta, warnings)
			}
			_, _ = fmt.Fprint(c.OutOrStdout(), ics)
			for _, w := range warnings {
				_, _ = fmt.Fprintf(c.ErrOrStderr(), "warning: %s\n", w)
			}
			return nil
		},
	}
	export.Flags().StringVar(&outPath, "out", "", "Output file path (default stdout)")

	bookings.AddCommand(list, show, export)
	return bookings
}

func sortAppointments(items []contract.Appointment) {
	order := map[string]int{string(availability.Morning): 0, string(availability.Evening): 1}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date < items[j].Date
		}
		return order[strings.ToLower(items[i].TimeSlot)] < order[strings.ToLower(items[j].TimeSlot)]
	})
}

func upcomingOnly(items []contract.Appointment, today availability.DateKey) []contract.Appointment {
	out := make([]contract.Appointment, 0, len(items))
	for _, a := range items {
		key, err := availability.ParseDateKey(a.Date)
		if err != nil || key >= today {
			out = append(out, a)
		}
	}
	return out
}

func printAppointmentsPlain(out io.Writer, items []contract.Appointment, lang string) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(out, "no results")
		return err
	}
	for _, a := range items {
		slot := a.TimeSlot
		if k, err := availability.ParseSlot(a.TimeSlot); err == nil {
			slot = k.Label(lang)
		}
		if _, err := fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n", a.Date, slot, firstNonEmpty(a.ConfirmationCode, "-"), a.FullName, a.UserEmail); err != nil {
			return err
		}
	}
	return nil
}
