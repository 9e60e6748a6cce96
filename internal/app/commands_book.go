package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gova-training/gova/internal/availability"
	"github.com/gova-training/gova/internal/booking"
	"github.com/gova-training/gova/internal/contract"
	"github.com/gova-training/gova/internal/output"
)

func newBookCmd(opts *globalOptions) *cobra.Command {
	var dateS, slotS, appointmentID string
	var contact booking.Contact
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "book [phrase]",
		Short: "Book a morning or evening slot",
		Long: "Book a slot with --date and --slot, or with a short phrase such as \"tomorrow evening\".\n" +
			"Contact details default to the signed-in profile when --name, --email and --phone are all omitted.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			p, be, ro, err := buildContext(c, opts, "book")
			if err != nil {
				return err
			}
			loc := resolveLocation(ro.TZ)
			now := time.Now()

			var date availability.DateKey
			var slot availability.SlotKey
			if len(args) == 1 {
				if flagValueChanged(c, "date") || flagValueChanged(c, "slot") {
					return failWithHint(p, contract.ErrInvalidUsage, errors.New("use either a phrase or --date/--slot, not both"), `Example: gova book "tomorrow evening"`, 2)
				}
				date, slot, err = parseBookingPhrase(args[0], now, loc)
				if err != nil {
					return failWithHint(p, contract.ErrInvalidUsage, err, `Example: gova book "next sunday morning"`, 2)
				}
			} else {
				if strings.TrimSpace(dateS) == "" {
					return failWithHint(p, contract.ErrInvalidUsage, errors.New("--date is required"), "Pass --date and --slot, or a phrase", 2)
				}
				day, err := parseDay(dateS, now, loc)
				if err != nil {
					return failWithHint(p, contract.ErrInvalidUsage, fmt.Errorf("invalid --date: %w", err), "Use YYYY-MM-DD, DD/MM/YYYY, tomorrow, +Nd or a weekday", 2)
				}
				date = availability.NormalizeDate(day)
				slot, err = availability.ParseSlot(slotS)
				if err != nil {
					return failWithHint(p, contract.ErrInvalidUsage, err, "Use --slot morning or --slot evening", 2)
				}
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

			profileBound := strings.TrimSpace(contact.FullName) == "" &&
				strings.TrimSpace(contact.Email) == "" &&
				strings.TrimSpace(contact.PhoneNumber) == ""
			form := booking.NewForm(be, booking.FormOptions{
				Token:        sess.AccessToken,
				UserID:       sess.UserID,
				ProfileBound: profileBound,
				Contact:      contact,
				Location:     loc,
				Logger:       ro.logger,
			})
			if profileBound {
				user, err := be.Profile(ctx, sess.AccessToken)
				if err != nil {
					return failBackend(p, err)
				}
				form.SetContact(booking.Contact{FullName: user.Name, Email: user.Email, PhoneNumber: user.PhoneNumber})
			}
			if err := form.Load(ctx); err != nil {
				return failBackend(p, err)
			}
			if _, err := form.SelectDate(date); err != nil {
				return failSelection(p, err, date)
			}
			if err := form.SelectSlot(slot); err != nil {
				return failSelection(p, err, date)
			}
			form.SetAppointmentID(appointmentID)

			if dryRun {
				req, err := form.Request()
				if err != nil {
					return failWithHint(p, contract.ErrInvalidUsage, err, "Fill in the missing fields", 2)
				}
				return successWithMeta(ctx, p, ro, req, map[string]any{
					"dry_run":       true,
					"user_id":       req.UserID,
					"profile_bound": profileBound,
				}, nil)
			}

			res := form.Submit(ctx)
			if !res.OK() {
				code, exit := exitForKind(res.Kind)
				_ = p.Error(code, res.Message, kindHints[res.Kind])
				return WrapPrinted(exit, res.Err)
			}

			conf := contract.Confirmation{
				Code:    res.ConfirmationCode,
				Message: res.Message,
				Date:    res.Request.Date,
				Slot:    res.Request.TimeSlot,
				UserID:  res.Request.UserID,
			}
			var warnings []string
			if res.Warning != "" {
				warnings = append(warnings, res.Warning)
			}
			if err := appendHistory(historyEntry{
				Type:    "booking",
				Profile: ro.Profile,
				Code:    conf.Code,
				Date:    conf.Date,
				Slot:    conf.Slot,
				UserID:  conf.UserID,
				Message: conf.Message,
			}); err != nil {
				ro.logger.Warn("could not record confirmation in history", zap.Error(err))
				warnings = append(warnings, "booking confirmed but not recorded in local history: "+err.Error())
			}
			if p.EffectiveSuccessMode() == output.ModePlain {
				if !ro.Quiet {
					_, _ = fmt.Fprintf(c.OutOrStdout(), "booked %s %s\tconfirmation %s\n", conf.Date, availability.SlotKey(conf.Slot).Label(ro.Labels), firstNonEmpty(conf.Code, "-"))
				}
				for _, w := range warnings {
					_, _ = fmt.Fprintf(c.ErrOrStderr(), "warning: %s\n", w)
				}
				return nil
			}
			return successWithMeta(ctx, p, ro, conf, map[string]any{"count": 1}, warnings)
		},
	}
	cmd.Flags().StringVar(&dateS, "date", "", "Date to book")
	cmd.Flags().StringVar(&slotS, "slot", "", "Slot: morning|evening")
	cmd.Flags().StringVar(&contact.FullName, "name", "", "Full name for the booking")
	cmd.Flags().StringVar(&contact.Email, "email", "", "Contact email")
	cmd.Flags().StringVar(&contact.PhoneNumber, "phone", "", "Contact phone number")
	cmd.Flags().StringVar(&appointmentID, "appointment-id", "", "Existing appointment to rebook")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Validate and show the request without booking")
	return cmd
}

func failSelection(p output.Printer, err error, date availability.DateKey) error {
	var ve *booking.ValidationError
	switch {
	case errors.Is(err, availability.ErrDateFullyBooked), errors.Is(err, availability.ErrSlotUnavailable):
		return failWithHint(p, contract.ErrConflict, err, fmt.Sprintf("Run `gova slots --date %s` or `gova calendar` to pick a free slot", date), 5)
	case errors.Is(err, booking.ErrPastDate), errors.Is(err, availability.ErrNoDateSelected), errors.As(err, &ve):
		return failWithHint(p, contract.ErrInvalidUsage, err, "Pick today or a later date", 2)
	default:
		return failWithHint(p, contract.ErrGeneric, err, "", 1)
	}
}
