package app

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/gova-training/gova/internal/backend"
	"github.com/gova-training/gova/internal/booking"
	"github.com/gova-training/gova/internal/contract"
	"github.com/gova-training/gova/internal/session"
)

var errNothingToUpdate = errors.New("nothing to update")

func newProfileCmd(opts *globalOptions) *cobra.Command {
	profile := &cobra.Command{Use: "profile", Short: "Show or update your profile"}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the signed-in user's profile",
		RunE: func(c *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(c, opts, "profile.show")
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
			user, err := be.Profile(ctx, sess.AccessToken)
			if err != nil {
				return failBackend(p, err)
			}
			var warnings []string
			if user.Name != "" && user.Name != sess.Profile.Name {
				if err := mgr.SetProfile(ctx, session.Profile{Name: user.Name}); err != nil {
					warnings = append(warnings, "could not cache display name: "+err.Error())
				}
			}
			user.Bookings = nil
			return successWithMeta(ctx, p, ro, user, nil, warnings)
		},
	}

	var in backend.ProfileUpdate
	var passwordStdin bool
	update := &cobra.Command{
		Use:   "update",
		Short: "Update name, email, phone or password",
		RunE: func(c *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(c, opts, "profile.update")
			if err != nil {
				return err
			}
			req := in
			if passwordStdin {
				secret, err := readSecret(c.InOrStdin())
				if err != nil {
					return failWithHint(p, contract.ErrInvalidUsage, err, "Pipe the new password on stdin", 2)
				}
				req.Password = secret
			}
			if req == (backend.ProfileUpdate{}) {
				return failWithHint(p, contract.ErrInvalidUsage, errNothingToUpdate, "Pass at least one of --name, --email, --phone, --password", 2)
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			mgr, closeSession, err := openSession(ctx, ro)
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check config directory permissions", 1)
			}
			defer closeSession()
			if _, err := requireSession(ctx, mgr); err != nil {
				return failSession(p, err)
			}

			res := booking.NewProfileUpdater(be, mgr, ro.logger).Update(ctx, req)
			if !res.OK() {
				code, exit := exitForKind(res.Kind)
				_ = p.Error(code, res.Message, kindHints[res.Kind])
				return WrapPrinted(exit, res.Err)
			}
			var warnings []string
			if res.Warning != "" {
				warnings = append(warnings, res.Warning)
			}
			if res.User != nil {
				res.User.Bookings = nil
			}
			return successWithMeta(ctx, p, ro, res, map[string]any{
				"outcome":         res.Outcome,
				"reauthenticated": res.Reauthenticated,
			}, warnings)
		},
	}
	update.Flags().StringVar(&in.Name, "name", "", "New full name")
	update.Flags().StringVar(&in.Email, "email", "", "New email")
	update.Flags().StringVar(&in.PhoneNumber, "phone", "", "New phone number")
	update.Flags().StringVar(&in.Password, "password", "", "New password")
	update.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the new password from stdin")

	profile.AddCommand(show, update)
	return profile
}
