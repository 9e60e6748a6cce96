package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gova-training/gova/internal/contract"
	"github.com/gova-training/gova/internal/output"
	"github.com/gova-training/gova/internal/session"
)

var errNotAdmin = errors.New("the signed-in user is not an admin")

func newAdminCmd(opts *globalOptions) *cobra.Command {
	admin := &cobra.Command{Use: "admin", Short: "Manage all bookings and users (admin only)"}

	bookings := &cobra.Command{
		Use:   "bookings",
		Short: "List every appointment",
		RunE: func(c *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(c, opts, "admin.bookings")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, closeSession, err := adminSession(ctx, p, ro)
			if err != nil {
				return err
			}
			defer closeSession()
			items, err := be.AllAppointments(ctx, sess.AccessToken)
			if err != nil {
				return failBackend(p, err)
			}
			sortAppointments(items)
			if p.EffectiveSuccessMode() == output.ModePlain && len(p.Fields) == 0 {
				return printAppointmentsPlain(c.OutOrStdout(), items, ro.Labels)
			}
			return successWithMeta(ctx, p, ro, items, map[string]any{"count": len(items)}, nil)
		},
	}

	users := &cobra.Command{
		Use:   "users",
		Short: "List every user, or show and delete one",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(c, opts, "admin.users")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, closeSession, err := adminSession(ctx, p, ro)
			if err != nil {
				return err
			}
			defer closeSession()
			items, err := be.AllUsers(ctx, sess.AccessToken)
			if err != nil {
				return failBackend(p, err)
			}
			if p.EffectiveSuccessMode() == output.ModePlain && len(p.Fields) == 0 {
				p.Fields = []string{"id", "name", "email", "phone_number", "role"}
			}
			return successWithMeta(ctx, p, ro, items, map[string]any{"count": len(items)}, nil)
		},
	}

	var yes bool
	del := &cobra.Command{
		Use:   "delete <appointment-id>",
		Short: "Delete an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			p, be, ro, err := buildContext(c, opts, "admin.delete")
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			if id == "" {
				return failWithHint(p, contract.ErrInvalidUsage, errors.New("appointment id is required"), "Run `gova admin bookings` to find it", 2)
			}
			if err := confirmDelete(c, p, ro, "appointment", id, yes); err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, closeSession, err := adminSession(ctx, p, ro)
			if err != nil {
				return err
			}
			defer closeSession()
			if err := be.DeleteAppointment(ctx, sess.AccessToken, id); err != nil {
				return failBackend(p, err)
			}
			return successWithMeta(ctx, p, ro, map[string]any{"deleted": true, "id": id}, map[string]any{"count": 1}, nil)
		},
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	users.AddCommand(newAdminUserShowCmd(opts), newAdminUserDeleteCmd(opts))
	admin.AddCommand(bookings, users, del)
	return admin
}

func newAdminUserShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			p, be, ro, err := buildContext(c, opts, "admin.users.show")
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			if id == "" {
				return failWithHint(p, contract.ErrInvalidUsage, errors.New("user id is required"), "Run `gova admin users` to find it", 2)
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, closeSession, err := adminSession(ctx, p, ro)
			if err != nil {
				return err
			}
			defer closeSession()
			user, err := be.UserByID(ctx, sess.AccessToken, id)
			if err != nil {
				return failBackend(p, err)
			}
			return successWithMeta(ctx, p, ro, user, nil, nil)
		},
	}
}

func newAdminUserDeleteCmd(opts *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			p, be, ro, err := buildContext(c, opts, "admin.users.delete")
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			if id == "" {
				return failWithHint(p, contract.ErrInvalidUsage, errors.New("user id is required"), "Run `gova admin users` to find it", 2)
			}
			if err := confirmDelete(c, p, ro, "user", id, yes); err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, closeSession, err := adminSession(ctx, p, ro)
			if err != nil {
				return err
			}
			defer closeSession()
			if id == sess.UserID {
				return failWithHint(p, contract.ErrInvalidUsage, errors.New("refusing to delete the signed-in account"), "Sign in with another admin account", 2)
			}
			if err := be.DeleteUser(ctx, sess.AccessToken, id); err != nil {
				return failBackend(p, err)
			}
			return successWithMeta(ctx, p, ro, map[string]any{"deleted": true, "id": id}, map[string]any{"count": 1}, nil)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// confirmDelete asks for the id to be typed back unless yes is set. Without
// a terminal the delete is refused.
func confirmDelete(c *cobra.Command, p output.Printer, ro *globalOptions, what, id string, yes bool) error {
	if yes {
		return nil
	}
	if ro.NoInput || !stdinInteractive() {
		return failWithHint(p, contract.ErrInvalidUsage, errors.New("refusing to delete without confirmation"), "Pass --yes to confirm", 2)
	}
	ok, err := promptConfirmID(c.InOrStdin(), c.ErrOrStderr(), what, id)
	if err != nil || !ok {
		return failWithHint(p, contract.ErrInvalidUsage, fmt.Errorf("delete of %s not confirmed", id), fmt.Sprintf("Type the %s id exactly, or pass --yes", what), 2)
	}
	return nil
}

// adminSession loads the session and refuses non-admin roles before any
// request is made. The server still enforces the role.
func adminSession(ctx context.Context, p output.Printer, ro *globalOptions) (session.Session, func(), error) {
	mgr, closeSession, err := openSession(ctx, ro)
	if err != nil {
		return session.Session{}, nil, failWithHint(p, contract.ErrGeneric, err, "Check config directory permissions", 1)
	}
	sess, err := requireSession(ctx, mgr)
	if err != nil {
		closeSession()
		return session.Session{}, nil, failSession(p, err)
	}
	if !sess.IsAdmin() {
		closeSession()
		return session.Session{}, nil, failWithHint(p, contract.ErrUnauthorized, errNotAdmin, "Log in with an admin account", 3)
	}
	return sess, closeSession, nil
}
