package app

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gova-training/gova/internal/backend"
	"github.com/gova-training/gova/internal/booking"
	"github.com/gova-training/gova/internal/contract"
	"github.com/gova-training/gova/internal/output"
	"github.com/gova-training/gova/internal/session"
)

type loginResult struct {
	Email     string     `json:"email"`
	UserID    string     `json:"user_id,omitempty"`
	Name      string     `json:"name,omitempty"`
	Role      string     `json:"role,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Message   string     `json:"message,omitempty"`
}

type whoamiResult struct {
	UserID    string     `json:"user_id,omitempty"`
	Name      string     `json:"name,omitempty"`
	Role      string     `json:"role,omitempty"`
	Admin     bool       `json:"admin"`
	Subject   string     `json:"subject,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Expired   bool       `json:"expired"`
	Profile   string     `json:"profile"`
}

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var email, password string
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(c *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(c, opts, "login")
			if err != nil {
				return err
			}
			secret, err := resolvePassword(c, ro, password, passwordStdin)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Pass --password, --password-stdin, or run interactively", 2)
			}
			creds := backend.Credentials{Email: strings.TrimSpace(email), Password: secret}
			if err := booking.ValidateStruct(creds); err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Example: gova login --email you@example.com --password-stdin", 2)
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			mgr, closeSession, err := openSession(ctx, ro)
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check config directory permissions", 1)
			}
			defer closeSession()

			res, err := be.Login(ctx, creds)
			if err != nil {
				return failBackend(p, err)
			}
			sess := session.Session{AccessToken: res.Token, RefreshToken: res.RefreshToken, Role: res.Role}
			var warnings []string
			user, err := be.Profile(ctx, res.Token)
			if err != nil {
				warnings = append(warnings, "signed in but the profile could not be loaded: "+backend.MessageOf(err, err.Error()))
			} else {
				sess.UserID = user.ID
				sess.Profile = session.Profile{Name: user.Name}
				if sess.Role == "" {
					sess.Role = user.Role
				}
			}
			if err := mgr.Login(ctx, sess); err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check config directory permissions", 1)
			}
			out := loginResult{
				Email:   creds.Email,
				UserID:  sess.UserID,
				Name:    sess.Profile.Name,
				Role:    sess.Role,
				Message: res.Message,
			}
			if info, err := session.InspectToken(res.Token); err == nil && !info.ExpiresAt.IsZero() {
				exp := info.ExpiresAt
				out.ExpiresAt = &exp
			}
			if p.EffectiveSuccessMode() == output.ModePlain {
				if !ro.Quiet {
					_, _ = fmt.Fprintf(c.OutOrStdout(), "logged in as %s\n", firstNonEmpty(out.Name, out.Email))
				}
				for _, w := range warnings {
					_, _ = fmt.Fprintf(c.ErrOrStderr(), "warning: %s\n", w)
				}
				return nil
			}
			return successWithMeta(ctx, p, ro, out, map[string]any{"profile": ro.Profile}, warnings)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func newRegisterCmd(opts *globalOptions) *cobra.Command {
	var in backend.RegisterInput
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(c *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(c, opts, "register")
			if err != nil {
				return err
			}
			secret, err := resolvePassword(c, ro, in.Password, passwordStdin)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Pass --password, --password-stdin, or run interactively", 2)
			}
			req := backend.RegisterInput{
				Name:        strings.TrimSpace(in.Name),
				Email:       strings.TrimSpace(in.Email),
				PhoneNumber: strings.TrimSpace(in.PhoneNumber),
				Password:    secret,
			}
			if err := booking.ValidateStruct(req); err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Name, email, phone and a password of at least 6 characters are required", 2)
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			user, err := be.Register(ctx, req)
			if err != nil {
				return failBackend(p, err)
			}
			return successWithMeta(ctx, p, ro, user, map[string]any{"next": "gova login --email " + req.Email}, nil)
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email")
	cmd.Flags().StringVar(&in.PhoneNumber, "phone", "", "Phone number")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(c *cobra.Command, _ []string) error {
			p, _, ro, err := buildContext(c, opts, "logout")
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
			prev, err := mgr.Current(ctx)
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check config directory permissions", 1)
			}
			if err := mgr.Logout(ctx); err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check config directory permissions", 1)
			}
			return successWithMeta(ctx, p, ro, map[string]any{
				"logged_out":    true,
				"was_logged_in": prev.LoggedIn(),
			}, map[string]any{"profile": ro.Profile}, nil)
		},
	}
}

func newWhoamiCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and access token expiry",
		RunE: func(c *cobra.Command, _ []string) error {
			p, _, ro, err := buildContext(c, opts, "whoami")
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
			res := whoamiResult{
				UserID:  sess.UserID,
				Name:    sess.Profile.Name,
				Role:    sess.Role,
				Admin:   sess.IsAdmin(),
				Profile: ro.Profile,
			}
			var warnings []string
			info, err := session.InspectToken(sess.AccessToken)
			if err != nil {
				warnings = append(warnings, err.Error())
			} else {
				res.Subject = info.Subject
				res.Expired = info.Expired(time.Now())
				if !info.ExpiresAt.IsZero() {
					exp := info.ExpiresAt
					res.ExpiresAt = &exp
				}
			}
			if res.Expired {
				warnings = append(warnings, "access token has expired; run `gova token refresh` or `gova login`")
			}
			if p.EffectiveSuccessMode() == output.ModePlain {
				return printWhoamiPlain(c.OutOrStdout(), res, warnings)
			}
			return successWithMeta(ctx, p, ro, res, nil, warnings)
		},
	}
}

func newTokenCmd(opts *globalOptions) *cobra.Command {
	token := &cobra.Command{Use: "token", Short: "Access token maintenance"}
	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token",
		RunE: func(c *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(c, opts, "token.refresh")
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
			if strings.TrimSpace(sess.RefreshToken) == "" {
				return failWithHint(p, contract.ErrUnauthorized, errors.New("no refresh token stored"), "Run `gova login` again", 3)
			}
			fresh, err := be.RefreshToken(ctx, sess.RefreshToken)
			if err != nil {
				return failBackend(p, err)
			}
			if err := mgr.ReplaceAccessToken(ctx, fresh); err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check config directory permissions", 1)
			}
			res := map[string]any{"refreshed": true}
			if info, err := session.InspectToken(fresh); err == nil && !info.ExpiresAt.IsZero() {
				res["expires_at"] = info.ExpiresAt
			}
			return successWithMeta(ctx, p, ro, res, nil, nil)
		},
	}
	token.AddCommand(refresh)
	return token
}

// failSession reports a missing session as unauthorized and anything else
// as a local failure.
func failSession(p output.Printer, err error) error {
	if errors.Is(err, errNotLoggedIn) {
		return failWithHint(p, contract.ErrUnauthorized, err, "Run `gova login` first", 3)
	}
	return failWithHint(p, contract.ErrGeneric, err, "Check config directory permissions", 1)
}

func resolvePassword(c *cobra.Command, ro *globalOptions, flagValue string, fromStdin bool) (string, error) {
	if fromStdin {
		if flagValue != "" {
			return "", errors.New("use either --password or --password-stdin, not both")
		}
		return readSecret(c.InOrStdin())
	}
	if flagValue != "" {
		return flagValue, nil
	}
	if ro.NoInput || !stdinInteractive() {
		return "", errors.New("password is required")
	}
	_, _ = fmt.Fprint(c.ErrOrStderr(), "Password: ")
	return readSecret(c.InOrStdin())
}

func printWhoamiPlain(out io.Writer, res whoamiResult, warnings []string) error {
	name := firstNonEmpty(res.Name, res.Subject, res.UserID)
	_, _ = fmt.Fprintf(out, "%s role=%s user_id=%s profile=%s\n", name, res.Role, res.UserID, res.Profile)
	if res.ExpiresAt != nil {
		_, _ = fmt.Fprintf(out, "token expires %s\n", humanize.Time(*res.ExpiresAt))
	}
	for _, w := range warnings {
		_, _ = fmt.Fprintf(out, "warning: %s\n", w)
	}
	return nil
}
