package booking

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/gova-training/gova/internal/backend"
	"github.com/gova-training/gova/internal/contract"
	"github.com/gova-training/gova/internal/session"
)

type Outcome string

const (
	OutcomeUpdated             Outcome = "updated"
	OutcomeRefreshedAndRetried Outcome = "refreshed_and_retried"
	OutcomeRefreshFailed       Outcome = "refresh_failed"
	OutcomeRetryFailed         Outcome = "retry_failed"
	OutcomeFailed              Outcome = "failed"
)

const forbiddenMessage = "failed to update profile: access forbidden, please check your permissions"

type ProfileClient interface {
	UpdateProfile(ctx context.Context, token string, in backend.ProfileUpdate) (*contract.User, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	Login(ctx context.Context, in backend.Credentials) (*backend.LoginResult, error)
}

// Credentials is where the updater reads and replaces tokens.
// *session.Manager implements it.
type Credentials interface {
	Current(ctx context.Context) (session.Session, error)
	ReplaceAccessToken(ctx context.Context, token string) error
	SetProfile(ctx context.Context, p session.Profile) error
}

type ProfileResult struct {
	User            *contract.User `json:"user,omitempty"`
	Outcome         Outcome        `json:"outcome"`
	Kind            backend.Kind   `json:"kind,omitempty"`
	Message         string         `json:"message,omitempty"`
	Reauthenticated bool           `json:"reauthenticated"`
	Warning         string         `json:"warning,omitempty"`
	Err             error          `json:"-"`
}

func (r ProfileResult) OK() bool {
	return r.Outcome == OutcomeUpdated || r.Outcome == OutcomeRefreshedAndRetried
}

// ProfileUpdater updates the signed-in user's profile. An authorization
// failure on the first attempt triggers one token refresh and one retry.
type ProfileUpdater struct {
	client ProfileClient
	creds  Credentials
	log    *zap.Logger
}

func NewProfileUpdater(client ProfileClient, creds Credentials, log *zap.Logger) *ProfileUpdater {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileUpdater{client: client, creds: creds, log: log}
}

func (u *ProfileUpdater) Update(ctx context.Context, in backend.ProfileUpdate) ProfileResult {
	in = backend.ProfileUpdate{
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.TrimSpace(in.Email),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		Password:    in.Password,
	}
	if err := ValidateStruct(in); err != nil {
		return ProfileResult{Outcome: OutcomeFailed, Kind: backend.KindValidation, Message: err.Error(), Err: err}
	}
	sess, err := u.creds.Current(ctx)
	if err != nil {
		return ProfileResult{Outcome: OutcomeFailed, Kind: backend.KindAuthorization, Message: err.Error(), Err: err}
	}

	user, err := u.client.UpdateProfile(ctx, sess.AccessToken, in)
	if err == nil {
		return u.finish(ctx, OutcomeUpdated, user, in)
	}
	if !backend.IsAuthorization(err) {
		return failed(OutcomeFailed, err)
	}

	u.log.Debug("profile update rejected, refreshing access token", zap.Error(err))
	fresh, err := u.client.RefreshToken(ctx, sess.RefreshToken)
	if err != nil {
		res := failed(OutcomeRefreshFailed, err)
		res.Message = forbiddenMessage
		return res
	}
	if err := u.creds.ReplaceAccessToken(ctx, fresh); err != nil {
		u.log.Warn("could not persist refreshed access token", zap.Error(err))
	}

	user, err = u.client.UpdateProfile(ctx, fresh, in)
	if err != nil {
		res := failed(OutcomeRetryFailed, err)
		if backend.IsAuthorization(err) {
			res.Message = forbiddenMessage
		}
		return res
	}
	return u.finish(ctx, OutcomeRefreshedAndRetried, user, in)
}

// finish caches the new display name and, when the password changed, signs
// in again with the new credentials so the stored token matches them.
func (u *ProfileUpdater) finish(ctx context.Context, outcome Outcome, user *contract.User, in backend.ProfileUpdate) ProfileResult {
	res := ProfileResult{User: user, Outcome: outcome, Message: "profile updated"}
	name := in.Name
	if user != nil && user.Name != "" {
		name = user.Name
	}
	if name != "" {
		if err := u.creds.SetProfile(ctx, session.Profile{Name: name}); err != nil {
			u.log.Warn("could not cache display profile", zap.Error(err))
		}
	}
	if in.Password == "" {
		return res
	}
	email := in.Email
	if email == "" && user != nil {
		email = user.Email
	}
	login, err := u.client.Login(ctx, backend.Credentials{Email: email, Password: in.Password})
	if err != nil {
		res.Warning = "profile updated but signing in with the new password failed: " + backend.MessageOf(err, err.Error())
		return res
	}
	if err := u.creds.ReplaceAccessToken(ctx, login.Token); err != nil {
		res.Warning = "profile updated but the new access token could not be saved: " + err.Error()
		return res
	}
	res.Reauthenticated = true
	return res
}

func failed(outcome Outcome, err error) ProfileResult {
	kind := backend.KindOf(err)
	if kind == "" {
		kind = backend.KindServer
	}
	return ProfileResult{
		Outcome: outcome,
		Kind:    kind,
		Message: backend.MessageOf(err, backend.FallbackMessage(kind)),
		Err:     err,
	}
}
