package app

import (
	"context"
	"errors"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/gova-training/gova/internal/session"
)

var sessionStoreFactory = openSessionStore

// openSessionStore opens the profile's session in the SQLite file under the
// config dir. The returned func closes it.
func openSessionStore(ctx context.Context, ro *globalOptions) (session.Store, func() error, error) {
	dir := defaultConfigDir()
	if dir == "" {
		return nil, nil, errors.New("cannot locate a config directory for the session store; set HOME or XDG_CONFIG_HOME")
	}
	st, err := session.OpenSQLite(ctx, filepath.Join(dir, "session.db"), ro.Profile)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

func openSession(ctx context.Context, ro *globalOptions) (*session.Manager, func(), error) {
	st, closeFn, err := sessionStoreFactory(ctx, ro)
	if err != nil {
		return nil, nil, err
	}
	m := session.NewManager(st)
	if ro.logger != nil {
		log := ro.logger
		m.Events.Subscribe(func(e session.Event) {
			log.Debug("session changed", zap.String("event", string(e)), zap.String("profile", ro.Profile))
		})
	}
	return m, func() { _ = closeFn() }, nil
}

var errNotLoggedIn = errors.New("not logged in")

// requireSession loads the current session and fails when there is no
// access token.
func requireSession(ctx context.Context, m *session.Manager) (session.Session, error) {
	s, err := m.Current(ctx)
	if err != nil {
		return session.Session{}, err
	}
	if !s.LoggedIn() {
		return session.Session{}, errNotLoggedIn
	}
	return s, nil
}
