package session

import (
	"context"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// Profile is the cached display profile shown without a round trip.
type Profile struct {
	Name string `json:"name"`
}

type Session struct {
	AccessToken  string  `json:"-"`
	RefreshToken string  `json:"-"`
	Role         string  `json:"role,omitempty"`
	UserID       string  `json:"user_id,omitempty"`
	Profile      Profile `json:"profile"`
}

func (s Session) LoggedIn() bool { return s.AccessToken != "" }

func (s Session) IsAdmin() bool { return strings.EqualFold(s.Role, "ADMIN") }

// Load reads the current session. A store with nothing in it yields the zero
// Session and no error.
func Load(ctx context.Context, st Store) (Session, error) {
	var out Session
	fields := []struct {
		key string
		dst *string
	}{
		{KeyToken, &out.AccessToken},
		{KeyRefreshToken, &out.RefreshToken},
		{KeyRole, &out.Role},
		{KeyUserID, &out.UserID},
	}
	for _, f := range fields {
		v, _, err := st.Get(ctx, f.key)
		if err != nil {
			return Session{}, err
		}
		*f.dst = v
	}
	raw, ok, err := st.Get(ctx, KeyUserProfile)
	if err != nil {
		return Session{}, err
	}
	if ok && raw != "" {
		// A corrupt cached profile only loses the display name.
		_ = json.Unmarshal([]byte(raw), &out.Profile)
	}
	return out, nil
}

func save(ctx context.Context, st Store, s Session) error {
	profile, err := json.Marshal(s.Profile)
	if err != nil {
		return err
	}
	pairs := [][2]string{
		{KeyToken, s.AccessToken},
		{KeyRefreshToken, s.RefreshToken},
		{KeyRole, s.Role},
		{KeyUserID, s.UserID},
		{KeyUserProfile, string(profile)},
	}
	for _, p := range pairs {
		if err := st.Set(ctx, p[0], p[1]); err != nil {
			return err
		}
	}
	return nil
}

type Event string

const (
	EventLogin          Event = "login"
	EventLogout         Event = "logout"
	EventTokenRefreshed Event = "token_refreshed"
)

// Broadcaster delivers session events to subscribers synchronously, in
// subscription order. Events carry no payload; listeners re-read the store.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs []subscriber
}

type subscriber struct {
	id int
	fn func(Event)
}

// Subscribe registers fn and returns the function that removes it.
func (b *Broadcaster) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()
	for _, s := range subs {
		s.fn(e)
	}
}

// Manager ties a Store to a Broadcaster so every credential change is
// announced.
type Manager struct {
	Store  Store
	Events *Broadcaster
}

func NewManager(st Store) *Manager {
	return &Manager{Store: st, Events: &Broadcaster{}}
}

func (m *Manager) Current(ctx context.Context) (Session, error) {
	return Load(ctx, m.Store)
}

func (m *Manager) Login(ctx context.Context, s Session) error {
	if err := m.Store.Clear(ctx); err != nil {
		return err
	}
	if err := save(ctx, m.Store, s); err != nil {
		return err
	}
	m.Events.Publish(EventLogin)
	return nil
}

func (m *Manager) Logout(ctx context.Context) error {
	if err := m.Store.Clear(ctx); err != nil {
		return err
	}
	m.Events.Publish(EventLogout)
	return nil
}

// ReplaceAccessToken swaps the access token after a refresh or re-login.
func (m *Manager) ReplaceAccessToken(ctx context.Context, token string) error {
	if err := m.Store.Set(ctx, KeyToken, token); err != nil {
		return err
	}
	m.Events.Publish(EventTokenRefreshed)
	return nil
}

func (m *Manager) SetProfile(ctx context.Context, p Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return m.Store.Set(ctx, KeyUserProfile, string(raw))
}
