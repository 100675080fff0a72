// Package session is the process-wide source of truth for "who is the
// current user". It persists the identity record across restarts, keeps
// the API client's bearer token in sync, and caches the admin-only user
// roster.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/me/mfalite/pkg/api"
	"github.com/me/mfalite/pkg/model"
)

// Store holds the current identity record and derived state. It is safe
// for concurrent use. Construct one with Open and pass it to whoever
// needs it; there is no package-level instance.
type Store struct {
	client *api.Client
	logger *slog.Logger
	path   string

	mu       sync.Mutex
	identity *model.User
	roster   []model.User
	version  *model.Version
	// rosterGen invalidates in-flight roster fetches when the identity
	// changes under them. See RefreshRoster.
	rosterGen uint64

	nextSub int
	subs    map[int]func(*model.User)
}

// Open creates a Store bound to the given API client, rehydrating a
// previously persisted identity record from path if one exists. A
// rehydrated token is propagated to the client immediately; the roster
// is not refetched until SetIdentity or RefreshRoster runs.
func Open(client *api.Client, logger *slog.Logger, path string) (*Store, error) {
	s := &Store{
		client: client,
		logger: logger.With("component", "session"),
		path:   path,
		subs:   make(map[int]func(*model.User)),
	}

	identity, err := loadIdentity(path)
	if err != nil {
		return nil, fmt.Errorf("load persisted identity: %w", err)
	}
	if identity != nil {
		s.identity = identity
		client.SetToken(identity.Token)
		s.logger.Debug("resumed session", "user", identity.ID)
	}
	return s, nil
}

// Identity returns the current identity record, nil when unauthenticated.
func (s *Store) Identity() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	u := *s.identity
	return &u
}

// IsAdmin reports whether the current identity holds the Admin role. It
// is recomputed from the record on every call.
func (s *Store) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity != nil && s.identity.IsAdmin()
}

// SetIdentity replaces the current identity record. A non-nil record is
// persisted and its token propagated to the API client; admins get an
// asynchronous roster refresh. Nil (logout or forced sign-out) removes
// the persisted record, clears the client token, and empties the roster.
// Persistence runs first: on failure the store is left untouched, memory
// and disk stay in agreement, and no subscriber fires. Subscribers are
// notified after the transition settles.
func (s *Store) SetIdentity(u *model.User) error {
	if u != nil {
		if err := saveIdentity(s.path, u); err != nil {
			return err
		}
	} else {
		if err := removeIdentity(s.path); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.rosterGen++
	gen := s.rosterGen
	s.identity = u
	s.roster = nil
	if u != nil {
		s.client.SetToken(u.Token)
	} else {
		s.client.ClearToken()
	}
	admin := u != nil && u.IsAdmin()
	subs := s.snapshotSubs()
	s.mu.Unlock()

	if admin {
		go func() {
			if err := s.refreshRoster(context.Background(), gen); err != nil {
				s.logger.Warn("roster refresh failed", "error", err)
			}
		}()
	}

	for _, fn := range subs {
		fn(u)
	}
	return nil
}

// RefreshRoster fetches the user roster now, synchronously. Callers that
// need a guaranteed-fresh record after a mutation use this instead of
// waiting on the login-triggered fetch.
func (s *Store) RefreshRoster(ctx context.Context) error {
	s.mu.Lock()
	gen := s.rosterGen
	s.mu.Unlock()
	return s.refreshRoster(ctx, gen)
}

// refreshRoster loads /users and installs the result unless the identity
// changed while the fetch was in flight.
func (s *Store) refreshRoster(ctx context.Context, gen uint64) error {
	result, err := s.client.Get(ctx, "/users")
	if err != nil {
		return fmt.Errorf("fetch users: %w", err)
	}
	var users []model.User
	if !result.NoContent {
		if err := result.Decode(&users); err != nil {
			return fmt.Errorf("decode users: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.rosterGen {
		s.logger.Debug("discarding stale roster fetch", "gen", gen)
		return nil
	}
	s.roster = users
	s.logger.Debug("roster refreshed", "count", len(users))
	return nil
}

// Users returns the cached roster. Empty unless the current identity is
// an administrator and a fetch has completed.
func (s *Store) Users() []model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, len(s.roster))
	copy(out, s.roster)
	return out
}

// UserByID looks up a user in the cached roster. It never triggers a
// network fetch; a miss just reports false.
func (s *Store) UserByID(id string) (*model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.roster {
		if s.roster[i].ID == id {
			u := s.roster[i]
			return &u, true
		}
	}
	return nil, false
}

// MutateRoster applies a local edit to the cached roster (add, update,
// or remove of a single record) without refetching. The roster is a
// per-session cache, not an authoritative copy.
func (s *Store) MutateRoster(fn func([]model.User) []model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster = fn(s.roster)
}

// LoadVersion fetches backend build metadata once, best-effort. Failures
// leave the version absent.
func (s *Store) LoadVersion(ctx context.Context) {
	result := s.client.GetRaw(ctx, "/version")
	if result == nil || result.NoContent {
		return
	}
	var v model.Version
	if err := result.Decode(&v); err != nil {
		s.logger.Warn("decode version", "error", err)
		return
	}
	s.mu.Lock()
	s.version = &v
	s.mu.Unlock()
}

// Version returns the backend build metadata, nil if never fetched.
func (s *Store) Version() *model.Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Subscribe registers a callback invoked on every identity transition
// (login, logout, profile edit). The returned cancel func removes it.
func (s *Store) Subscribe(fn func(*model.User)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// snapshotSubs copies the subscriber list; callbacks run unlocked.
func (s *Store) snapshotSubs() []func(*model.User) {
	out := make([]func(*model.User), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
