// Package session keeps track of who is logged in to the panel. A Store holds
// one browser's credential, role and username, and writes every change through
// to a Persister so that a reload sees the same session.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/web/access"

	"github.com/golang-jwt/jwt/v5"
)

// InvalidSessionError is returned by Establish for input that can never form
// a session. It indicates a programming error, not a user mistake.
type InvalidSessionError struct {
	Field  string
	Reason string
}

func (e *InvalidSessionError) Error() string {
	return fmt.Sprintf("invalid session: %s %s", e.Field, e.Reason)
}

// Snapshot is an immutable copy of the session. The zero value is the
// unauthenticated session.
type Snapshot struct {
	Token         string
	Role          access.Role
	Username      string
	Generation    uint64
	EstablishedAt time.Time
	// ExpiresAt is the token's exp claim when it could be read. It is shown to
	// the user but never acted upon; the API decides when a token is dead.
	ExpiresAt time.Time
}

func (s Snapshot) Authenticated() bool {
	return s.Token != ""
}

// Caller returns the identity for access decisions. It is the zero Caller,
// which holds no permission, when unauthenticated.
func (s Snapshot) Caller() access.Caller {
	if !s.Authenticated() {
		return access.Caller{}
	}
	return access.Caller{Username: s.Username, Role: s.Role}
}

func (s Snapshot) record() Record {
	r := Record{
		Token:      s.Token,
		Role:       string(s.Role),
		Username:   s.Username,
		Generation: s.Generation,
	}
	if !s.EstablishedAt.IsZero() {
		r.EstablishedAt = s.EstablishedAt.Unix()
	}
	if !s.ExpiresAt.IsZero() {
		r.ExpiresAt = s.ExpiresAt.Unix()
	}
	return r
}

// snapshotOf validates a persisted record. Token, role and username must all
// be present and the role must be known; anything else is unauthenticated.
func snapshotOf(r Record) (Snapshot, bool) {
	role, ok := access.ParseRole(r.Role)
	if r.Token == "" || strings.TrimSpace(r.Username) == "" || !ok {
		return Snapshot{}, false
	}
	s := Snapshot{Token: r.Token, Role: role, Username: r.Username, Generation: r.Generation}
	if r.EstablishedAt > 0 {
		s.EstablishedAt = time.Unix(r.EstablishedAt, 0)
	}
	if r.ExpiresAt > 0 {
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	}
	return s, true
}

// Store is the single source of truth for the authentication state of one
// browser. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	persister Persister
	gens      *Generations
	current   Snapshot
}

// NewStore restores the persisted session, if any. A record that does not
// form a complete session is erased and the store starts unauthenticated.
func NewStore(p Persister, gens *Generations) *Store {
	if gens == nil {
		gens = defaultGenerations
	}
	s := &Store{persister: p, gens: gens}
	rec, err := p.Load()
	if err != nil {
		logger.Warning("session load failed: ", err)
		return s
	}
	if snap, ok := snapshotOf(rec); ok {
		s.current = snap
	} else if !rec.IsZero() {
		logger.Debug("dropping inconsistent session record")
		if err := p.Erase(); err != nil {
			logger.Warning("session erase failed: ", err)
		}
	}
	return s
}

// Establish replaces the session with a new one. Nothing changes unless the
// new session has been persisted.
func (s *Store) Establish(token, role, username string) (Snapshot, error) {
	if token == "" {
		return Snapshot{}, &InvalidSessionError{Field: "token", Reason: "is empty"}
	}
	if strings.TrimSpace(username) == "" {
		return Snapshot{}, &InvalidSessionError{Field: "username", Reason: "is empty"}
	}
	r, ok := access.ParseRole(role)
	if !ok {
		return Snapshot{}, &InvalidSessionError{Field: "role", Reason: fmt.Sprintf("%q is not recognised", role)}
	}

	snap := Snapshot{
		Token:         token,
		Role:          r,
		Username:      username,
		Generation:    s.gens.Next(),
		EstablishedAt: time.Now().Truncate(time.Second),
		ExpiresAt:     tokenExpiry(token),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persister.Save(snap.record()); err != nil {
		return Snapshot{}, err
	}
	s.current = snap
	return snap, nil
}

// Current returns the full session or the zero Snapshot.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) IsAuthenticated() bool {
	return s.Current().Authenticated()
}

// Clear logs out. Calling it on an empty store is harmless. The in-memory
// session is dropped even when erasing the persisted copy fails.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Snapshot{}
	return s.persister.Erase()
}

// Expire clears the session only if it still carries the given generation,
// so a rejection observed for an older login cannot end a newer one. When the
// persister supports it the stored record is checked too, and a login saved
// by another request meanwhile is kept and picked up. Expire reports whether
// a session was cleared; only that call records the "session expired" notice.
func (s *Store) Expire(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current.Authenticated() || s.current.Generation != generation {
		return false
	}

	if ge, ok := s.persister.(GenerationEraser); ok {
		erased, err := ge.EraseGeneration(generation)
		if err != nil {
			logger.Warning("session erase failed: ", err)
		} else if !erased {
			s.reload()
			return false
		}
	} else if err := s.persister.Erase(); err != nil {
		logger.Warning("session erase failed: ", err)
	}

	s.current = Snapshot{}
	if n, ok := s.persister.(Noticer); ok {
		n.AddNotice(NoticeSessionExpired)
	}
	return true
}

// reload replaces the in-memory session with the persisted one. Callers hold
// the lock.
func (s *Store) reload() {
	s.current = Snapshot{}
	rec, err := s.persister.Load()
	if err != nil {
		logger.Warning("session load failed: ", err)
		return
	}
	if snap, ok := snapshotOf(rec); ok {
		s.current = snap
	}
}

// tokenExpiry peeks at the exp claim of a JWT without verifying it. Opaque
// tokens yield the zero time.
func tokenExpiry(token string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
