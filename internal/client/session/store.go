// Package session holds the signed-in identity of the client and persists it
// to a local JSON file so that a restart resumes the same session.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/atinyakov/ClassFeed/internal/models"
)

// DefaultFile is the session file used when none is configured.
const DefaultFile = "session.json"

// Store is the client's session store.
type Store struct {
	path string

	mu    sync.Mutex
	state models.Session
}

// NewStore returns an empty store persisted at path.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultFile
	}
	return &Store{path: path, state: models.Session{Role: models.RoleNone}}
}

// Load restores persisted state. A missing file yields an empty session.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.state = models.Session{Role: models.RoleNone}
			return nil
		}
		return err
	}
	defer f.Close()

	var st models.Session
	if err := json.NewDecoder(f).Decode(&st); err != nil {
		return fmt.Errorf("decode session %s: %w", s.path, err)
	}
	if st.Identity == nil {
		st = models.Session{Role: models.RoleNone}
	}
	s.state = st
	return nil
}

// Login records identity and role and persists them.
func (s *Store) Login(identity models.Identity, role models.Role, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := identity
	id.Secret = ""
	s.state = models.Session{Identity: &id, Role: role, Token: token}
	return s.save()
}

// Logout clears the session and its persisted copy.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = models.Session{Role: models.RoleNone}
	return s.save()
}

// Current returns the signed-in identity and role. ok is false when nobody
// is signed in.
func (s *Store) Current() (models.Identity, models.Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Identity == nil {
		return models.Identity{}, models.RoleNone, false
	}
	return *s.state.Identity, s.state.Role, true
}

// Token returns the access token of the current session, if any.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token
}

// save must be called with mu held.
func (s *Store) save() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(&s.state)
}
