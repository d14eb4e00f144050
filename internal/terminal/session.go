package terminal

import (
	"context"
	"errors"
	"sync"

	"github.com/cutroom/floor-service/internal/access"
	"github.com/cutroom/floor-service/internal/models"
)

// Authenticator performs the network side of login and logout
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, models.SessionUser, error)
	Logout(ctx context.Context) error
}

// SessionState is a copy of the session at one instant
type SessionState struct {
	IsLoggedIn bool
	Token      string
	User       *models.SessionUser
}

// Session holds the authenticated identity of the terminal.
// It is the only process-wide mutable state and is persisted in the state file.
type Session struct {
	mu    sync.RWMutex
	token string
	user  *models.SessionUser

	auth  Authenticator
	state *StateFile
	log   *EventLog
}

// NewSession creates an empty session store
func NewSession(auth Authenticator, state *StateFile, events *EventLog) *Session {
	return &Session{auth: auth, state: state, log: events}
}

// Restore loads a previously persisted token and user
func (s *Session) Restore() error {
	st, err := s.state.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = st.Token
	s.user = st.User
	return nil
}

// Login authenticates against the server and stores the result
func (s *Session) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}

	token, user, err := s.auth.Login(ctx, username, password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.mu.Unlock()

	return s.persist()
}

// Logout revokes the token on the server when possible and clears the store
func (s *Session) Logout(ctx context.Context) error {
	if s.Token() != "" {
		if err := s.auth.Logout(ctx); err != nil && s.log != nil {
			s.log.Warnf("server logout failed: %v", err)
		}
	}
	return s.Reset()
}

// Reset clears the session without contacting the server
func (s *Session) Reset() error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	return s.persist()
}

// Token returns the current bearer token, empty when logged out
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Snapshot returns a copy of the session
func (s *Session) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := SessionState{Token: s.token}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	st.IsLoggedIn = s.token != "" && s.user != nil
	return st
}

// Guard returns the view of the session the route guard works on
func (s *Session) Guard() access.Snapshot {
	st := s.Snapshot()
	snap := access.Snapshot{IsLoggedIn: st.IsLoggedIn}
	if st.User != nil {
		snap.Role = st.User.Role
	}
	return snap
}

func (s *Session) persist() error {
	st := s.Snapshot()
	return s.state.Update(func(saved *State) {
		saved.Token = st.Token
		saved.User = st.User
	})
}
