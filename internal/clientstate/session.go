package clientstate

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/zaymazone/marketplace/internal/client"
	"github.com/zaymazone/marketplace/internal/domain"
)

var ErrNotAuthenticated = errors.New("not signed in")

// AuthState is the locally held credential and the user it belongs to.
type AuthState struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (s AuthState) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// Session owns the signed-in user. Account calls go through api; the token
// it holds is attached to every authenticated request.
type Session struct {
	mu    sync.Mutex
	api   *client.Client
	store Persister
	state AuthState
}

func NewSession(api *client.Client, store Persister) (*Session, error) {
	s := &Session{api: api, store: store}
	if err := load(store, KeyAuth, &s.state); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) Login(ctx context.Context, email, password string) (*domain.User, error) {
	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.adopt(resp)
}

func (s *Session) Signup(ctx context.Context, req client.RegisterRequest) (*domain.User, error) {
	resp, err := s.api.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.adopt(resp)
}

func (s *Session) adopt(resp *client.AuthResponse) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := AuthState{Token: resp.Token, User: resp.User}
	if err := save(s.store, KeyAuth, next); err != nil {
		return nil, err
	}
	s.state = next
	return copyUser(next.User), nil
}

// Logout forgets the local credential. Tokens are stateless, so there is
// nothing to revoke on the server.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := save(s.store, KeyAuth, AuthState{}); err != nil {
		return err
	}
	s.state = AuthState{}
	return nil
}

// UpdateProfile sends upd for the signed-in user and replaces the local copy
// with what the server returns.
func (s *Session) UpdateProfile(ctx context.Context, upd client.UserUpdate) (*domain.User, error) {
	state := s.State()
	if !state.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	user, err := s.api.WithToken(state.Token).UpdateUser(ctx, state.User.ID, upd)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Token != state.Token {
		return nil, ErrNotAuthenticated
	}
	next := AuthState{Token: s.state.Token, User: user}
	if err := save(s.store, KeyAuth, next); err != nil {
		return nil, err
	}
	s.state = next
	return copyUser(user), nil
}

// Refresh reloads the profile with the saved token. A rejected token signs
// the session out.
func (s *Session) Refresh(ctx context.Context) (*domain.User, error) {
	state := s.State()
	if !state.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	user, err := s.api.WithToken(state.Token).Profile(ctx)
	if client.StatusOf(err) == http.StatusUnauthorized {
		if logoutErr := s.Logout(); logoutErr != nil {
			return nil, logoutErr
		}
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}
	return s.adopt(&client.AuthResponse{Token: state.Token, User: user})
}

func (s *Session) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AuthState{Token: s.state.Token, User: copyUser(s.state.User)}
}

func (s *Session) User() *domain.User {
	return s.State().User
}

// Client returns an API client carrying the session token, or the anonymous
// client when signed out.
func (s *Session) Client() *client.Client {
	return s.api.WithToken(s.State().Token)
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
