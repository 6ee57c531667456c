package apiclient

import (
	"context"
	"fmt"
	"net/http"
)

// CreateUser registers a user under a run-specific name and remembers its
// token under key.
func (s *Session) CreateUser(ctx context.Context, key string, opts CheckOptions) (Principal, error) {
	name := s.Namer.Name(key)
	r, err := s.doJSON(ctx, http.MethodPost, "/api/v1/users", "", map[string]string{
		"userName": name,
		"email":    name + "@api.test",
		"password": DefaultPassword,
	}, opts)
	if err != nil {
		return Principal{}, err
	}
	if !r.ok() {
		return Principal{}, nil
	}
	return s.rememberUser(key, name, r)
}

// Login authenticates an existing session user and refreshes its token.
func (s *Session) Login(ctx context.Context, key string, opts CheckOptions) (Principal, error) {
	u, ok := s.User(key)
	if !ok {
		return Principal{}, fmt.Errorf("no user %q in this session", key)
	}
	return s.authenticate(ctx, key, u.Name, DefaultPassword, opts)
}

// LoginExisting authenticates a user the session did not create, such as
// a superuser from the environment, and remembers it under key.
func (s *Session) LoginExisting(ctx context.Context, key, userName, password string, opts CheckOptions) (Principal, error) {
	return s.authenticate(ctx, key, userName, password, opts)
}

func (s *Session) authenticate(ctx context.Context, key, userName, password string, opts CheckOptions) (Principal, error) {
	r, err := s.doJSON(ctx, http.MethodPost, "/api/v1/users/authenticate", "", map[string]string{
		"userName": userName,
		"password": password,
	}, opts)
	if err != nil {
		return Principal{}, err
	}
	if !r.ok() {
		return Principal{}, nil
	}
	return s.rememberUser(key, userName, r)
}

func (s *Session) rememberUser(key, name string, r *reply) (Principal, error) {
	token, _ := r.Body["token"].(string)
	claims, err := claimsOf(token)
	if err != nil {
		return Principal{}, err
	}
	if claims.Type != "user" {
		return Principal{}, fmt.Errorf("expected a user token, got %q", claims.Type)
	}
	if id := int(asFloat(r.object("userData")["id"])); id != claims.ID {
		return Principal{}, fmt.Errorf("token is for user %d but userData says %d", claims.ID, id)
	}

	p := Principal{Key: key, Name: name, ID: claims.ID, Token: token}
	s.mu.Lock()
	s.users[key] = p
	s.mu.Unlock()
	return p, nil
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}
