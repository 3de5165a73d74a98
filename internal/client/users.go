package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/zaymazone/marketplace/internal/domain"
)

type AuthResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type RegisterRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role,omitempty"`
	Avatar   string      `json:"avatar,omitempty"`
	Location string      `json:"location,omitempty"`
}

// UserUpdate changes only the non-nil fields. Password requires
// CurrentPassword.
type UserUpdate struct {
	Name            *string `json:"name,omitempty"`
	Email           *string `json:"email,omitempty"`
	Avatar          *string `json:"avatar,omitempty"`
	Location        *string `json:"location,omitempty"`
	Password        *string `json:"password,omitempty"`
	CurrentPassword string  `json:"currentPassword,omitempty"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/users", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/login", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Profile returns the user the client's token belongs to.
func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	return c.getUser(ctx, "/api/users/profile", nil)
}

func (c *Client) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return c.getUser(ctx, "/api/users/"+escape(id), nil)
}

func (c *Client) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodPut, "/api/users/"+escape(id), nil, upd, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListArtisans(ctx context.Context) ([]domain.User, error) {
	return c.listUsers(ctx, "/api/users/artisans/all", nil)
}

// TopArtisans asks for the best sellers; limit <= 0 leaves the server default.
func (c *Client) TopArtisans(ctx context.Context, limit int) ([]domain.User, error) {
	return c.listUsers(ctx, "/api/users/top-artisans/list", limitQuery(limit))
}

func (c *Client) getUser(ctx context.Context, path string, query url.Values) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, path, query, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) listUsers(ctx context.Context, path string, query url.Values) ([]domain.User, error) {
	var users []domain.User
	if err := c.do(ctx, http.MethodGet, path, query, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}
