package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rickgao/douniu-client/internal/model"
)

// Login exchanges phone and password for a session token.
func (c *Client) Login(ctx context.Context, phone, password string) (*model.LoginResponse, error) {
	resp, err := call[model.LoginResponse](ctx, c, http.MethodPost, "/auth/login", "",
		model.LoginRequest{Phone: phone, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login: server returned no token")
	}
	return &resp, nil
}

// Register creates an account. The server does not log the user in.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	user, err := call[model.User](ctx, c, http.MethodPost, "/auth/register", "", req)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &user, nil
}

// Me returns the user owning token.
func (c *Client) Me(ctx context.Context, token string) (*model.User, error) {
	user, err := call[model.User](ctx, c, http.MethodGet, "/auth/me", token, nil)
	if err != nil {
		return nil, fmt.Errorf("me: %w", err)
	}
	return &user, nil
}

// Logout invalidates token on the server.
func (c *Client) Logout(ctx context.Context, token string) error {
	if _, err := call[any](ctx, c, http.MethodPost, "/auth/logout", token, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
