package client

import (
	"context"
	"net/http"
)

// Registration is the body of a sign-up request.
type Registration struct {
	Username    string `json:"username"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Password    string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
	Type  string `json:"type"`
	User  *User  `json:"user"`
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*Session, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, path, nil, body, &resp); err != nil {
		return nil, err
	}
	s := &Session{Token: resp.Token, User: resp.User}
	c.setSession(s)
	return s, nil
}

// Register creates an account and starts a session for it.
func (c *Client) Register(ctx context.Context, r Registration) (*Session, error) {
	return c.authenticate(ctx, "/auth/register", r)
}

// Login starts a session. login is a username or an email address.
func (c *Client) Login(ctx context.Context, login, password string) (*Session, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{
		"username_or_email": login,
		"password":          password,
	})
}

// Logout revokes the session token on the server and clears the session.
// The session is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	if c.Session() == nil {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	c.clearSession()
	if StatusCode(err) == http.StatusUnauthorized {
		return nil
	}
	return err
}

// Me fetches the logged-in user and refreshes the session copy.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &u); err != nil {
		return nil, err
	}
	c.setSessionUser(&u)
	return &u, nil
}

// ChangePassword replaces the logged-in user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.do(ctx, http.MethodPut, "/auth/password", nil, map[string]string{
		"current_password": current,
		"new_password":     next,
	}, nil)
}
