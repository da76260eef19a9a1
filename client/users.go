package client

import (
	"context"
	"fmt"
	"net/http"
)

// ProfileUpdate is the editable part of the caller's own account.
type ProfileUpdate struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

// Profile returns a user's public profile.
func (c *Client) Profile(ctx context.Context, userID int64) (*PublicUser, error) {
	var p PublicUser
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", userID), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile edits the logged-in user and refreshes the session copy.
func (c *Client) UpdateProfile(ctx context.Context, p ProfileUpdate) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPut, "/users/me", nil, p, &u); err != nil {
		return nil, err
	}
	c.setSessionUser(&u)
	return &u, nil
}

// Users lists every account. Admin only.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SetRole changes a user's role. Admin only.
func (c *Client) SetRole(ctx context.Context, userID int64, role string) (*User, error) {
	var u User
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/users/%d/role", userID), nil, map[string]string{"role": role}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser soft-deletes an account. Admin only.
func (c *Client) DeleteUser(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", userID), nil, nil, nil)
}
