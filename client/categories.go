package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// CategoryQuery filters and orders a category listing.
type CategoryQuery struct {
	Sort     string // name, name_desc, created or popular
	RootOnly bool
}

// NewCategory is the body of a category creation.
type NewCategory struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    *int64 `json:"parent_id,omitempty"`
}

func (c *Client) categories(ctx context.Context, path string, query url.Values) ([]Category, error) {
	var categories []Category
	if err := c.do(ctx, http.MethodGet, path, query, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// Categories lists active categories.
func (c *Client) Categories(ctx context.Context, q CategoryQuery) ([]Category, error) {
	query := url.Values{}
	if q.Sort != "" {
		query.Set("sort", q.Sort)
	}
	if q.RootOnly {
		query.Set("root", "true")
	}
	return c.categories(ctx, "/categories", query)
}

// SearchCategories finds categories whose name contains term.
func (c *Client) SearchCategories(ctx context.Context, term string) ([]Category, error) {
	return c.categories(ctx, "/categories/search", url.Values{"term": {term}})
}

// Subcategories lists the direct children of a category.
func (c *Client) Subcategories(ctx context.Context, id int64) ([]Category, error) {
	return c.categories(ctx, fmt.Sprintf("/categories/%d/subcategories", id), nil)
}

// Category returns one category.
func (c *Client) Category(ctx context.Context, id int64) (*Category, error) {
	var cat Category
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/categories/%d", id), nil, nil, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// CreateCategory adds a category. Admin only.
func (c *Client) CreateCategory(ctx context.Context, nc NewCategory) (*Category, error) {
	var cat Category
	if err := c.do(ctx, http.MethodPost, "/categories", nil, nc, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}
