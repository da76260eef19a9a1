package model

import "time"

// Category groups items. Categories form a tree through ParentID.
type Category struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	ParentID         *int64    `json:"parent_id,omitempty"`
	Active           bool      `json:"active"`
	ItemCount        int       `json:"item_count"`
	HasSubcategories bool      `json:"has_subcategories"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Category sort keys.
const (
	CategorySortName     = "name"
	CategorySortNameDesc = "name_desc"
	CategorySortCreated  = "created"
	CategorySortPopular  = "popular"
)
