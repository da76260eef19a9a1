package model

import "time"

// Item is a listing that an owner lends out.
type Item struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	CategoryID    int64      `json:"category_id"`
	CategoryName  string     `json:"category_name,omitempty"`
	Condition     string     `json:"condition"`
	Status        string     `json:"status"`
	Deposit       float64    `json:"deposit"`
	Images        []string   `json:"images"`
	OwnerID       int64      `json:"owner_id"`
	OwnerUsername string     `json:"owner_username,omitempty"`
	AverageRating float64    `json:"average_rating"`
	RatingCount   int        `json:"rating_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// Item conditions.
const (
	ConditionNew       = "NEW"
	ConditionExcellent = "EXCELLENT"
	ConditionGood      = "GOOD"
	ConditionFair      = "FAIR"
	ConditionPoor      = "POOR"
)

// ValidCondition reports whether c is a known condition.
func ValidCondition(c string) bool {
	switch c {
	case ConditionNew, ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// Item statuses. BORROWED is only set by booking activation.
const (
	ItemStatusAvailable   = "AVAILABLE"
	ItemStatusUnavailable = "UNAVAILABLE"
	ItemStatusBorrowed    = "BORROWED"
)

// ValidItemStatus reports whether s is a known item status.
func ValidItemStatus(s string) bool {
	return s == ItemStatusAvailable || s == ItemStatusUnavailable || s == ItemStatusBorrowed
}

// Item search sort keys.
const (
	SortNewest   = "createdAt,desc"
	SortName     = "name,asc"
	SortTopRated = "averageRating,desc"
)

// Pagination defaults.
const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// ItemImage is a processed photo attached to an item.
type ItemImage struct {
	Key       string    `json:"key"`
	ItemID    int64     `json:"item_id"`
	MIME      string    `json:"mime"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// DateRange is a booked span of an item, start inclusive, end exclusive.
type DateRange struct {
	BookingID int64  `json:"booking_id"`
	StartDate Date   `json:"start_date"`
	EndDate   Date   `json:"end_date"`
	Status    string `json:"status"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
}

// NewPage builds a page and its derived fields.
func NewPage[T any](content []T, page, size int, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return Page[T]{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    pages,
		First:         page == 0,
		Last:          page >= pages-1,
	}
}
