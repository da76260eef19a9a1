package model

import "time"

// Rating types.
const (
	RatingBorrowerToOwner = "BORROWER_TO_OWNER"
	RatingOwnerToBorrower = "OWNER_TO_BORROWER"
	RatingItem            = "ITEM_RATING"
)

// ValidRatingType reports whether t is a known rating type.
func ValidRatingType(t string) bool {
	return t == RatingBorrowerToOwner || t == RatingOwnerToBorrower || t == RatingItem
}

// Rating is feedback left after a completed booking.
type Rating struct {
	ID            int64     `json:"id"`
	BookingID     int64     `json:"booking_id"`
	RaterID       *int64    `json:"rater_id,omitempty"`
	RaterUsername string    `json:"rater_username,omitempty"`
	RateeID       *int64    `json:"ratee_id,omitempty"`
	ItemID        *int64    `json:"item_id,omitempty"`
	Type          string    `json:"rating_type"`
	Value         int       `json:"rating"`
	Comment       string    `json:"comment,omitempty"`
	Anonymous     bool      `json:"is_anonymous"`
	CreatedAt     time.Time `json:"created_at"`
}

// Redacted hides the rater of an anonymous rating.
func (r Rating) Redacted() Rating {
	if r.Anonymous {
		r.RaterID = nil
		r.RaterUsername = ""
	}
	return r
}

// CanRate answers whether the caller may still rate a booking.
type CanRate struct {
	CanRate     bool     `json:"can_rate"`
	Message     string   `json:"message"`
	RatingTypes []string `json:"rating_types"`
}

// MaxCommentLength bounds rating comments.
const MaxCommentLength = 1000
