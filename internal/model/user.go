package model

import (
	"errors"
	"time"
)

// User is a marketplace member. Every user can both lend and borrow.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PhoneNumber  string     `json:"phone_number,omitempty"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	TrustScore   float64    `json:"trust_score"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`

	// Rating aggregates, maintained when ratings are created.
	BorrowerRatingCount int     `json:"borrower_rating_count"`
	BorrowerRatingAvg   float64 `json:"borrower_rating_avg"`
	LenderRatingCount   int     `json:"lender_rating_count"`
	LenderRatingAvg     float64 `json:"lender_rating_avg"`
}

// PublicUser is the profile shown to other users.
type PublicUser struct {
	ID                  int64     `json:"id"`
	Username            string    `json:"username"`
	Name                string    `json:"name"`
	TrustScore          float64   `json:"trust_score"`
	TrustCategory       string    `json:"trust_category"`
	BorrowerRatingCount int       `json:"borrower_rating_count"`
	BorrowerRatingAvg   float64   `json:"borrower_rating_avg"`
	LenderRatingCount   int       `json:"lender_rating_count"`
	LenderRatingAvg     float64   `json:"lender_rating_avg"`
	CreatedAt           time.Time `json:"created_at"`
}

// Roles.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// DefaultTrustScore is assigned at registration.
const DefaultTrustScore = 5.0

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin: 2,
		RoleUser:  1,
	}
	have, ok := levels[role]
	if !ok {
		return false
	}
	want, ok := levels[minimum]
	if !ok {
		return false
	}
	return have >= want
}

// ValidRole reports whether role is a known role.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

// ValidateUsername checks username length requirements.
func ValidateUsername(username string) error {
	if n := len(username); n < 3 || n > 20 {
		return errors.New("username must be between 3 and 20 characters")
	}
	return nil
}
