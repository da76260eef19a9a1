package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/erazemk/locallend/internal/model"
)

// ErrInvalidBooking is the root of every locally rejected booking request.
var ErrInvalidBooking = errors.New("invalid booking")

// Local booking checks, made before anything is sent.
var (
	ErrNoItem           = fmt.Errorf("%w: no item given", ErrInvalidBooking)
	ErrOwnItem          = fmt.Errorf("%w: you cannot book your own item", ErrInvalidBooking)
	ErrItemUnavailable  = fmt.Errorf("%w: item is not available for booking", ErrInvalidBooking)
	ErrTermsNotAccepted = fmt.Errorf("%w: you must accept the terms and conditions", ErrInvalidBooking)
	ErrMissingDates     = fmt.Errorf("%w: start and end dates are required", ErrInvalidBooking)
	ErrDateOrder        = fmt.Errorf("%w: end date must be after start date", ErrInvalidBooking)
	ErrStartTooSoon     = fmt.Errorf("%w: start date must be tomorrow or later", ErrInvalidBooking)
)

// BookingRequest is the body of a booking creation.
type BookingRequest struct {
	ItemID        int64    `json:"item_id"`
	StartDate     Date     `json:"start_date"`
	EndDate       Date     `json:"end_date"`
	BookingNotes  string   `json:"booking_notes,omitempty"`
	DepositAmount *float64 `json:"deposit_amount,omitempty"`
	AcceptTerms   bool     `json:"accept_terms"`
}

// ValidateBooking applies the checks the client can make without the
// server: the borrower is not the owner, the item is AVAILABLE, the dates
// are ordered and start no earlier than the day after today, and the terms
// were accepted. The server repeats all of them.
func ValidateBooking(req BookingRequest, item *Item, borrowerID int64, today Date) error {
	switch {
	case item == nil:
		return ErrNoItem
	case item.OwnerID == borrowerID:
		return ErrOwnItem
	case item.Status != model.ItemStatusAvailable:
		return ErrItemUnavailable
	case req.StartDate.IsZero() || req.EndDate.IsZero():
		return ErrMissingDates
	case !req.StartDate.Before(req.EndDate):
		return ErrDateOrder
	case req.StartDate.Before(today.AddDays(1)):
		return ErrStartTooSoon
	case !req.AcceptTerms:
		return ErrTermsNotAccepted
	}
	return nil
}

// CreateBooking requests item for the dates in req. The request is checked
// locally with ValidateBooking first.
func (c *Client) CreateBooking(ctx context.Context, item *Item, req BookingRequest) (*Booking, error) {
	user, err := c.currentUser()
	if err != nil {
		return nil, err
	}
	if err := ValidateBooking(req, item, user.ID, model.DateOf(c.now())); err != nil {
		return nil, err
	}
	req.ItemID = item.ID

	var b Booking
	if err := c.do(ctx, http.MethodPost, "/bookings", nil, req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Booking returns a booking visible to the caller.
func (c *Client) Booking(ctx context.Context, id int64) (*Booking, error) {
	var b Booking
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/bookings/%d", id), nil, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) transition(ctx context.Context, id int64, action string, body any) (*Booking, error) {
	var b Booking
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/bookings/%d/%s", id, action), nil, body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Confirm approves a pending booking of one of the caller's items.
func (c *Client) Confirm(ctx context.Context, id int64, ownerNotes string) (*Booking, error) {
	return c.transition(ctx, id, "confirm", map[string]string{"owner_notes": ownerNotes})
}

// Reject declines a pending booking. An empty reason uses the server default.
func (c *Client) Reject(ctx context.Context, id int64, reason string) (*Booking, error) {
	return c.transition(ctx, id, "reject", map[string]string{"reason": reason})
}

// Activate records that the borrower picked the item up.
func (c *Client) Activate(ctx context.Context, id int64, depositPaid bool) (*Booking, error) {
	return c.transition(ctx, id, "activate", map[string]bool{"deposit_paid": depositPaid})
}

// Complete records that the item was returned.
func (c *Client) Complete(ctx context.Context, id int64) (*Booking, error) {
	return c.transition(ctx, id, "complete", nil)
}

// Cancel withdraws a pending or confirmed booking.
func (c *Client) Cancel(ctx context.Context, id int64, reason string) (*Booking, error) {
	return c.transition(ctx, id, "cancel", map[string]string{"reason": reason})
}

func (c *Client) bookings(ctx context.Context, path string, status BookingStatus) ([]Booking, error) {
	var query url.Values
	if status != "" {
		query = url.Values{"status": {string(status)}}
	}
	var bookings []Booking
	if err := c.do(ctx, http.MethodGet, path, query, nil, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// MyBookings lists the caller's bookings as a borrower, optionally by status.
func (c *Client) MyBookings(ctx context.Context, status BookingStatus) ([]Booking, error) {
	return c.bookings(ctx, "/bookings/my-bookings", status)
}

// OwnedBookings lists bookings of the caller's items, optionally by status.
func (c *Client) OwnedBookings(ctx context.Context, status BookingStatus) ([]Booking, error) {
	return c.bookings(ctx, "/bookings/my-owned", status)
}

// OverdueBookings lists all overdue bookings. Admin only.
func (c *Client) OverdueBookings(ctx context.Context) ([]Booking, error) {
	return c.bookings(ctx, "/bookings/overdue", "")
}
