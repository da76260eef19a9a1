package model

import (
	"fmt"
	"time"
)

// BookingStatus is a state of the booking lifecycle.
type BookingStatus string

// Booking statuses.
const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingActive    BookingStatus = "ACTIVE"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingRejected  BookingStatus = "REJECTED"
	BookingOverdue   BookingStatus = "OVERDUE"
)

// BookingStatuses lists every status.
var BookingStatuses = []BookingStatus{
	BookingPending,
	BookingConfirmed,
	BookingActive,
	BookingCompleted,
	BookingCancelled,
	BookingRejected,
	BookingOverdue,
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingRejected, BookingCancelled},
	BookingConfirmed: {BookingActive, BookingCancelled},
	BookingActive:    {BookingCompleted, BookingOverdue},
	BookingOverdue:   {BookingCompleted},
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	for _, v := range BookingStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled || s == BookingRejected
}

// BlocksDates reports whether a booking in this status reserves its dates.
func (s BookingStatus) BlocksDates() bool {
	return s == BookingConfirmed || s == BookingActive || s == BookingOverdue
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseBookingStatus validates a status string.
func ParseBookingStatus(v string) (BookingStatus, error) {
	s := BookingStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown booking status %q", v)
	}
	return s, nil
}

// Booking is a borrower's reservation of an item for a date range.
type Booking struct {
	ID                 int64         `json:"id"`
	ItemID             int64         `json:"item_id"`
	ItemName           string        `json:"item_name,omitempty"`
	BorrowerID         int64         `json:"borrower_id"`
	BorrowerUsername   string        `json:"borrower_username,omitempty"`
	OwnerID            int64         `json:"owner_id"`
	OwnerUsername      string        `json:"owner_username,omitempty"`
	Status             BookingStatus `json:"status"`
	StartDate          Date          `json:"start_date"`
	EndDate            Date          `json:"end_date"`
	DurationDays       int           `json:"duration_days"`
	ActualStart        *time.Time    `json:"actual_start,omitempty"`
	ActualEnd          *time.Time    `json:"actual_end,omitempty"`
	BookingNotes       string        `json:"booking_notes,omitempty"`
	OwnerNotes         string        `json:"owner_notes,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	RejectionReason    string        `json:"rejection_reason,omitempty"`
	DepositAmount      float64       `json:"deposit_amount"`
	DepositPaid        bool          `json:"deposit_paid"`
	IsRated            bool          `json:"is_rated"`
	ConfirmedAt        *time.Time    `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	RejectedAt         *time.Time    `json:"rejected_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Field limits.
const (
	MaxNotesLength  = 500
	MaxReasonLength = 200
)
