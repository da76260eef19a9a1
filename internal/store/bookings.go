package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/locallend/internal/db"
	"github.com/erazemk/locallend/internal/model"
)

// ErrStaleBooking is returned when a booking left the expected status
// between being read and being updated.
var ErrStaleBooking = errors.New("booking status changed")

const bookingSelect = `SELECT b.id, b.item_id, COALESCE(i.name, ''), b.borrower_id, COALESCE(bu.username, ''),
	b.owner_id, COALESCE(ou.username, ''), b.status, b.start_date, b.end_date, b.duration_days,
	b.actual_start, b.actual_end, b.booking_notes, b.owner_notes, b.cancellation_reason, b.rejection_reason,
	b.deposit_amount, b.deposit_paid, b.is_rated, b.confirmed_at, b.cancelled_at, b.rejected_at,
	b.created_at, b.updated_at
	FROM bookings b
	LEFT JOIN items i ON i.id = b.item_id
	LEFT JOIN users bu ON bu.id = b.borrower_id
	LEFT JOIN users ou ON ou.id = b.owner_id`

func scanBooking(row rowScanner) (*model.Booking, error) {
	b := &model.Booking{}
	err := row.Scan(&b.ID, &b.ItemID, &b.ItemName, &b.BorrowerID, &b.BorrowerUsername,
		&b.OwnerID, &b.OwnerUsername, &b.Status, &b.StartDate, &b.EndDate, &b.DurationDays,
		&b.ActualStart, &b.ActualEnd, &b.BookingNotes, &b.OwnerNotes, &b.CancellationReason, &b.RejectionReason,
		&b.DepositAmount, &b.DepositPaid, &b.IsRated, &b.ConfirmedAt, &b.CancelledAt, &b.RejectedAt,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func queryBookings(ctx context.Context, q db.DBTX, query string, args ...any) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing bookings: %w", err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// CreateBooking inserts a PENDING booking.
func CreateBooking(ctx context.Context, q db.DBTX, b *model.Booking) (*model.Booking, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO bookings (item_id, borrower_id, owner_id, status, start_date, end_date, duration_days,
		                       booking_notes, deposit_amount)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ItemID, b.BorrowerID, b.OwnerID, model.BookingPending, b.StartDate, b.EndDate, b.DurationDays,
		b.BookingNotes, b.DepositAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("creating booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting booking id: %w", err)
	}

	return GetBooking(ctx, q, id)
}

// GetBooking returns a booking by ID.
func GetBooking(ctx context.Context, q db.DBTX, id int64) (*model.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting booking: %w", err)
	}
	return b, nil
}

// ListBookingsByBorrower returns a borrower's bookings, newest first,
// optionally restricted to one status.
func ListBookingsByBorrower(ctx context.Context, q db.DBTX, borrowerID int64, status model.BookingStatus) ([]model.Booking, error) {
	if status != "" {
		return queryBookings(ctx, q,
			bookingSelect+` WHERE b.borrower_id = ? AND b.status = ? ORDER BY b.created_at DESC, b.id DESC`,
			borrowerID, status)
	}
	return queryBookings(ctx, q,
		bookingSelect+` WHERE b.borrower_id = ? ORDER BY b.created_at DESC, b.id DESC`, borrowerID)
}

// ListBookingsByOwner returns bookings of items owned by ownerID, newest
// first, optionally restricted to one status.
func ListBookingsByOwner(ctx context.Context, q db.DBTX, ownerID int64, status model.BookingStatus) ([]model.Booking, error) {
	if status != "" {
		return queryBookings(ctx, q,
			bookingSelect+` WHERE b.owner_id = ? AND b.status = ? ORDER BY b.created_at DESC, b.id DESC`,
			ownerID, status)
	}
	return queryBookings(ctx, q,
		bookingSelect+` WHERE b.owner_id = ? ORDER BY b.created_at DESC, b.id DESC`, ownerID)
}

// ListBookingsByStatus returns all bookings in a status, oldest end date first.
func ListBookingsByStatus(ctx context.Context, q db.DBTX, status model.BookingStatus) ([]model.Booking, error) {
	return queryBookings(ctx, q,
		bookingSelect+` WHERE b.status = ? ORDER BY b.end_date, b.id`, status)
}

// ListExpiredActiveBookings returns ACTIVE bookings whose end date is before today.
func ListExpiredActiveBookings(ctx context.Context, q db.DBTX, today model.Date) ([]model.Booking, error) {
	return queryBookings(ctx, q,
		bookingSelect+` WHERE b.status = ? AND b.end_date < ? ORDER BY b.end_date, b.id`,
		model.BookingActive, today)
}

// HasOverlappingBooking reports whether another booking of the item that
// reserves its dates overlaps [start, end). Ranges that only touch at a
// handover day do not overlap.
func HasOverlappingBooking(ctx context.Context, q db.DBTX, itemID int64, start, end model.Date, excludeID int64) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
		 WHERE item_id = ? AND id != ? AND status IN (?, ?, ?)
		   AND start_date < ? AND end_date > ?`,
		itemID, excludeID, model.BookingConfirmed, model.BookingActive, model.BookingOverdue, end, start,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking booking overlap: %w", err)
	}
	return count > 0, nil
}

// HasOpenBookings reports whether the item has a booking that is not terminal.
func HasOpenBookings(ctx context.Context, q db.DBTX, itemID int64) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE item_id = ? AND status IN (?, ?, ?, ?)`,
		itemID, model.BookingPending, model.BookingConfirmed, model.BookingActive, model.BookingOverdue,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking open bookings: %w", err)
	}
	return count > 0, nil
}

// ListReservedRanges returns the date ranges of an item reserved by
// confirmed, active or overdue bookings that end on or after from.
func ListReservedRanges(ctx context.Context, q db.DBTX, itemID int64, from model.Date) ([]model.DateRange, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, start_date, end_date, status FROM bookings
		 WHERE item_id = ? AND status IN (?, ?, ?) AND end_date >= ?
		 ORDER BY start_date`,
		itemID, model.BookingConfirmed, model.BookingActive, model.BookingOverdue, from,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reserved ranges: %w", err)
	}
	defer rows.Close()

	var ranges []model.DateRange
	for rows.Next() {
		var r model.DateRange
		if err := rows.Scan(&r.BookingID, &r.StartDate, &r.EndDate, &r.Status); err != nil {
			return nil, fmt.Errorf("scanning reserved range: %w", err)
		}
		ranges = append(ranges, r)
	}
	return ranges, rows.Err()
}

// BookingUpdate describes a status transition and the fields it records.
// Nil fields are left unchanged.
type BookingUpdate struct {
	From               model.BookingStatus
	To                 model.BookingStatus
	At                 time.Time
	OwnerNotes         *string
	CancellationReason *string
	RejectionReason    *string
	DepositPaid        *bool
}

// TransitionBooking applies u to a booking, guarded on its current status.
// The lifecycle timestamp matching u.To is set to u.At.
func TransitionBooking(ctx context.Context, q db.DBTX, id int64, u BookingUpdate) error {
	set := `status = ?, updated_at = ?`
	args := []any{u.To, u.At.UTC()}

	switch u.To {
	case model.BookingConfirmed:
		set += `, confirmed_at = ?`
		args = append(args, u.At.UTC())
	case model.BookingActive:
		set += `, actual_start = ?`
		args = append(args, u.At.UTC())
	case model.BookingCompleted:
		set += `, actual_end = ?`
		args = append(args, u.At.UTC())
	case model.BookingCancelled:
		set += `, cancelled_at = ?`
		args = append(args, u.At.UTC())
	case model.BookingRejected:
		set += `, rejected_at = ?`
		args = append(args, u.At.UTC())
	}
	if u.OwnerNotes != nil {
		set += `, owner_notes = ?`
		args = append(args, *u.OwnerNotes)
	}
	if u.CancellationReason != nil {
		set += `, cancellation_reason = ?`
		args = append(args, *u.CancellationReason)
	}
	if u.RejectionReason != nil {
		set += `, rejection_reason = ?`
		args = append(args, *u.RejectionReason)
	}
	if u.DepositPaid != nil {
		set += `, deposit_paid = ?`
		args = append(args, *u.DepositPaid)
	}
	args = append(args, id, u.From)

	result, err := q.ExecContext(ctx, `UPDATE bookings SET `+set+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return fmt.Errorf("updating booking status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating booking status: %w", err)
	}
	if n == 0 {
		return ErrStaleBooking
	}
	return nil
}

// MarkBookingRated flags a booking as having received a rating.
func MarkBookingRated(ctx context.Context, q db.DBTX, id int64) error {
	_, err := q.ExecContext(ctx, `UPDATE bookings SET is_rated = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking booking rated: %w", err)
	}
	return nil
}
