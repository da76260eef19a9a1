package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/erazemk/locallend/internal/model"
	"github.com/erazemk/locallend/internal/store"
)

// MarkOverdue moves ACTIVE bookings whose end date has passed to OVERDUE and
// returns how many were moved.
func (s *Service) MarkOverdue(ctx context.Context) (n int, err error) {
	today := s.Today()
	ctx, span := s.startSpan(ctx, "mark_overdue", attribute.String("today", today.String()))
	defer func() {
		span.SetAttributes(attribute.Int("bookings.marked", n))
		endSpan(span, err)
	}()

	expired, err := store.ListExpiredActiveBookings(ctx, s.db, today)
	if err != nil {
		return 0, err
	}

	for _, b := range expired {
		err := store.TransitionBooking(ctx, s.db, b.ID, store.BookingUpdate{
			From: model.BookingActive,
			To:   model.BookingOverdue,
			At:   s.now(),
		})
		if errors.Is(err, store.ErrStaleBooking) {
			// Completed between the listing and the update.
			continue
		}
		if err != nil {
			return n, err
		}
		n++
		s.record(ctx, model.BookingOverdue)
		slog.Warn("booking overdue", "booking", b.ID, "item", b.ItemID, "borrower", b.BorrowerID,
			"end", b.EndDate.String())
	}
	return n, nil
}

// ListOverdue returns all OVERDUE bookings.
func (s *Service) ListOverdue(ctx context.Context) ([]model.Booking, error) {
	return store.ListBookingsByStatus(ctx, s.db, model.BookingOverdue)
}

// RunOverdueSweeper calls MarkOverdue once immediately and then every
// interval until ctx is cancelled.
func (s *Service) RunOverdueSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.MarkOverdue(ctx); err != nil && ctx.Err() == nil {
			slog.Error("overdue sweep failed", "error", err)
		}
		if _, err := store.PurgeRevokedTokens(ctx, s.db, s.now()); err != nil && ctx.Err() == nil {
			slog.Error("purging revoked tokens failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
