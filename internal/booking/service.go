// Package booking implements the lending lifecycle: booking creation, status
// transitions with their item side effects, overdue detection and ratings.
package booking

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/locallend/internal/db"
	"github.com/erazemk/locallend/internal/model"
	"github.com/erazemk/locallend/internal/store"
)

const instrumentationName = "github.com/erazemk/locallend/internal/booking"

// Policy bounds what borrowers may request.
type Policy struct {
	MaxDays        int
	MaxAdvanceDays int
	MinTrustScore  float64
}

// DefaultPolicy returns the standard lending rules.
func DefaultPolicy() Policy {
	return Policy{MaxDays: 30, MaxAdvanceDays: 90, MinTrustScore: 3.0}
}

// Service runs booking operations against the database. Each operation is a
// single transaction.
type Service struct {
	db     *sql.DB
	policy Policy
	now    func() time.Time

	tracer      trace.Tracer
	meters      metric.MeterProvider
	transitions metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMeterProvider records booking metrics to mp instead of the global
// provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meters = mp }
}

// NewService creates a Service. Tracing and, unless WithMeterProvider is
// given, metrics use the global OpenTelemetry providers.
func NewService(database *sql.DB, policy Policy, opts ...Option) *Service {
	s := &Service{
		db:     database,
		policy: policy,
		now:    time.Now,
		tracer: otel.Tracer(instrumentationName),
		meters: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	counter, err := s.meters.Meter(instrumentationName).Int64Counter("locallend.booking.transitions",
		metric.WithDescription("Booking status changes by target status"),
	)
	if err != nil {
		slog.Warn("booking transition counter unavailable", "error", err)
	}
	s.transitions = counter
	return s
}

// Today is the current calendar day.
func (s *Service) Today() model.Date {
	return model.DateOf(s.now())
}

func (s *Service) record(ctx context.Context, to model.BookingStatus) {
	if s.transitions != nil {
		s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(to))))
	}
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "booking."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreateRequest is the body of a booking request.
type CreateRequest struct {
	ItemID        int64      `json:"item_id"`
	StartDate     model.Date `json:"start_date"`
	EndDate       model.Date `json:"end_date"`
	BookingNotes  string     `json:"booking_notes"`
	DepositAmount *float64   `json:"deposit_amount"`
	AcceptTerms   bool       `json:"accept_terms"`
}

// validate checks the request on its own, without looking at the item.
func (r *CreateRequest) validate(today model.Date, p Policy) error {
	if r.ItemID <= 0 {
		return invalid("item_id required")
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return invalid("start_date and end_date required")
	}
	if !r.StartDate.Before(r.EndDate) {
		return invalid("end date must be after start date")
	}
	if r.StartDate.Before(today.AddDays(1)) {
		return invalid("start date must be tomorrow or later")
	}
	if days := r.StartDate.DaysUntil(r.EndDate); days > p.MaxDays {
		return invalid("booking may last at most %d days, requested %d", p.MaxDays, days)
	}
	if today.DaysUntil(r.StartDate) > p.MaxAdvanceDays {
		return invalid("booking may start at most %d days ahead", p.MaxAdvanceDays)
	}
	if !r.AcceptTerms {
		return invalid("terms must be accepted")
	}
	if len(r.BookingNotes) > model.MaxNotesLength {
		return invalid("booking notes must be at most %d characters", model.MaxNotesLength)
	}
	if r.DepositAmount != nil && *r.DepositAmount < 0 {
		return invalid("deposit amount must not be negative")
	}
	return nil
}

// Create requests a booking of an item for borrowerID. The new booking is PENDING.
func (s *Service) Create(ctx context.Context, borrowerID int64, req CreateRequest) (_ *model.Booking, err error) {
	ctx, span := s.startSpan(ctx, "create",
		attribute.Int64("item.id", req.ItemID),
		attribute.Int64("borrower.id", borrowerID),
	)
	defer func() { endSpan(span, err) }()

	req.BookingNotes = strings.TrimSpace(req.BookingNotes)
	if err := req.validate(s.Today(), s.policy); err != nil {
		return nil, err
	}

	var created *model.Booking
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		item, err := store.GetItem(ctx, tx, req.ItemID)
		if err != nil {
			return err
		}
		if item == nil || item.DeletedAt != nil {
			return ErrItemNotFound
		}
		if item.OwnerID == borrowerID {
			return invalid("cannot book your own item")
		}
		if item.Status != model.ItemStatusAvailable {
			return ErrItemUnavailable
		}

		borrower, err := store.GetUser(ctx, tx, borrowerID)
		if err != nil {
			return err
		}
		if borrower == nil || borrower.DeletedAt != nil {
			return ErrForbidden
		}
		if borrower.TrustScore < s.policy.MinTrustScore {
			return ErrInsufficientTrust
		}

		overlap, err := store.HasOverlappingBooking(ctx, tx, item.ID, req.StartDate, req.EndDate, 0)
		if err != nil {
			return err
		}
		if overlap {
			return ErrConflict
		}

		deposit := item.Deposit
		if req.DepositAmount != nil {
			deposit = *req.DepositAmount
		}

		created, err = store.CreateBooking(ctx, tx, &model.Booking{
			ItemID:        item.ID,
			BorrowerID:    borrowerID,
			OwnerID:       item.OwnerID,
			StartDate:     req.StartDate,
			EndDate:       req.EndDate,
			DurationDays:  req.StartDate.DaysUntil(req.EndDate),
			BookingNotes:  req.BookingNotes,
			DepositAmount: deposit,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, model.BookingPending)
	slog.Info("booking requested", "booking", created.ID, "item", created.ItemID, "borrower", borrowerID,
		"start", created.StartDate.String(), "end", created.EndDate.String())
	return created, nil
}

// Get returns a booking visible to userID: its borrower, its owner, or an admin.
func (s *Service) Get(ctx context.Context, userID int64, admin bool, id int64) (*model.Booking, error) {
	b, err := store.GetBooking(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	if !admin && b.BorrowerID != userID && b.OwnerID != userID {
		return nil, ErrForbidden
	}
	return b, nil
}

type actor int

const (
	actorBorrower actor = 1
	actorOwner    actor = 2
	actorEither   actor = actorBorrower | actorOwner
)

func (a actor) allows(b *model.Booking, userID int64) bool {
	return (a&actorBorrower != 0 && b.BorrowerID == userID) ||
		(a&actorOwner != 0 && b.OwnerID == userID)
}

// transition loads a booking inside tx, checks who may act and whether the
// lifecycle allows moving to u.To, then runs sideEffect and applies u.
func (s *Service) transition(ctx context.Context, name string, userID, id int64, who actor,
	u store.BookingUpdate, sideEffect func(ctx context.Context, tx *sql.Tx, b *model.Booking) error,
) (_ *model.Booking, err error) {
	ctx, span := s.startSpan(ctx, name,
		attribute.Int64("booking.id", id),
		attribute.Int64("user.id", userID),
		attribute.String("booking.to", string(u.To)),
	)
	defer func() { endSpan(span, err) }()

	var from model.BookingStatus
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		b, err := store.GetBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrNotFound
		}
		if !who.allows(b, userID) {
			return ErrForbidden
		}
		if !b.Status.CanTransitionTo(u.To) {
			return &TransitionError{From: b.Status, To: u.To}
		}

		if sideEffect != nil {
			if err := sideEffect(ctx, tx, b); err != nil {
				return err
			}
		}

		from = b.Status
		u.From = b.Status
		u.At = s.now()
		return store.TransitionBooking(ctx, tx, id, u)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, u.To)
	slog.Info("booking status changed", "booking", id, "from", string(from), "to", string(u.To), "user", userID)
	return store.GetBooking(ctx, s.db, id)
}

// Confirm approves a PENDING booking. Only the item owner may confirm, and
// the dates must still be free.
func (s *Service) Confirm(ctx context.Context, ownerID, id int64, ownerNotes string) (*model.Booking, error) {
	ownerNotes = strings.TrimSpace(ownerNotes)
	if len(ownerNotes) > model.MaxNotesLength {
		return nil, invalid("owner notes must be at most %d characters", model.MaxNotesLength)
	}
	u := store.BookingUpdate{To: model.BookingConfirmed}
	if ownerNotes != "" {
		u.OwnerNotes = &ownerNotes
	}
	return s.transition(ctx, "confirm", ownerID, id, actorOwner, u, func(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
		overlap, err := store.HasOverlappingBooking(ctx, tx, b.ItemID, b.StartDate, b.EndDate, b.ID)
		if err != nil {
			return err
		}
		if overlap {
			return ErrConflict
		}
		return nil
	})
}

// Reject declines a PENDING booking.
func (s *Service) Reject(ctx context.Context, ownerID, id int64, reason string) (*model.Booking, error) {
	reason, err := reasonOrDefault(reason, "Rejected by owner")
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, "reject", ownerID, id, actorOwner,
		store.BookingUpdate{To: model.BookingRejected, RejectionReason: &reason}, nil)
}

// Activate records that the borrower picked up the item.
func (s *Service) Activate(ctx context.Context, borrowerID, id int64, depositPaid bool) (*model.Booking, error) {
	u := store.BookingUpdate{To: model.BookingActive}
	if depositPaid {
		u.DepositPaid = &depositPaid
	}
	return s.transition(ctx, "activate", borrowerID, id, actorBorrower, u, func(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
		item, err := store.GetItem(ctx, tx, b.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrItemNotFound
		}
		if item.Status == model.ItemStatusBorrowed {
			return ErrItemUnavailable
		}
		return store.SetItemStatus(ctx, tx, b.ItemID, model.ItemStatusBorrowed)
	})
}

// Complete records the return of the item. Either party may complete an
// ACTIVE or OVERDUE booking.
func (s *Service) Complete(ctx context.Context, userID, id int64) (*model.Booking, error) {
	return s.transition(ctx, "complete", userID, id, actorEither,
		store.BookingUpdate{To: model.BookingCompleted}, func(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
			return store.SetItemStatus(ctx, tx, b.ItemID, model.ItemStatusAvailable)
		})
}

// Cancel withdraws a PENDING or CONFIRMED booking. Either party may cancel.
func (s *Service) Cancel(ctx context.Context, userID, id int64, reason string) (*model.Booking, error) {
	b, err := store.GetBooking(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	fallback := "Cancelled by borrower"
	if b != nil && b.OwnerID == userID {
		fallback = "Cancelled by owner"
	}
	reason, err = reasonOrDefault(reason, fallback)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, "cancel", userID, id, actorEither,
		store.BookingUpdate{To: model.BookingCancelled, CancellationReason: &reason}, nil)
}

func reasonOrDefault(reason, fallback string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fallback, nil
	}
	if len(reason) > model.MaxReasonLength {
		return "", invalid("reason must be at most %d characters", model.MaxReasonLength)
	}
	return reason, nil
}

// ListForBorrower returns the bookings userID made.
func (s *Service) ListForBorrower(ctx context.Context, userID int64, status model.BookingStatus) ([]model.Booking, error) {
	return store.ListBookingsByBorrower(ctx, s.db, userID, status)
}

// ListForOwner returns the bookings of items userID owns.
func (s *Service) ListForOwner(ctx context.Context, userID int64, status model.BookingStatus) ([]model.Booking, error) {
	return store.ListBookingsByOwner(ctx, s.db, userID, status)
}
