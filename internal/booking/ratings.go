package booking

import (
	"context"
	"database/sql"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/erazemk/locallend/internal/db"
	"github.com/erazemk/locallend/internal/model"
	"github.com/erazemk/locallend/internal/store"
	"github.com/erazemk/locallend/internal/trust"
)

// RateRequest is the body of a rating submission.
type RateRequest struct {
	BookingID   int64  `json:"booking_id"`
	RatingType  string `json:"rating_type"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// rateableTypes returns the rating types userID may give on b.
func rateableTypes(b *model.Booking, userID int64) []string {
	switch userID {
	case b.BorrowerID:
		return []string{model.RatingItem, model.RatingBorrowerToOwner}
	case b.OwnerID:
		return []string{model.RatingOwnerToBorrower}
	}
	return nil
}

// remainingTypes loads a booking and returns the rating types userID has not
// used yet.
func remainingTypes(ctx context.Context, q db.DBTX, userID, bookingID int64) (*model.Booking, []string, error) {
	b, err := store.GetBooking(ctx, q, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if b == nil {
		return nil, nil, ErrNotFound
	}
	allowed := rateableTypes(b, userID)
	if allowed == nil {
		return nil, nil, ErrForbidden
	}

	given, err := store.RatingTypesGiven(ctx, q, bookingID, userID)
	if err != nil {
		return nil, nil, err
	}
	remaining := []string{}
	for _, t := range allowed {
		if !slices.Contains(given, t) {
			remaining = append(remaining, t)
		}
	}
	return b, remaining, nil
}

// CanRate reports whether userID may still rate a booking and with which types.
func (s *Service) CanRate(ctx context.Context, userID, bookingID int64) (*model.CanRate, error) {
	b, remaining, err := remainingTypes(ctx, s.db, userID, bookingID)
	if err != nil {
		return nil, err
	}

	switch {
	case b.Status != model.BookingCompleted:
		return &model.CanRate{Message: "Booking must be completed before rating", RatingTypes: []string{}}, nil
	case len(remaining) == 0:
		return &model.CanRate{Message: "You have already rated this booking", RatingTypes: []string{}}, nil
	default:
		return &model.CanRate{CanRate: true, Message: "You can rate this booking", RatingTypes: remaining}, nil
	}
}

// Rate records a rating on a completed booking and refreshes the ratee's
// trust score or the item's average rating.
func (s *Service) Rate(ctx context.Context, raterID int64, req RateRequest) (_ *model.Rating, err error) {
	ctx, span := s.startSpan(ctx, "rate",
		attribute.Int64("booking.id", req.BookingID),
		attribute.String("rating.type", req.RatingType),
	)
	defer func() { endSpan(span, err) }()

	req.Comment = strings.TrimSpace(req.Comment)
	switch {
	case req.BookingID <= 0:
		return nil, invalid("booking_id required")
	case !model.ValidRatingType(req.RatingType):
		return nil, invalid("unknown rating type %q", req.RatingType)
	case req.Rating < 1 || req.Rating > 5:
		return nil, invalid("rating must be between 1 and 5")
	case len(req.Comment) > model.MaxCommentLength:
		return nil, invalid("comment must be at most %d characters", model.MaxCommentLength)
	}

	var created *model.Rating
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		b, remaining, err := remainingTypes(ctx, tx, raterID, req.BookingID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingCompleted {
			return ErrNotRateable
		}
		if !slices.Contains(rateableTypes(b, raterID), req.RatingType) {
			return invalid("%s cannot be given by this user", req.RatingType)
		}
		if !slices.Contains(remaining, req.RatingType) {
			return ErrAlreadyRated
		}

		r := &model.Rating{
			BookingID: b.ID,
			RaterID:   &raterID,
			Type:      req.RatingType,
			Value:     req.Rating,
			Comment:   req.Comment,
			Anonymous: req.IsAnonymous,
			CreatedAt: s.now(),
		}
		switch req.RatingType {
		case model.RatingItem:
			r.ItemID = &b.ItemID
		case model.RatingBorrowerToOwner:
			r.RateeID = &b.OwnerID
		case model.RatingOwnerToBorrower:
			r.RateeID = &b.BorrowerID
		}

		created, err = store.CreateRating(ctx, tx, r)
		if err != nil {
			return err
		}
		if err := store.MarkBookingRated(ctx, tx, b.ID); err != nil {
			return err
		}

		if r.ItemID != nil {
			avg, count, err := store.ItemRatingAggregate(ctx, tx, *r.ItemID)
			if err != nil {
				return err
			}
			return store.UpdateItemRating(ctx, tx, *r.ItemID, round2(avg), count)
		}
		return s.refreshUserRatings(ctx, tx, *r.RateeID)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("rating submitted", "booking", req.BookingID, "type", req.RatingType, "rater", raterID)
	return created, nil
}

// refreshUserRatings recomputes trust and per-role averages from every
// rating the user received.
func (s *Service) refreshUserRatings(ctx context.Context, q db.DBTX, userID int64) error {
	received, err := store.ListRatingsReceived(ctx, q, userID)
	if err != nil {
		return err
	}

	var summary store.UserRatingSummary
	var borrowerSum, lenderSum int
	inputs := make([]trust.Rating, 0, len(received))
	for _, r := range received {
		inputs = append(inputs, trust.Rating{Value: r.Value, CreatedAt: r.CreatedAt, Verified: true})
		switch r.Type {
		case model.RatingOwnerToBorrower:
			summary.BorrowerRatingCount++
			borrowerSum += r.Value
		case model.RatingBorrowerToOwner:
			summary.LenderRatingCount++
			lenderSum += r.Value
		}
	}
	if summary.BorrowerRatingCount > 0 {
		summary.BorrowerRatingAvg = round2(float64(borrowerSum) / float64(summary.BorrowerRatingCount))
	}
	if summary.LenderRatingCount > 0 {
		summary.LenderRatingAvg = round2(float64(lenderSum) / float64(summary.LenderRatingCount))
	}
	summary.TrustScore = trust.Score(inputs, s.now())

	return store.UpdateUserRatings(ctx, q, userID, summary)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
