package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/locallend/internal/db"
	"github.com/erazemk/locallend/internal/model"
)

const ratingSelect = `SELECT r.id, r.booking_id, r.rater_id, COALESCE(u.username, ''), r.ratee_id, r.item_id,
	r.rating_type, r.value, r.comment, r.is_anonymous, r.created_at
	FROM ratings r
	LEFT JOIN users u ON u.id = r.rater_id`

func scanRating(row rowScanner) (*model.Rating, error) {
	r := &model.Rating{}
	var raterID int64
	var rateeID, itemID sql.NullInt64
	err := row.Scan(&r.ID, &r.BookingID, &raterID, &r.RaterUsername, &rateeID, &itemID,
		&r.Type, &r.Value, &r.Comment, &r.Anonymous, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.RaterID = &raterID
	if rateeID.Valid {
		r.RateeID = &rateeID.Int64
	}
	if itemID.Valid {
		r.ItemID = &itemID.Int64
	}
	return r, nil
}

func queryRatings(ctx context.Context, q db.DBTX, query string, args ...any) ([]model.Rating, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing ratings: %w", err)
	}
	defer rows.Close()

	var ratings []model.Rating
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rating: %w", err)
		}
		ratings = append(ratings, *r)
	}
	return ratings, rows.Err()
}

// CreateRating inserts a rating. RaterID must be set; a zero CreatedAt means now.
func CreateRating(ctx context.Context, q db.DBTX, r *model.Rating) (*model.Rating, error) {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO ratings (booking_id, rater_id, ratee_id, item_id, rating_type, value, comment, is_anonymous, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BookingID, *r.RaterID, r.RateeID, r.ItemID, r.Type, r.Value, r.Comment, r.Anonymous, createdAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rating: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting rating id: %w", err)
	}

	return GetRating(ctx, q, id)
}

// GetRating returns a rating by ID.
func GetRating(ctx context.Context, q db.DBTX, id int64) (*model.Rating, error) {
	r, err := scanRating(q.QueryRowContext(ctx, ratingSelect+` WHERE r.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting rating: %w", err)
	}
	return r, nil
}

// RatingTypesGiven returns the rating types a rater already used on a booking.
func RatingTypesGiven(ctx context.Context, q db.DBTX, bookingID, raterID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT rating_type FROM ratings WHERE booking_id = ? AND rater_id = ?`,
		bookingID, raterID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing given rating types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning rating type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// ListRatingsReceived returns user ratings whose ratee is userID, newest first.
func ListRatingsReceived(ctx context.Context, q db.DBTX, userID int64) ([]model.Rating, error) {
	return queryRatings(ctx, q,
		ratingSelect+` WHERE r.ratee_id = ? ORDER BY r.created_at DESC, r.id DESC`, userID)
}

// ListRatingsGiven returns ratings written by userID, newest first.
func ListRatingsGiven(ctx context.Context, q db.DBTX, userID int64) ([]model.Rating, error) {
	return queryRatings(ctx, q,
		ratingSelect+` WHERE r.rater_id = ? ORDER BY r.created_at DESC, r.id DESC`, userID)
}

// ListItemRatings returns the ITEM_RATING entries of an item, newest first.
func ListItemRatings(ctx context.Context, q db.DBTX, itemID int64) ([]model.Rating, error) {
	return queryRatings(ctx, q,
		ratingSelect+` WHERE r.item_id = ? AND r.rating_type = ? ORDER BY r.created_at DESC, r.id DESC`,
		itemID, model.RatingItem)
}

// ItemRatingAggregate returns the average and count of an item's ratings.
func ItemRatingAggregate(ctx context.Context, q db.DBTX, itemID int64) (float64, int, error) {
	var avg float64
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(value), 0), COUNT(*) FROM ratings WHERE item_id = ? AND rating_type = ?`,
		itemID, model.RatingItem,
	).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("aggregating item ratings: %w", err)
	}
	return avg, count, nil
}
