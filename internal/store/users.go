package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/locallend/internal/db"
	"github.com/erazemk/locallend/internal/model"
)

const userColumns = `id, username, name, email, phone_number, password_hash, role, trust_score,
	borrower_rating_count, borrower_rating_avg, lender_rating_count, lender_rating_avg,
	created_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.PhoneNumber, &u.PasswordHash, &u.Role, &u.TrustScore,
		&u.BorrowerRatingCount, &u.BorrowerRatingAvg, &u.LenderRatingCount, &u.LenderRatingAvg,
		&u.CreatedAt, &u.DeletedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a user. Role defaults to USER.
func CreateUser(ctx context.Context, q db.DBTX, u *model.User) (*model.User, error) {
	role := u.Role
	if role == "" {
		role = model.RoleUser
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO users (username, name, email, phone_number, password_hash, role, trust_score)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Name, strings.ToLower(u.Email), u.PhoneNumber, u.PasswordHash, role, model.DefaultTrustScore,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, q, id)
}

// GetUser returns a user by ID, including soft-deleted users.
func GetUser(ctx context.Context, q db.DBTX, id int64) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByLogin returns the active user whose username or email matches login.
func GetUserByLogin(ctx context.Context, q db.DBTX, login string) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE deleted_at IS NULL AND (username = ? OR lower(email) = lower(?))`,
		login, login))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by login: %w", err)
	}
	return u, nil
}

// UserExists reports whether an active user already uses the username or email.
func UserExists(ctx context.Context, q db.DBTX, username, email string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users
		 WHERE deleted_at IS NULL AND (username = ? OR lower(email) = lower(?))`,
		username, email,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking user existence: %w", err)
	}
	return count > 0, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, q db.DBTX) ([]model.User, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserRole changes a user's role.
func UpdateUserRole(ctx context.Context, q db.DBTX, id int64, role string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`,
		role, id,
	)
	if err != nil {
		return fmt.Errorf("updating user role: %w", err)
	}
	return nil
}

// UpdateUserProfile changes a user's contact details.
func UpdateUserProfile(ctx context.Context, q db.DBTX, id int64, name, email, phone string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, phone_number = ? WHERE id = ? AND deleted_at IS NULL`,
		name, strings.ToLower(email), phone, id,
	)
	if err != nil {
		return fmt.Errorf("updating user profile: %w", err)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, q db.DBTX, id int64, passwordHash string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// UserRatingSummary holds the aggregates derived from received ratings.
type UserRatingSummary struct {
	TrustScore          float64
	BorrowerRatingCount int
	BorrowerRatingAvg   float64
	LenderRatingCount   int
	LenderRatingAvg     float64
}

// UpdateUserRatings stores recomputed trust and rating aggregates.
func UpdateUserRatings(ctx context.Context, q db.DBTX, id int64, s UserRatingSummary) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET trust_score = ?,
		        borrower_rating_count = ?, borrower_rating_avg = ?,
		        lender_rating_count = ?, lender_rating_avg = ?
		 WHERE id = ?`,
		s.TrustScore, s.BorrowerRatingCount, s.BorrowerRatingAvg, s.LenderRatingCount, s.LenderRatingAvg, id,
	)
	if err != nil {
		return fmt.Errorf("updating user ratings: %w", err)
	}
	return nil
}

// DeleteUser soft-deletes a user.
func DeleteUser(ctx context.Context, q db.DBTX, id int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}
