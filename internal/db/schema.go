package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Calendar dates are TEXT in YYYY-MM-DD
// form so that range comparisons work lexically.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id                    INTEGER PRIMARY KEY,
    username              TEXT NOT NULL,
    name                  TEXT NOT NULL DEFAULT '',
    email                 TEXT NOT NULL,
    phone_number          TEXT NOT NULL DEFAULT '',
    password_hash         TEXT NOT NULL,
    role                  TEXT NOT NULL DEFAULT 'USER' CHECK (role IN ('ADMIN', 'USER')),
    trust_score           REAL NOT NULL DEFAULT 5.0,
    borrower_rating_count INTEGER NOT NULL DEFAULT 0,
    borrower_rating_avg   REAL NOT NULL DEFAULT 0,
    lender_rating_count   INTEGER NOT NULL DEFAULT 0,
    lender_rating_avg     REAL NOT NULL DEFAULT 0,
    created_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at            DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active
    ON users(lower(email)) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS categories (
    id          INTEGER PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    parent_id   INTEGER REFERENCES categories(id),
    active      INTEGER NOT NULL DEFAULT 1,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name
    ON categories(lower(name));

CREATE TABLE IF NOT EXISTS items (
    id             INTEGER PRIMARY KEY,
    name           TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    category_id    INTEGER NOT NULL REFERENCES categories(id),
    condition      TEXT NOT NULL DEFAULT 'GOOD' CHECK (condition IN ('NEW', 'EXCELLENT', 'GOOD', 'FAIR', 'POOR')),
    status         TEXT NOT NULL DEFAULT 'AVAILABLE' CHECK (status IN ('AVAILABLE', 'UNAVAILABLE', 'BORROWED')),
    deposit        REAL NOT NULL DEFAULT 0 CHECK (deposit >= 0),
    owner_id       INTEGER NOT NULL REFERENCES users(id),
    average_rating REAL NOT NULL DEFAULT 0,
    rating_count   INTEGER NOT NULL DEFAULT 0,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at     DATETIME
);

CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner_id);
CREATE INDEX IF NOT EXISTS idx_items_category ON items(category_id);

CREATE TABLE IF NOT EXISTS item_images (
    key        TEXT PRIMARY KEY,
    item_id    INTEGER NOT NULL REFERENCES items(id),
    mime       TEXT NOT NULL,
    data       BLOB NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_item_images_item ON item_images(item_id);

CREATE TABLE IF NOT EXISTS bookings (
    id                  INTEGER PRIMARY KEY,
    item_id             INTEGER NOT NULL REFERENCES items(id),
    borrower_id         INTEGER NOT NULL REFERENCES users(id),
    owner_id            INTEGER NOT NULL REFERENCES users(id),
    status              TEXT NOT NULL DEFAULT 'PENDING'
                        CHECK (status IN ('PENDING', 'CONFIRMED', 'ACTIVE', 'COMPLETED', 'CANCELLED', 'REJECTED', 'OVERDUE')),
    start_date          TEXT NOT NULL,
    end_date            TEXT NOT NULL,
    duration_days       INTEGER NOT NULL,
    actual_start        DATETIME,
    actual_end          DATETIME,
    booking_notes       TEXT NOT NULL DEFAULT '',
    owner_notes         TEXT NOT NULL DEFAULT '',
    cancellation_reason TEXT NOT NULL DEFAULT '',
    rejection_reason    TEXT NOT NULL DEFAULT '',
    deposit_amount      REAL NOT NULL DEFAULT 0,
    deposit_paid        INTEGER NOT NULL DEFAULT 0,
    is_rated            INTEGER NOT NULL DEFAULT 0,
    confirmed_at        DATETIME,
    cancelled_at        DATETIME,
    rejected_at         DATETIME,
    created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (start_date < end_date)
);

CREATE INDEX IF NOT EXISTS idx_bookings_item_status ON bookings(item_id, status);
CREATE INDEX IF NOT EXISTS idx_bookings_borrower ON bookings(borrower_id);
CREATE INDEX IF NOT EXISTS idx_bookings_owner ON bookings(owner_id);

CREATE TABLE IF NOT EXISTS ratings (
    id           INTEGER PRIMARY KEY,
    booking_id   INTEGER NOT NULL REFERENCES bookings(id),
    rater_id     INTEGER NOT NULL REFERENCES users(id),
    ratee_id     INTEGER REFERENCES users(id),
    item_id      INTEGER REFERENCES items(id),
    rating_type  TEXT NOT NULL CHECK (rating_type IN ('BORROWER_TO_OWNER', 'OWNER_TO_BORROWER', 'ITEM_RATING')),
    value        INTEGER NOT NULL CHECK (value BETWEEN 1 AND 5),
    comment      TEXT NOT NULL DEFAULT '',
    is_anonymous INTEGER NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (booking_id, rater_id, rating_type)
);

CREATE INDEX IF NOT EXISTS idx_ratings_ratee ON ratings(ratee_id);
CREATE INDEX IF NOT EXISTS idx_ratings_item ON ratings(item_id);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
