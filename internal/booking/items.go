package booking

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/erazemk/locallend/internal/db"
	"github.com/erazemk/locallend/internal/model"
	"github.com/erazemk/locallend/internal/store"
)

// loadOwnedItem returns a live item that userID owns, or any live item for admins.
func loadOwnedItem(ctx context.Context, q db.DBTX, userID int64, admin bool, itemID int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, q, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil || item.DeletedAt != nil {
		return nil, ErrItemNotFound
	}
	if !admin && item.OwnerID != userID {
		return nil, ErrForbidden
	}
	return item, nil
}

// SetItemStatus lets an owner toggle an item between AVAILABLE and
// UNAVAILABLE. BORROWED is managed by bookings and cannot be set or left
// manually.
func (s *Service) SetItemStatus(ctx context.Context, userID int64, admin bool, itemID int64, status string) (*model.Item, error) {
	if status != model.ItemStatusAvailable && status != model.ItemStatusUnavailable {
		return nil, invalid("status must be %s or %s", model.ItemStatusAvailable, model.ItemStatusUnavailable)
	}

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		item, err := loadOwnedItem(ctx, tx, userID, admin, itemID)
		if err != nil {
			return err
		}
		if item.Status == model.ItemStatusBorrowed {
			return ErrItemUnavailable
		}
		return store.SetItemStatus(ctx, tx, itemID, status)
	})
	if err != nil {
		return nil, err
	}
	return store.GetItem(ctx, s.db, itemID)
}

// DeleteItem soft-deletes an item that has no open bookings.
func (s *Service) DeleteItem(ctx context.Context, userID int64, admin bool, itemID int64) error {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := loadOwnedItem(ctx, tx, userID, admin, itemID); err != nil {
			return err
		}
		open, err := store.HasOpenBookings(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if open {
			return ErrItemHasBookings
		}
		return store.DeleteItem(ctx, tx, itemID)
	})
	if err != nil {
		return err
	}
	slog.Info("item deleted", "item", itemID, "user", userID)
	return nil
}

// Availability returns the reserved date ranges of an item from today on.
func (s *Service) Availability(ctx context.Context, itemID int64) ([]model.DateRange, error) {
	item, err := store.GetItem(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil || item.DeletedAt != nil {
		return nil, ErrItemNotFound
	}
	ranges, err := store.ListReservedRanges(ctx, s.db, itemID, s.Today())
	if err != nil {
		return nil, err
	}
	if ranges == nil {
		ranges = []model.DateRange{}
	}
	return ranges, nil
}
