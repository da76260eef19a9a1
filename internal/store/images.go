package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/locallend/internal/db"
	"github.com/erazemk/locallend/internal/model"
)

// AddItemImage stores a processed image under key.
func AddItemImage(ctx context.Context, q db.DBTX, itemID int64, key, mime string, data []byte) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO item_images (key, item_id, mime, data) VALUES (?, ?, ?, ?)`,
		key, itemID, mime, data,
	)
	if err != nil {
		return fmt.Errorf("adding item image: %w", err)
	}
	return nil
}

// GetItemImage returns an image of an item, or nil if it does not exist.
func GetItemImage(ctx context.Context, q db.DBTX, itemID int64, key string) (*model.ItemImage, error) {
	img := &model.ItemImage{}
	err := q.QueryRowContext(ctx,
		`SELECT key, item_id, mime, data, created_at FROM item_images WHERE item_id = ? AND key = ?`,
		itemID, key,
	).Scan(&img.Key, &img.ItemID, &img.MIME, &img.Data, &img.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item image: %w", err)
	}
	return img, nil
}

// ListItemImageKeys returns the image keys of an item in upload order.
func ListItemImageKeys(ctx context.Context, q db.DBTX, itemID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT key FROM item_images WHERE item_id = ? ORDER BY created_at, rowid`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing item images: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning item image key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CountItemImages returns how many images an item has.
func CountItemImages(ctx context.Context, q db.DBTX, itemID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM item_images WHERE item_id = ?`, itemID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting item images: %w", err)
	}
	return n, nil
}

// DeleteItemImage removes an image and reports whether it existed.
func DeleteItemImage(ctx context.Context, q db.DBTX, itemID int64, key string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM item_images WHERE item_id = ? AND key = ?`, itemID, key,
	)
	if err != nil {
		return false, fmt.Errorf("deleting item image: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting item image: %w", err)
	}
	return n > 0, nil
}
