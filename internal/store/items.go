package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/locallend/internal/db"
	"github.com/erazemk/locallend/internal/model"
)

const itemSelect = `SELECT i.id, i.name, i.description, i.category_id, COALESCE(c.name, ''), i.condition, i.status,
	i.deposit, i.owner_id, COALESCE(u.username, ''), i.average_rating, i.rating_count,
	i.created_at, i.updated_at, i.deleted_at
	FROM items i
	LEFT JOIN categories c ON c.id = i.category_id
	LEFT JOIN users u ON u.id = i.owner_id`

func scanItem(row rowScanner) (*model.Item, error) {
	it := &model.Item{}
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.CategoryID, &it.CategoryName, &it.Condition, &it.Status,
		&it.Deposit, &it.OwnerID, &it.OwnerUsername, &it.AverageRating, &it.RatingCount,
		&it.CreatedAt, &it.UpdatedAt, &it.DeletedAt)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// ImageURL is the API path serving an item image.
func ImageURL(itemID int64, key string) string {
	return fmt.Sprintf("/api/items/%d/images/%s", itemID, key)
}

// attachImages fills Images for each item. Rows of the item query must be
// closed before calling, since the pool holds a single connection.
func attachImages(ctx context.Context, q db.DBTX, items []model.Item) error {
	for i := range items {
		keys, err := ListItemImageKeys(ctx, q, items[i].ID)
		if err != nil {
			return err
		}
		items[i].Images = make([]string, 0, len(keys))
		for _, k := range keys {
			items[i].Images = append(items[i].Images, ImageURL(items[i].ID, k))
		}
	}
	return nil
}

// CreateItem creates a new item owned by it.OwnerID.
func CreateItem(ctx context.Context, q db.DBTX, it *model.Item) (*model.Item, error) {
	condition := it.Condition
	if condition == "" {
		condition = model.ConditionGood
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO items (name, description, category_id, condition, status, deposit, owner_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		it.Name, it.Description, it.CategoryID, condition, model.ItemStatusAvailable, it.Deposit, it.OwnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, q, id)
}

// GetItem returns an item by ID, including soft-deleted items.
func GetItem(ctx context.Context, q db.DBTX, id int64) (*model.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx, itemSelect+` WHERE i.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	items := []model.Item{*it}
	if err := attachImages(ctx, q, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// ItemFilter selects and orders items for a catalog listing.
type ItemFilter struct {
	Query      string
	CategoryID int64
	Condition  string
	Status     string
	OwnerID    int64
	Sort       string
	Page       int
	Size       int
}

// SearchItems returns one page of non-deleted items matching f and the total
// number of matches.
func SearchItems(ctx context.Context, q db.DBTX, f ItemFilter) ([]model.Item, int64, error) {
	var where []string
	var args []any

	where = append(where, "i.deleted_at IS NULL")
	if f.Query != "" {
		where = append(where, `(i.name LIKE '%' || ? || '%' ESCAPE '\' OR i.description LIKE '%' || ? || '%' ESCAPE '\')`)
		term := escapeLike(f.Query)
		args = append(args, term, term)
	}
	if f.CategoryID != 0 {
		where = append(where, "i.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Condition != "" {
		where = append(where, "i.condition = ?")
		args = append(args, f.Condition)
	}
	if f.Status != "" {
		where = append(where, "i.status = ?")
		args = append(args, f.Status)
	}
	if f.OwnerID != 0 {
		where = append(where, "i.owner_id = ?")
		args = append(args, f.OwnerID)
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM items i`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting items: %w", err)
	}

	size := f.Size
	if size <= 0 {
		size = model.DefaultPageSize
	}
	query := itemSelect + cond + itemOrder(f.Sort) + ` LIMIT ? OFFSET ?`
	args = append(args, size, f.Page*size)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("searching items: %w", err)
	}

	var items []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *it)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, 0, fmt.Errorf("iterating items: %w", err)
	}

	if err := attachImages(ctx, q, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func itemOrder(sort string) string {
	switch sort {
	case model.SortName:
		return ` ORDER BY i.name COLLATE NOCASE, i.id`
	case model.SortTopRated:
		return ` ORDER BY i.average_rating DESC, i.rating_count DESC, i.id DESC`
	default:
		return ` ORDER BY i.created_at DESC, i.id DESC`
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// UpdateItem updates an item's listing details.
func UpdateItem(ctx context.Context, q db.DBTX, it *model.Item) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, category_id = ?, condition = ?, deposit = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		it.Name, it.Description, it.CategoryID, it.Condition, it.Deposit, it.ID,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// SetItemStatus sets an item's availability status.
func SetItemStatus(ctx context.Context, q db.DBTX, id int64, status string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("setting item status: %w", err)
	}
	return nil
}

// UpdateItemRating stores an item's recomputed rating aggregate.
func UpdateItemRating(ctx context.Context, q db.DBTX, id int64, average float64, count int) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET average_rating = ?, rating_count = ? WHERE id = ?`,
		average, count, id,
	)
	if err != nil {
		return fmt.Errorf("updating item rating: %w", err)
	}
	return nil
}

// DeleteItem soft-deletes an item.
func DeleteItem(ctx context.Context, q db.DBTX, id int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}
