package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/locallend/internal/db"
	"github.com/erazemk/locallend/internal/model"
)

const categorySelect = `SELECT c.id, c.name, c.description, c.parent_id, c.active, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM items i WHERE i.category_id = c.id AND i.deleted_at IS NULL) AS item_count,
	EXISTS (SELECT 1 FROM categories s WHERE s.parent_id = c.id AND s.active = 1) AS has_subcategories
	FROM categories c`

func scanCategory(row rowScanner) (*model.Category, error) {
	c := &model.Category{}
	var parentID sql.NullInt64
	err := row.Scan(&c.ID, &c.Name, &c.Description, &parentID, &c.Active, &c.CreatedAt, &c.UpdatedAt,
		&c.ItemCount, &c.HasSubcategories)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		c.ParentID = &parentID.Int64
	}
	return c, nil
}

func queryCategories(ctx context.Context, q db.DBTX, query string, args ...any) ([]model.Category, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// CreateCategory creates a category, optionally below a parent.
func CreateCategory(ctx context.Context, q db.DBTX, name, description string, parentID *int64) (*model.Category, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO categories (name, description, parent_id) VALUES (?, ?, ?)`,
		name, description, parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting category id: %w", err)
	}

	return GetCategory(ctx, q, id)
}

// GetCategory returns an active category by ID.
func GetCategory(ctx context.Context, q db.DBTX, id int64) (*model.Category, error) {
	c, err := scanCategory(q.QueryRowContext(ctx,
		categorySelect+` WHERE c.id = ? AND c.active = 1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return c, nil
}

// CategoryNameExists reports whether a category name is taken, ignoring case.
func CategoryNameExists(ctx context.Context, q db.DBTX, name string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE lower(name) = lower(?)`, name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking category name: %w", err)
	}
	return count > 0, nil
}

// ListCategories returns active categories in the given sort order.
// Unknown sort keys fall back to ordering by name.
func ListCategories(ctx context.Context, q db.DBTX, sort string, rootOnly bool) ([]model.Category, error) {
	query := categorySelect + ` WHERE c.active = 1`
	if rootOnly {
		query += ` AND c.parent_id IS NULL`
	}
	return queryCategories(ctx, q, query+categoryOrder(sort))
}

// SearchCategories matches active categories by name, ignoring case.
func SearchCategories(ctx context.Context, q db.DBTX, term string) ([]model.Category, error) {
	return queryCategories(ctx, q,
		categorySelect+` WHERE c.active = 1 AND c.name LIKE '%' || ? || '%' ESCAPE '\'`+categoryOrder(model.CategorySortName),
		escapeLike(term))
}

// ListSubcategories returns the active children of a category.
func ListSubcategories(ctx context.Context, q db.DBTX, parentID int64) ([]model.Category, error) {
	return queryCategories(ctx, q,
		categorySelect+` WHERE c.active = 1 AND c.parent_id = ?`+categoryOrder(model.CategorySortName),
		parentID)
}

func categoryOrder(sort string) string {
	switch sort {
	case model.CategorySortNameDesc:
		return ` ORDER BY c.name COLLATE NOCASE DESC`
	case model.CategorySortCreated:
		return ` ORDER BY c.created_at DESC, c.id DESC`
	case model.CategorySortPopular:
		return ` ORDER BY item_count DESC, c.name COLLATE NOCASE`
	default:
		return ` ORDER BY c.name COLLATE NOCASE`
	}
}
