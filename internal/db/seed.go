package db

import (
	"context"
	"database/sql"
	"fmt"
)

// DefaultCategory is a category created on first start.
type DefaultCategory struct {
	Name        string
	Description string
}

// DefaultCategories are seeded into an empty categories table.
var DefaultCategories = []DefaultCategory{
	{"Electronics", "Electronic devices, gadgets, and technology items including phones, laptops, cameras, and accessories"},
	{"Tools", "Hand tools, power tools, and equipment for construction, repair, and maintenance work"},
	{"Sports", "Sports equipment, gear, and accessories for various athletic activities and outdoor recreation"},
	{"Books", "Books, magazines, educational materials, and reading resources across all genres and topics"},
	{"Furniture", "Home and office furniture including chairs, tables, storage solutions, and decorative pieces"},
	{"Vehicles", "Cars, motorcycles, bicycles, and other transportation vehicles and related accessories"},
	{"Appliances", "Home appliances, kitchen equipment, and household electrical devices"},
	{"Others", "Miscellaneous items that don't fit into other specific categories"},
}

// SeedCategories inserts DefaultCategories when no category exists yet.
// It returns the number of categories created.
func SeedCategories(ctx context.Context, db *sql.DB) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting categories: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	created := 0
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, c := range DefaultCategories {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO categories (name, description) VALUES (?, ?)`,
				c.Name, c.Description,
			); err != nil {
				return fmt.Errorf("seeding category %q: %w", c.Name, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
