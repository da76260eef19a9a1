package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/erazemk/locallend/internal/model"
)

func mustUser(t *testing.T, database *sql.DB, username string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, &model.User{
		Username:     username,
		Name:         username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

func mustCategory(t *testing.T, database *sql.DB, name string) *model.Category {
	t.Helper()
	c, err := CreateCategory(context.Background(), database, name, "", nil)
	if err != nil {
		t.Fatalf("CreateCategory(%s): %v", name, err)
	}
	return c
}

func mustItem(t *testing.T, database *sql.DB, ownerID, categoryID int64, name string) *model.Item {
	t.Helper()
	it, err := CreateItem(context.Background(), database, &model.Item{
		Name:       name,
		CategoryID: categoryID,
		OwnerID:    ownerID,
		Deposit:    20,
	})
	if err != nil {
		t.Fatalf("CreateItem(%s): %v", name, err)
	}
	return it
}

func mustBooking(t *testing.T, database *sql.DB, itemID, borrowerID, ownerID int64, start, end string) *model.Booking {
	t.Helper()
	s, _ := model.ParseDate(start)
	e, _ := model.ParseDate(end)
	b, err := CreateBooking(context.Background(), database, &model.Booking{
		ItemID:       itemID,
		BorrowerID:   borrowerID,
		OwnerID:      ownerID,
		StartDate:    s,
		EndDate:      e,
		DurationDays: s.DaysUntil(e),
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return b
}
