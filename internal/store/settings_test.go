package store

import (
	"context"
	"testing"

	"github.com/erazemk/locallend/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}

	stored, ok, err := GetSetting(ctx, database, "jwt_secret")
	if err != nil || !ok || stored != secret1 {
		t.Errorf("GetSetting = %q, %v, %v", stored, ok, err)
	}

	_, ok, err = GetSetting(ctx, database, "missing")
	if err != nil || ok {
		t.Errorf("expected missing setting, got ok=%v err=%v", ok, err)
	}
}
