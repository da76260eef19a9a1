package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erazemk/locallend/internal/model"
)

func TestIssueAndVerify(t *testing.T) {
	now := time.Now()
	token, issued, err := Issue("test-secret", 7, "ana", model.RoleUser, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Verify("test-secret", token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	id, err := claims.UserID()
	if err != nil || id != 7 {
		t.Errorf("UserID() = %d, %v; want 7", id, err)
	}
	if claims.Username != "ana" || claims.Role != model.RoleUser {
		t.Errorf("unexpected claims %+v", claims)
	}
	if claims.ID == "" || claims.ID != issued.ID {
		t.Errorf("JTI = %q, issued %q", claims.ID, issued.ID)
	}
	if diff := claims.ExpiresAt.Sub(now.Add(TokenLifetime)); diff > time.Second || diff < -time.Second {
		t.Errorf("expiry off by %v", diff)
	}
}

func TestIssueUniqueJTI(t *testing.T) {
	_, a, _ := Issue("s", 1, "a", model.RoleUser, time.Now())
	_, b, _ := Issue("s", 1, "a", model.RoleUser, time.Now())
	if a.ID == b.ID {
		t.Error("expected distinct token IDs")
	}
}

func TestVerifyRejects(t *testing.T) {
	good, _, _ := Issue("secret1", 1, "admin", model.RoleAdmin, time.Now())
	expired, _, _ := Issue("secret1", 1, "admin", model.RoleAdmin, time.Now().Add(-2*TokenLifetime))

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	foreignToken, _ := foreign.SignedString([]byte("secret1"))

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	noSubjectToken, _ := noSubject.SignedString([]byte("secret1"))

	tests := map[string]string{
		"wrong secret": good,
		"expired":      expired,
		"garbage":      "not-a-token",
		"other issuer": foreignToken,
		"no subject":   noSubjectToken,
	}
	for name, token := range tests {
		secret := "secret1"
		if name == "wrong secret" {
			secret = "secret2"
		}
		if _, err := Verify(secret, token); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "wrong horse") {
		t.Error("expected mismatch")
	}
}
