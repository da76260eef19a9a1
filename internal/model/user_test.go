package model

import "testing"

func TestRoles(t *testing.T) {
	tests := []struct {
		role, minimum string
		atLeast       bool
	}{
		{RoleAdmin, RoleUser, true},
		{RoleUser, RoleUser, true},
		{RoleUser, RoleAdmin, false},
		{"user", RoleUser, false},
		{RoleAdmin, "OWNER", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := RoleAtLeast(tt.role, tt.minimum); got != tt.atLeast {
			t.Errorf("RoleAtLeast(%q, %q) = %v", tt.role, tt.minimum, got)
		}
	}

	for role, valid := range map[string]bool{RoleAdmin: true, RoleUser: true, "admin": false, "": false} {
		if ValidRole(role) != valid {
			t.Errorf("ValidRole(%q) != %v", role, valid)
		}
	}
}

func TestAccountFieldRules(t *testing.T) {
	passwords := map[string]bool{
		"":                 false,
		"1234567":          false,
		"12345678":         true,
		"borrow-my-ladder": true,
	}
	for pw, ok := range passwords {
		if err := ValidatePassword(pw); (err == nil) != ok {
			t.Errorf("ValidatePassword(%q) = %v", pw, err)
		}
	}

	usernames := map[string]bool{
		"ab":                    false,
		"bob":                   true,
		"neighbourhood-lender":  true,
		"neighbourhood-lender1": false,
	}
	for name, ok := range usernames {
		if err := ValidateUsername(name); (err == nil) != ok {
			t.Errorf("ValidateUsername(%q) = %v", name, err)
		}
	}
}
