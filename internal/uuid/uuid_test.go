package uuid

import "testing"

// TestNew verifies generated ids are valid v4 and unique.
func TestNew(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New()
		if !IsValid(id) {
			t.Fatalf("New() produced invalid UUID: %q", id)
		}
		if seen[id] {
			t.Fatalf("New() produced duplicate UUID: %q", id)
		}
		seen[id] = true
	}
}

// TestIsValid verifies v4 format checking.
func TestIsValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"550e8400-e29b-41d4-a716-446655440000", true},
		{"550E8400-E29B-41D4-A716-446655440000", true},
		{"550e8400-e29b-11d4-a716-446655440000", false}, // v1, not v4
		{"550e8400-e29b-41d4-c716-446655440000", false}, // bad variant
		{"not-a-uuid", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValid(tt.in); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestValidate verifies the error form.
func TestValidate(t *testing.T) {
	if err := Validate(New()); err != nil {
		t.Errorf("Validate failed for generated UUID: %v", err)
	}
	if err := Validate("bogus"); err == nil {
		t.Error("Expected error for invalid UUID")
	}
}
