package validation

import (
	"strings"
	"testing"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{
			name:  "simple address",
			email: "ann@x.com",
			valid: true,
		},
		{
			name:  "address with plus",
			email: "user+tag@example.org",
			valid: true,
		},
		{
			name:  "mixed case preserved",
			email: "Ann@Example.COM",
			valid: true,
		},
		{
			name:  "missing at sign",
			email: "annx.com",
			valid: false,
		},
		{
			name:  "missing domain dot",
			email: "ann@localhost",
			valid: false,
		},
		{
			name:  "contains space",
			email: "ann @x.com",
			valid: false,
		},
		{
			name:  "empty string",
			email: "",
			valid: false,
		},
		{
			name:  "too long",
			email: strings.Repeat("a", 250) + "@x.com",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidEmail(tt.email)
			if got != tt.valid {
				t.Fatalf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.valid)
			}
		})
	}
}
