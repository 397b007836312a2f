package billing

import (
	"strings"
	"testing"
)

func TestGenerateTempPassword(t *testing.T) {
	pw, err := GenerateTempPassword(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pw) != 16 {
		t.Errorf("expected length 16, got %d", len(pw))
	}
	for _, r := range pw {
		if !strings.ContainsRune(passwordAlphabet, r) {
			t.Errorf("character %q is outside the alphabet", r)
		}
	}
}

func TestGenerateTempPassword_DefaultLength(t *testing.T) {
	pw, err := GenerateTempPassword(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pw) != DefaultPasswordLength {
		t.Errorf("expected default length %d, got %d", DefaultPasswordLength, len(pw))
	}
}

func TestGenerateTempPassword_NoAmbiguousCharacters(t *testing.T) {
	for i := 0; i < 50; i++ {
		pw, err := GenerateTempPassword(32)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.ContainsAny(pw, "0O1Il") {
			t.Fatalf("password %q contains an ambiguous character", pw)
		}
	}
}

func TestGenerateTempPassword_Distinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		pw, err := GenerateTempPassword(DefaultPasswordLength)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[pw] {
			t.Fatalf("duplicate password generated: %q", pw)
		}
		seen[pw] = true
	}
}
