package utils

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Sunshine42")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if cost, err := bcrypt.Cost([]byte(hash)); err != nil || cost != PasswordCost {
		t.Errorf("bcrypt.Cost() = %d, %v; want %d", cost, err, PasswordCost)
	}

	if _, err := HashPassword(strings.Repeat("x", MaxPasswordBytes+1)); !errors.Is(err, bcrypt.ErrPasswordTooLong) {
		t.Errorf("HashPassword(too long) error = %v, want ErrPasswordTooLong", err)
	}
}

func TestPasswordMatches(t *testing.T) {
	hash, err := HashPassword("Sunshine42")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		hash     string
		password string
		want     bool
		wantErr  bool
	}{
		{"match", hash, "Sunshine42", true, false},
		{"mismatch", hash, "sunshine42", false, false},
		{"malformed hash", "not-a-hash", "Sunshine42", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PasswordMatches(tt.hash, tt.password)
			if got != tt.want || (err != nil) != tt.wantErr {
				t.Errorf("PasswordMatches() = %v, %v; want %v, err %v", got, err, tt.want, tt.wantErr)
			}
		})
	}
}
