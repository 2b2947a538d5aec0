package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	userID := "user-123"

	tok, err := GenerateToken(userID, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	gotUserID, err := GetUserIDFromToken(tok, secret)
	if err != nil {
		t.Fatalf("GetUserIDFromToken error: %v", err)
	}
	if gotUserID != userID {
		t.Fatalf("userID mismatch: got %q want %q", gotUserID, userID)
	}
}

func TestGetUserIDFromToken_LegacyUserIDClaim(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		UserID:           "legacy",
	}).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}

	got, err := GetUserIDFromToken(tok, secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "legacy" {
		t.Fatalf("got %q", got)
	}
}

func TestGetUserIDFromToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	userID := "u1"

	tok, err := GenerateToken(userID, secret, -1*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = GetUserIDFromToken(tok, secret)
	if err == nil {
		t.Fatalf("expected error for expired token, got nil")
	}
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestGetUserIDFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	userID := "u2"
	tok, err := GenerateToken(userID, []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = GetUserIDFromToken(tok, []byte("wrong-secret"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestGetUserIDFromToken_NoSubject(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("", []byte("k"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := GetUserIDFromToken(tok, []byte("k")); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestGetUserIDFromToken_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := GetUserIDFromToken("not.a.jwt", []byte("k"))
	if err == nil {
		t.Fatalf("expected error for malformed token, got nil")
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"Bearer   ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
