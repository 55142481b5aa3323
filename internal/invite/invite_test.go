package invite

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	iss := NewIssuer([]byte("test-secret"), time.Hour)

	token, err := iss.Issue(42, "bea@example.com", "member")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := iss.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.HouseholdID != 42 {
		t.Errorf("HouseholdID = %d, want 42", claims.HouseholdID)
	}
	if claims.Email != "bea@example.com" {
		t.Errorf("Email = %q, want bea@example.com", claims.Email)
	}
	if claims.Role != "member" {
		t.Errorf("Role = %q, want member", claims.Role)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	iss := NewIssuer([]byte("secret-a"), time.Hour)
	other := NewIssuer([]byte("secret-b"), time.Hour)

	token, err := iss.Issue(1, "x@example.com", "member")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	iss := NewIssuer([]byte("secret"), -time.Minute)

	token, err := iss.Issue(1, "x@example.com", "member")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := iss.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	iss := NewIssuer([]byte("secret"), time.Hour)
	if _, err := iss.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
