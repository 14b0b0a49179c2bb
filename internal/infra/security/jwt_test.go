package security

import (
	"errors"
	"testing"
	"time"
)

func newTestSigner(t *testing.T) *TokenSigner {
	t.Helper()

	signer, err := NewTokenSigner(SignerConfig{
		Issuer: "auth-test",
		Secrets: map[TokenPurpose]string{
			PurposeAccess:     "access-secret",
			PurposeRefresh:    "refresh-secret",
			PurposeActivation: "activation-secret",
			PurposeTwoFactor:  "two-factor-secret",
		},
	})
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	return signer
}

func TestNewTokenSignerRequiresIssuer(t *testing.T) {
	_, err := NewTokenSigner(SignerConfig{
		Secrets: map[TokenPurpose]string{PurposeAccess: "secret"},
	})
	if err == nil {
		t.Fatal("expected error for missing issuer")
	}
}

func TestNewTokenSignerRejectsSharedSecrets(t *testing.T) {
	_, err := NewTokenSigner(SignerConfig{
		Issuer: "auth-test",
		Secrets: map[TokenPurpose]string{
			PurposeAccess:  "same-secret",
			PurposeRefresh: "same-secret",
		},
	})
	if err == nil {
		t.Fatal("expected error for duplicate secrets")
	}
}

func TestNewTokenSignerRejectsEmptySecret(t *testing.T) {
	_, err := NewTokenSigner(SignerConfig{
		Issuer: "auth-test",
		Secrets: map[TokenPurpose]string{
			PurposeAccess: "   ",
		},
	})
	if err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	signer := newTestSigner(t)

	token, expiry, err := signer.Issue(PurposeTwoFactor, IssueOptions{
		UserID:  "user-1",
		TTL:     5 * time.Minute,
		Pending: true,
		Code:    "123456",
		JTI:     "challenge-1",
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected a signed token")
	}
	if time.Until(expiry) <= 0 {
		t.Fatalf("expiry %v not in the future", expiry)
	}

	claims, err := signer.Verify(token, PurposeTwoFactor)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("UserID = %q, want user-1", claims.UserID)
	}
	if !claims.Pending {
		t.Fatal("Pending flag not preserved")
	}
	if claims.Code != "123456" {
		t.Fatalf("Code = %q, want 123456", claims.Code)
	}
	if claims.ID != "challenge-1" {
		t.Fatalf("JTI = %q, want challenge-1", claims.ID)
	}
}

func TestVerifyRejectsCrossPurpose(t *testing.T) {
	signer := newTestSigner(t)
	purposes := []TokenPurpose{PurposeAccess, PurposeRefresh, PurposeActivation, PurposeTwoFactor}

	for _, minted := range purposes {
		token, _, err := signer.Issue(minted, IssueOptions{UserID: "user-1", TTL: time.Minute})
		if err != nil {
			t.Fatalf("Issue(%s): %v", minted, err)
		}

		for _, presented := range purposes {
			if presented == minted {
				continue
			}
			if _, err := signer.Verify(token, presented); !errors.Is(err, ErrTokenInvalid) {
				t.Fatalf("Verify(%s token as %s) = %v, want ErrTokenInvalid", minted, presented, err)
			}
		}
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	signer := newTestSigner(t)

	token, _, err := signer.Issue(PurposeAccess, IssueOptions{
		UserID:   "user-1",
		TTL:      time.Minute,
		IssuedAt: time.Now().Add(-2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := signer.Verify(token, PurposeAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Verify = %v, want ErrTokenExpired", err)
	}
}

func TestVerifyRejectsForeignIssuer(t *testing.T) {
	signer := newTestSigner(t)

	other, err := NewTokenSigner(SignerConfig{
		Issuer:  "someone-else",
		Secrets: map[TokenPurpose]string{PurposeAccess: "access-secret"},
	})
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}

	token, _, err := other.Issue(PurposeAccess, IssueOptions{UserID: "user-1", TTL: time.Minute})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := signer.Verify(token, PurposeAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Verify = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	signer := newTestSigner(t)

	for _, token := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := signer.Verify(token, PurposeAccess); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("Verify(%q) = %v, want ErrTokenInvalid", token, err)
		}
	}
}

func TestIssueValidation(t *testing.T) {
	signer := newTestSigner(t)

	if _, _, err := signer.Issue(PurposeAccess, IssueOptions{UserID: "", TTL: time.Minute}); err == nil {
		t.Fatal("expected error for missing user id")
	}
	if _, _, err := signer.Issue(PurposeAccess, IssueOptions{UserID: "user-1", TTL: 0}); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
	if _, _, err := signer.Issue(TokenPurpose("bogus"), IssueOptions{UserID: "user-1", TTL: time.Minute}); !errors.Is(err, ErrUnknownPurpose) {
		t.Fatalf("Issue(bogus) = %v, want ErrUnknownPurpose", err)
	}
}
