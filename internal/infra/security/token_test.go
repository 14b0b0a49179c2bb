package security

import "testing"

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(6)
	if err != nil {
		t.Fatalf("GenerateNumericCode: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("len = %d, want 6", len(code))
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("non-digit %q in code %s", r, code)
		}
	}

	if _, err := GenerateNumericCode(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestHashTokenAndVerify(t *testing.T) {
	hash := HashToken("refresh-token-value")
	if len(hash) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(hash))
	}
	if hash != HashToken("refresh-token-value") {
		t.Fatal("hash is not deterministic")
	}

	if !VerifyTokenHash("refresh-token-value", hash) {
		t.Fatal("matching token rejected")
	}
	if VerifyTokenHash("other-token", hash) {
		t.Fatal("mismatched token accepted")
	}
	if VerifyTokenHash("", hash) {
		t.Fatal("empty raw token accepted")
	}
	if VerifyTokenHash("refresh-token-value", "") {
		t.Fatal("empty stored hash accepted")
	}
}

func TestGenerateSecureToken(t *testing.T) {
	first, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken: %v", err)
	}
	second, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken: %v", err)
	}
	if first == second {
		t.Fatal("two tokens should differ")
	}
	if _, err := GenerateSecureToken(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}
