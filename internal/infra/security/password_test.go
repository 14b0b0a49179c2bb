package security

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Sup3r-Secret-Value")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.Contains(hash, ":") {
		t.Fatalf("hash %q missing salt separator", hash)
	}

	ok, err := VerifyPassword("Sup3r-Secret-Value", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatal("correct password rejected")
	}

	ok, err = VerifyPassword("wrong-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Fatal("wrong password accepted")
	}
}

func TestHashPasswordSaltsEachCall(t *testing.T) {
	first, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	second, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password should differ")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	if _, err := VerifyPassword("whatever", "no-separator"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
	if _, err := VerifyPassword("whatever", "!!!:???"); err == nil {
		t.Fatal("expected error for undecodable hash")
	}
}

func TestVerifyPasswordEmptyInputs(t *testing.T) {
	ok, err := VerifyPassword("", "salt:hash")
	if err != nil || ok {
		t.Fatalf("empty password: ok=%v err=%v", ok, err)
	}
	ok, err = VerifyPassword("password", "")
	if err != nil || ok {
		t.Fatalf("empty hash: ok=%v err=%v", ok, err)
	}
}
