package usecase

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/starcoex/auth-platform/internal/infra/security"
)

func newResetFixture(t *testing.T) (*PasswordResetService, *stubUserStore, *stubActivationStore, *stubPublisher) {
	t.Helper()

	cfg := testConfig()
	users := newStubUserStore()
	activations := newStubActivationStore()
	publisher := &stubPublisher{}

	svc, err := NewPasswordResetService(cfg, users, activations, testSigner(t, cfg), nil, publisher, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPasswordResetService: %v", err)
	}
	return svc, users, activations, publisher
}

func TestRequestResetUnknownEmailNondisclosing(t *testing.T) {
	svc, _, _, publisher := newResetFixture(t)

	result := svc.RequestReset(context.Background(), "nobody@example.com")
	if !result.OK {
		t.Fatalf("expected success response, got %s", result.Error)
	}
	if result.Payload.Message != "if the account exists, a reset link has been sent" {
		t.Fatalf("Message = %q", result.Payload.Message)
	}
	if len(publisher.resets) != 0 {
		t.Fatal("no event should be published for an unknown email")
	}
}

func TestResetPasswordFlow(t *testing.T) {
	svc, users, activations, publisher := newResetFixture(t)
	principal := seedPrincipal(t, users, "user@example.com", true)
	hash := "stale-refresh-hash"
	users.users[principal.ID].RefreshTokenHash = &hash

	request := svc.RequestReset(context.Background(), "User@Example.com")
	if !request.OK {
		t.Fatalf("RequestReset failed: %s", request.Error)
	}
	if len(publisher.resets) != 1 {
		t.Fatalf("reset events = %d, want 1", len(publisher.resets))
	}
	token := publisher.resets[0].ResetToken

	const newPassword = "Br1ght-Copper-Kettle"
	result := svc.ResetPassword(context.Background(), token, newPassword)
	if !result.OK {
		t.Fatalf("ResetPassword failed: %s", result.Error)
	}

	stored := users.users[principal.ID]
	ok, err := security.VerifyPassword(newPassword, stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("new password does not verify: ok=%v err=%v", ok, err)
	}
	if ok, _ := security.VerifyPassword(testPassword, stored.PasswordHash); ok {
		t.Fatal("old password still verifies")
	}
	if stored.RefreshTokenHash != nil {
		t.Fatal("rotation state not cleared by reset")
	}
	if activations.records[principal.ID].ActivationToken != nil {
		t.Fatal("reset artifacts not consumed")
	}

	if replay := svc.ResetPassword(context.Background(), token, "Another-Val1d-Phrase"); replay.OK {
		t.Fatal("consumed reset token replayed")
	}
}

func TestResetPasswordRejectsWeakPassword(t *testing.T) {
	svc, users, _, publisher := newResetFixture(t)
	seedPrincipal(t, users, "user@example.com", true)

	if result := svc.RequestReset(context.Background(), "user@example.com"); !result.OK {
		t.Fatalf("RequestReset failed: %s", result.Error)
	}
	token := publisher.resets[0].ResetToken

	result := svc.ResetPassword(context.Background(), token, "short")
	if result.OK {
		t.Fatal("weak password accepted")
	}

	// A policy rejection must not consume the artifact.
	if retry := svc.ResetPassword(context.Background(), token, "Br1ght-Copper-Kettle"); !retry.OK {
		t.Fatalf("retry after policy failure rejected: %s", retry.Error)
	}
}

func TestResetPasswordRejectsSamePassword(t *testing.T) {
	svc, users, _, publisher := newResetFixture(t)
	seedPrincipal(t, users, "user@example.com", true)

	if result := svc.RequestReset(context.Background(), "user@example.com"); !result.OK {
		t.Fatalf("RequestReset failed: %s", result.Error)
	}
	token := publisher.resets[0].ResetToken

	result := svc.ResetPassword(context.Background(), token, testPassword)
	if result.OK {
		t.Fatal("unchanged password accepted")
	}
	if result.Error != "new password must be different from current password" {
		t.Fatalf("Error = %q", result.Error)
	}
}

func TestResetPasswordInvalidToken(t *testing.T) {
	svc, users, _, publisher := newResetFixture(t)
	seedPrincipal(t, users, "user@example.com", true)

	if result := svc.ResetPassword(context.Background(), "garbage", "Br1ght-Copper-Kettle"); result.OK {
		t.Fatal("garbage token accepted")
	}

	// A second request invalidates the first token.
	if result := svc.RequestReset(context.Background(), "user@example.com"); !result.OK {
		t.Fatalf("RequestReset failed: %s", result.Error)
	}
	stale := publisher.resets[0].ResetToken
	if result := svc.RequestReset(context.Background(), "user@example.com"); !result.OK {
		t.Fatalf("RequestReset failed: %s", result.Error)
	}

	result := svc.ResetPassword(context.Background(), stale, "Br1ght-Copper-Kettle")
	if result.OK {
		t.Fatal("superseded reset token accepted")
	}
	if result.Error != "invalid or expired reset token" {
		t.Fatalf("Error = %q", result.Error)
	}
}

func TestChangePasswordFlow(t *testing.T) {
	svc, users, _, _ := newResetFixture(t)
	principal := seedPrincipal(t, users, "user@example.com", true)
	hash := "stale-refresh-hash"
	users.users[principal.ID].RefreshTokenHash = &hash

	const newPassword = "Br1ght-Copper-Kettle"
	result := svc.ChangePassword(context.Background(), principal.ID, testPassword, newPassword)
	if !result.OK {
		t.Fatalf("ChangePassword failed: %s", result.Error)
	}
	if result.Payload.Message != "password updated" {
		t.Fatalf("Message = %q", result.Payload.Message)
	}

	stored := users.users[principal.ID]
	ok, err := security.VerifyPassword(newPassword, stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("new password does not verify: ok=%v err=%v", ok, err)
	}
	if ok, _ := security.VerifyPassword(testPassword, stored.PasswordHash); ok {
		t.Fatal("old password still verifies")
	}
	if stored.RefreshTokenHash != nil {
		t.Fatal("rotation state not cleared by password change")
	}
}

func TestChangePasswordWrongCurrentPassword(t *testing.T) {
	svc, users, _, _ := newResetFixture(t)
	principal := seedPrincipal(t, users, "user@example.com", true)

	result := svc.ChangePassword(context.Background(), principal.ID, "Wr0ng-Current-Phrase", "Br1ght-Copper-Kettle")
	if result.OK {
		t.Fatal("wrong current password accepted")
	}
	if result.Error != "current password is incorrect" {
		t.Fatalf("Error = %q", result.Error)
	}
	if ok, _ := security.VerifyPassword(testPassword, users.users[principal.ID].PasswordHash); !ok {
		t.Fatal("stored password changed despite failed verification")
	}

	// Unknown principals look like a credential mismatch.
	if result := svc.ChangePassword(context.Background(), "missing-id", testPassword, "Br1ght-Copper-Kettle"); result.OK || result.Error != "current password is incorrect" {
		t.Fatalf("unknown principal result = %+v", result)
	}
}

func TestChangePasswordRejectsWeakAndSamePassword(t *testing.T) {
	svc, users, _, _ := newResetFixture(t)
	principal := seedPrincipal(t, users, "user@example.com", true)

	weak := svc.ChangePassword(context.Background(), principal.ID, testPassword, "password")
	if weak.OK {
		t.Fatal("weak password accepted")
	}

	same := svc.ChangePassword(context.Background(), principal.ID, testPassword, testPassword)
	if same.OK {
		t.Fatal("unchanged password accepted")
	}
	if same.Error != "new password must be different from current password" {
		t.Fatalf("Error = %q", same.Error)
	}

	if ok, _ := security.VerifyPassword(testPassword, users.users[principal.ID].PasswordHash); !ok {
		t.Fatal("stored password changed despite rejection")
	}
}
