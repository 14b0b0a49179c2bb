package usecase

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func newRegistrationFixture(t *testing.T) (*RegistrationService, *stubUserStore, *stubActivationStore, *stubPublisher) {
	t.Helper()

	cfg := testConfig()
	users := newStubUserStore()
	activations := newStubActivationStore()
	publisher := &stubPublisher{}

	activationSvc, err := NewActivationService(cfg, users, activations, testSigner(t, cfg), publisher, zap.NewNop())
	if err != nil {
		t.Fatalf("NewActivationService: %v", err)
	}
	svc, err := NewRegistrationService(cfg, users, nil, activationSvc, publisher, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRegistrationService: %v", err)
	}
	return svc, users, activations, publisher
}

func TestRegisterCreatesInactivePrincipal(t *testing.T) {
	svc, users, activations, publisher := newRegistrationFixture(t)

	result := svc.Register(context.Background(), RegisterInput{
		Email:    "New.User@Example.com",
		Password: "Br1ght-Copper-Kettle",
	})
	if !result.OK {
		t.Fatalf("Register failed: %s", result.Error)
	}
	if result.Payload.User.IsActive {
		t.Fatal("fresh account must be inactive")
	}
	if !result.Payload.ActivationRequired {
		t.Fatal("activation must be required")
	}
	if result.Payload.User.Email != "new.user@example.com" {
		t.Fatalf("email = %s, want lowercased", result.Payload.User.Email)
	}
	if result.Payload.User.PasswordHash != "" {
		t.Fatal("payload leaked password hash")
	}

	stored, err := users.GetByEmail(context.Background(), "new.user@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if stored.IsActive {
		t.Fatal("stored principal must be inactive")
	}
	if len(stored.Roles) != 1 || stored.Roles[0] != "user" {
		t.Fatalf("roles = %v, want [user]", stored.Roles)
	}

	if record := activations.records[stored.ID]; record == nil || record.ActivationCode == nil {
		t.Fatal("activation artifacts not issued")
	}
	if len(publisher.registered) != 1 {
		t.Fatalf("registered events = %d, want 1", len(publisher.registered))
	}
	if len(publisher.verifications) != 1 {
		t.Fatalf("verification events = %d, want 1", len(publisher.verifications))
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, users, _, _ := newRegistrationFixture(t)
	seedPrincipal(t, users, "taken@example.com", true)

	result := svc.Register(context.Background(), RegisterInput{
		Email:    "taken@example.com",
		Password: "Br1ght-Copper-Kettle",
	})
	if result.OK {
		t.Fatal("duplicate email accepted")
	}
	if result.Error != "an account with this email already exists" {
		t.Fatalf("Error = %q", result.Error)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _, publisher := newRegistrationFixture(t)

	if result := svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "Br1ght-Copper-Kettle"}); result.OK {
		t.Fatal("malformed email accepted")
	}
	if result := svc.Register(context.Background(), RegisterInput{Email: "ok@example.com", Password: "weak"}); result.OK {
		t.Fatal("weak password accepted")
	}
	if len(publisher.registered) != 0 {
		t.Fatal("no events should be published for rejected registrations")
	}
}

func TestRegisteredAccountCompletesActivationAndLogin(t *testing.T) {
	cfg := testConfig()
	users := newStubUserStore()
	activations := newStubActivationStore()
	publisher := &stubPublisher{}
	signer := testSigner(t, cfg)

	activationSvc, err := NewActivationService(cfg, users, activations, signer, publisher, zap.NewNop())
	if err != nil {
		t.Fatalf("NewActivationService: %v", err)
	}
	registrationSvc, err := NewRegistrationService(cfg, users, nil, activationSvc, publisher, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRegistrationService: %v", err)
	}
	authSvc, err := NewAuthService(cfg, users, activations, signer, testTOTPEngine(cfg), newStubChallengeStore(), publisher, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	const password = "Br1ght-Copper-Kettle"
	register := registrationSvc.Register(context.Background(), RegisterInput{Email: "user@example.com", Password: password})
	if !register.OK {
		t.Fatalf("Register failed: %s", register.Error)
	}

	blocked := authSvc.Login(context.Background(), LoginInput{Email: "user@example.com", Password: password}, nil)
	if blocked.OK {
		t.Fatal("login before activation should fail")
	}

	event := lastVerification(t, publisher)
	verify := activationSvc.VerifyEmail(context.Background(), event.ActivationToken, event.ActivationCode)
	if !verify.OK {
		t.Fatalf("VerifyEmail failed: %s", verify.Error)
	}

	login := authSvc.Login(context.Background(), LoginInput{Email: "user@example.com", Password: password}, nil)
	if !login.OK {
		t.Fatalf("login after activation failed: %s", login.Error)
	}
}
