package usecase

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/starcoex/auth-platform/internal/core/domain"
	"github.com/starcoex/auth-platform/internal/infra/config"
	"github.com/starcoex/auth-platform/internal/infra/security"
	"github.com/starcoex/auth-platform/internal/repository"
)

type stubUserStore struct {
	users      map[string]*domain.Principal
	createErr  error
	updateErrs map[string]error
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{users: make(map[string]*domain.Principal)}
}

func (s *stubUserStore) add(p domain.Principal) {
	copied := p
	s.users[p.ID] = &copied
}

func (s *stubUserStore) Create(_ context.Context, principal domain.Principal) error {
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.users {
		if existing.Email == principal.Email {
			return repository.ErrConflict
		}
	}
	s.add(principal)
	return nil
}

func (s *stubUserStore) GetByID(_ context.Context, id string) (*domain.Principal, error) {
	if p, ok := s.users[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserStore) GetByEmail(_ context.Context, email string) (*domain.Principal, error) {
	for _, p := range s.users {
		if p.Email == email {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserStore) UpdateRotationState(_ context.Context, id string, state domain.RotationState) error {
	p, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.RefreshTokenHash = state.RefreshTokenHash
	p.RememberMe = state.RememberMe
	return nil
}

func (s *stubUserStore) UpdatePassword(_ context.Context, id string, passwordHash string, _ time.Time) error {
	p, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.PasswordHash = passwordHash
	return nil
}

func (s *stubUserStore) Activate(_ context.Context, id string) error {
	p, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.IsActive = true
	return nil
}

func (s *stubUserStore) UpdateEmail(_ context.Context, id string, email string) error {
	for _, existing := range s.users {
		if existing.ID != id && existing.Email == email {
			return repository.ErrConflict
		}
	}
	p, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Email = email
	return nil
}

func (s *stubUserStore) RecordLogin(_ context.Context, id string, at time.Time) error {
	p, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	stamp := at
	p.LastLogin = &stamp
	return nil
}

type stubActivationStore struct {
	records map[string]*domain.ActivationRecord
}

func newStubActivationStore() *stubActivationStore {
	return &stubActivationStore{records: make(map[string]*domain.ActivationRecord)}
}

func (s *stubActivationStore) Get(_ context.Context, principalID string) (*domain.ActivationRecord, error) {
	if r, ok := s.records[principalID]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubActivationStore) SetActivationArtifacts(_ context.Context, principalID, code, token string, requestedEmail *string) error {
	record, ok := s.records[principalID]
	if !ok {
		record = &domain.ActivationRecord{PrincipalID: principalID}
		s.records[principalID] = record
	}
	record.ActivationCode = &code
	record.ActivationToken = &token
	record.RequestedEmail = requestedEmail
	record.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *stubActivationStore) ConsumeActivation(_ context.Context, principalID string) error {
	record, ok := s.records[principalID]
	if !ok {
		return repository.ErrNotFound
	}
	record.ActivationCode = nil
	record.ActivationToken = nil
	record.RequestedEmail = nil
	return nil
}

func (s *stubActivationStore) SetTwoFactor(_ context.Context, principalID string, secret *string, enabled bool) error {
	record, ok := s.records[principalID]
	if !ok {
		record = &domain.ActivationRecord{PrincipalID: principalID}
		s.records[principalID] = record
	}
	if !enabled {
		secret = nil
	}
	record.TwoFactorSecret = secret
	record.TwoFactorEnabled = enabled
	return nil
}

type stubChallengeStore struct {
	counts   map[string]int
	forced   int
	cleared  []string
	recorded []string
}

func newStubChallengeStore() *stubChallengeStore {
	return &stubChallengeStore{counts: make(map[string]int)}
}

func (s *stubChallengeStore) RecordAttempt(_ context.Context, challengeID string, _ time.Duration) (int, error) {
	s.recorded = append(s.recorded, challengeID)
	if s.forced > 0 {
		return s.forced, nil
	}
	s.counts[challengeID]++
	return s.counts[challengeID], nil
}

func (s *stubChallengeStore) ClearAttempts(_ context.Context, challengeID string) error {
	s.cleared = append(s.cleared, challengeID)
	delete(s.counts, challengeID)
	return nil
}

type stubPublisher struct {
	registered    []domain.PrincipalRegisteredEvent
	verifications []domain.VerificationRequestedEvent
	resets        []domain.PasswordResetRequestedEvent
	logins        []domain.LoggedInEvent
}

func (s *stubPublisher) PublishPrincipalRegistered(_ context.Context, event domain.PrincipalRegisteredEvent) error {
	s.registered = append(s.registered, event)
	return nil
}

func (s *stubPublisher) PublishVerificationRequested(_ context.Context, event domain.VerificationRequestedEvent) error {
	s.verifications = append(s.verifications, event)
	return nil
}

func (s *stubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	s.resets = append(s.resets, event)
	return nil
}

func (s *stubPublisher) PublishLoggedIn(_ context.Context, event domain.LoggedInEvent) error {
	s.logins = append(s.logins, event)
	return nil
}

type boundToken struct {
	Name   string
	Value  string
	Expiry time.Time
}

type stubResponseChannel struct {
	bound   []boundToken
	cleared []string
}

func (s *stubResponseChannel) BindToken(name, value string, expiry time.Time) {
	s.bound = append(s.bound, boundToken{Name: name, Value: value, Expiry: expiry})
}

func (s *stubResponseChannel) ClearToken(name string) {
	s.cleared = append(s.cleared, name)
}

func (s *stubResponseChannel) tokenValue(name string) (string, bool) {
	for i := len(s.bound) - 1; i >= 0; i-- {
		if s.bound[i].Name == name {
			return s.bound[i].Value, true
		}
	}
	return "", false
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		JWT: config.JWTSettings{
			Issuer:                 "auth-platform-test",
			AccessSecret:           "access-secret-test",
			RefreshSecret:          "refresh-secret-test",
			ActivationSecret:       "activation-secret-test",
			TwoFactorSecret:        "two-factor-secret-test",
			AccessTTL:              30 * time.Minute,
			AccessRememberMeTTL:    24 * time.Hour,
			RefreshTTL:             168 * time.Hour,
			RefreshRememberMeTTL:   720 * time.Hour,
			ActivationTTL:          10 * time.Minute,
			TwoFactorChallengeTTL:  5 * time.Minute,
			RefreshRotationEnabled: true,
		},
		TOTP: config.TOTPSettings{
			Issuer:      "auth-platform-test",
			Digits:      6,
			Period:      30 * time.Second,
			Skew:        1,
			MaxAttempts: 3,
		},
	}
}

func testSigner(t *testing.T, cfg *config.AppConfig) *security.TokenSigner {
	t.Helper()

	signer, err := security.NewTokenSigner(security.SignerConfig{
		Issuer: cfg.JWT.Issuer,
		Secrets: map[security.TokenPurpose]string{
			security.PurposeAccess:     cfg.JWT.AccessSecret,
			security.PurposeRefresh:    cfg.JWT.RefreshSecret,
			security.PurposeActivation: cfg.JWT.ActivationSecret,
			security.PurposeTwoFactor:  cfg.JWT.TwoFactorSecret,
		},
	})
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	return signer
}

func testTOTPEngine(cfg *config.AppConfig) *security.TOTPEngine {
	return security.NewTOTPEngine(security.TOTPConfig{
		Issuer: cfg.TOTP.Issuer,
		Digits: cfg.TOTP.Digits,
		Period: cfg.TOTP.Period,
		Skew:   cfg.TOTP.Skew,
	})
}

const testPassword = "Corr3ct-Horse-Battery"

func seedPrincipal(t *testing.T, users *stubUserStore, email string, active bool) domain.Principal {
	t.Helper()

	hash, err := security.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	principal := domain.Principal{
		ID:           "principal-" + email,
		Email:        email,
		PasswordHash: hash,
		IsActive:     active,
		Roles:        []string{"user"},
		RegisteredAt: time.Now().UTC().Add(-time.Hour),
	}
	users.add(principal)
	return principal
}

func newAuthFixture(t *testing.T) (*AuthService, *stubUserStore, *stubActivationStore, *stubChallengeStore, *stubPublisher, *config.AppConfig) {
	t.Helper()

	cfg := testConfig()
	users := newStubUserStore()
	activations := newStubActivationStore()
	challenges := newStubChallengeStore()
	publisher := &stubPublisher{}

	svc, err := NewAuthService(cfg, users, activations, testSigner(t, cfg), testTOTPEngine(cfg), challenges, publisher, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	return svc, users, activations, challenges, publisher, cfg
}
