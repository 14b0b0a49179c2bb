package domain

import "time"

// PrincipalRegisteredEvent represents the payload for auth.principal.registered messages.
type PrincipalRegisteredEvent struct {
	EventID      string
	PrincipalID  string
	Email        string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// VerificationRequestedEvent represents the payload for auth.verification.requested
// messages. The notifications service consumes it to deliver the activation code;
// delivery never blocks the request path that produced it.
type VerificationRequestedEvent struct {
	EventID         string
	PrincipalID     string
	Email           string
	ActivationCode  string
	ActivationToken string
	Purpose         string
	RequestedAt     time.Time
	ExpiresAt       time.Time
	Metadata        map[string]any
}

// PasswordResetRequestedEvent represents the payload for auth.password.reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID     string
	PrincipalID string
	Email       string
	ResetToken  string
	RequestedAt time.Time
	ExpiresAt   time.Time
	Metadata    map[string]any
}

// LoggedInEvent represents the payload for auth.principal.logged_in messages.
type LoggedInEvent struct {
	EventID     string
	PrincipalID string
	Email       string
	RememberMe  bool
	TwoFactor   bool
	LoggedInAt  time.Time
	IPAddress   *string
	Metadata    map[string]any
}
