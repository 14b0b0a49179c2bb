package domain

import "time"

// Principal mirrors the persisted representation in the principals table.
// It is the identity the authentication flows operate on; this subsystem
// mutates its rotation state and activation flag but never deletes it.
type Principal struct {
	ID               string
	Email            string
	PasswordHash     string
	IsActive         bool
	RememberMe       bool
	Roles            []string
	RefreshTokenHash *string
	RegisteredAt     time.Time
	LastLogin        *time.Time
}

// HasRotationState reports whether a refresh token hash is currently stored.
func (p Principal) HasRotationState() bool {
	return p.RefreshTokenHash != nil && *p.RefreshTokenHash != ""
}

// Sanitized returns a copy safe to hand to transport layers.
func (p Principal) Sanitized() Principal {
	out := p
	out.PasswordHash = ""
	out.RefreshTokenHash = nil
	return out
}

// ActivationRecord holds the 1:1 activation and two-factor state for a principal.
// ActivationCode and ActivationToken are single-use: both are blanked atomically
// with the state transition they authorize, so a consumed code cannot be replayed.
type ActivationRecord struct {
	PrincipalID      string
	ActivationCode   *string
	ActivationToken  *string
	RequestedEmail   *string
	TwoFactorSecret  *string
	TwoFactorEnabled bool
	UpdatedAt        time.Time
}

// TwoFactorReady reports whether a login must be interrupted by an OTP challenge.
// The secret/enabled pair never diverges: secret is nil whenever enabled is false.
func (a ActivationRecord) TwoFactorReady() bool {
	return a.TwoFactorEnabled && a.TwoFactorSecret != nil && *a.TwoFactorSecret != ""
}

// HasPendingActivation reports whether an unconsumed activation artifact exists.
func (a ActivationRecord) HasPendingActivation() bool {
	return a.ActivationCode != nil && *a.ActivationCode != ""
}
