package domain

import "time"

// TokenBundle is the ephemeral pair handed to a client after a successful
// authentication. The refresh half is optional; only its hash is ever stored.
type TokenBundle struct {
	AccessToken   string
	AccessExpiry  time.Time
	RefreshToken  string
	RefreshExpiry time.Time
}

// HasRefresh reports whether the bundle carries a refresh token.
func (b TokenBundle) HasRefresh() bool {
	return b.RefreshToken != ""
}

// RotationState is the server-side residue of a token bundle: the one-way
// hash of the refresh token plus the remember-me tier it was issued under.
// Persisting it is the final step of a successful login or refresh, which
// makes rotation last-write-wins per principal.
type RotationState struct {
	RefreshTokenHash *string
	RememberMe       bool
}
