package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

// TokenPurpose names a token class. Every purpose signs with its own secret,
// so a token minted for one purpose fails signature verification when
// presented for another even before its claims are inspected.
type TokenPurpose string

const (
	PurposeAccess     TokenPurpose = "access"
	PurposeRefresh    TokenPurpose = "refresh"
	PurposeActivation TokenPurpose = "activation"
	PurposeTwoFactor  TokenPurpose = "two_factor"
)

var (
	// ErrTokenInvalid indicates the token is malformed, wrongly signed, or
	// presented for a purpose it was not minted for.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired indicates the token elapsed its validity window.
	ErrTokenExpired = errors.New("token expired")
	// ErrUnknownPurpose indicates no secret is configured for the purpose.
	ErrUnknownPurpose = errors.New("unknown token purpose")
)

// Claims carries the signed payload shared by every token purpose.
type Claims struct {
	UserID  string `json:"uid"`
	Pending bool   `json:"pending,omitempty"`
	Code    string `json:"code,omitempty"`
	jwt.RegisteredClaims
}

// SignerConfig wires the issuer and the per-purpose secrets.
type SignerConfig struct {
	Issuer  string
	Secrets map[TokenPurpose]string
}

// TokenSigner creates and verifies HMAC-signed tokens with purpose-scoped secrets.
type TokenSigner struct {
	issuer  string
	secrets map[TokenPurpose][]byte
}

// NewTokenSigner constructs a TokenSigner, validating that every purpose has
// a distinct non-empty secret.
func NewTokenSigner(cfg SignerConfig) (*TokenSigner, error) {
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}

	secrets := make(map[TokenPurpose][]byte, len(cfg.Secrets))
	seen := make(map[string]TokenPurpose, len(cfg.Secrets))
	for purpose, secret := range cfg.Secrets {
		if strings.TrimSpace(secret) == "" {
			return nil, fmt.Errorf("jwt: secret for purpose %q is required", purpose)
		}
		if other, dup := seen[secret]; dup {
			return nil, fmt.Errorf("jwt: purposes %q and %q share a secret", purpose, other)
		}
		seen[secret] = purpose
		secrets[purpose] = []byte(secret)
	}

	return &TokenSigner{issuer: issuer, secrets: secrets}, nil
}

// IssueOptions configures creation of token claims.
type IssueOptions struct {
	UserID   string
	TTL      time.Duration
	Pending  bool
	Code     string
	IssuedAt time.Time
	JTI      string
}

// Issue signs a token for the given purpose and returns it with its expiry.
func (s *TokenSigner) Issue(purpose TokenPurpose, opts IssueOptions) (string, time.Time, error) {
	secret, ok := s.secrets[purpose]
	if !ok {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrUnknownPurpose, purpose)
	}

	userID := strings.TrimSpace(opts.UserID)
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("jwt: user id is required")
	}
	if opts.TTL <= 0 {
		return "", time.Time{}, fmt.Errorf("jwt: ttl must be positive")
	}

	now := opts.IssuedAt
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}

	jti := strings.TrimSpace(opts.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	expiry := now.Add(opts.TTL)
	claims := &Claims{
		UserID:  userID,
		Pending: opts.Pending,
		Code:    opts.Code,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, expiry, nil
}

// Verify validates the token against the secret of the supplied purpose and
// returns its claims. Expiry surfaces as ErrTokenExpired; every other failure
// collapses into ErrTokenInvalid.
func (s *TokenSigner) Verify(token string, purpose TokenPurpose) (*Claims, error) {
	secret, ok := s.secrets[purpose]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPurpose, purpose)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
