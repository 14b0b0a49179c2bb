package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const totpSecretBytes = 20

// ErrMissingSecret is returned when a TOTP operation receives an empty secret.
var ErrMissingSecret = fmt.Errorf("totp secret is required")

// TOTPConfig tunes the time-based one-time password engine.
type TOTPConfig struct {
	Issuer string
	Digits int
	Period time.Duration
	Skew   int
}

// TOTPEngine generates shared secrets and verifies RFC 6238 codes.
type TOTPEngine struct {
	cfg TOTPConfig
}

// NewTOTPEngine constructs an engine, filling unset fields with the RFC defaults.
func NewTOTPEngine(cfg TOTPConfig) *TOTPEngine {
	if cfg.Issuer == "" {
		cfg.Issuer = "auth-platform"
	}
	if cfg.Digits <= 0 {
		cfg.Digits = 6
	}
	if cfg.Period <= 0 {
		cfg.Period = 30 * time.Second
	}
	if cfg.Skew < 0 {
		cfg.Skew = 0
	}
	return &TOTPEngine{cfg: cfg}
}

// TOTPSecret bundles a freshly generated shared secret with its provisioning URI.
type TOTPSecret struct {
	Base32          string
	ProvisioningURI string
}

// GenerateSecret produces a 160-bit random shared secret and the otpauth://
// URI an authenticator app scans. Rendering the URI to an image is left to
// the presentation layer.
func (e *TOTPEngine) GenerateSecret(account string) (*TOTPSecret, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	secret := enc.EncodeToString(raw)

	return &TOTPSecret{
		Base32:          secret,
		ProvisioningURI: e.provisioningURI(secret, account),
	}, nil
}

func (e *TOTPEngine) provisioningURI(secret, account string) string {
	label := url.PathEscape(e.cfg.Issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", e.cfg.Issuer)
	v.Set("period", strconv.Itoa(int(e.cfg.Period.Seconds())))
	v.Set("digits", strconv.Itoa(e.cfg.Digits))
	v.Set("algorithm", "SHA1")

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// VerifyCode checks a one-time code against the shared secret, accepting
// ±skew time steps of clock drift. Malformed codes (wrong length,
// non-numeric) return false without error.
func (e *TOTPEngine) VerifyCode(secretBase32, code string, now time.Time) (bool, error) {
	if secretBase32 == "" {
		return false, ErrMissingSecret
	}

	trimmed := strings.TrimSpace(code)
	if len(trimmed) != e.cfg.Digits || !isNumeric(trimmed) {
		return false, nil
	}

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	secret, err := enc.DecodeString(strings.ToUpper(strings.TrimRight(secretBase32, "=")))
	if err != nil {
		return false, fmt.Errorf("decode totp secret: %w", err)
	}

	baseCounter := now.Unix() / int64(e.cfg.Period.Seconds())
	for step := -e.cfg.Skew; step <= e.cfg.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated := hotpCode(secret, uint64(counter), e.cfg.Digits)
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

// CodeAt returns the code for the given moment; used by provisioning flows
// that display a code for manual confirmation.
func (e *TOTPEngine) CodeAt(secretBase32 string, at time.Time) (string, error) {
	if secretBase32 == "" {
		return "", ErrMissingSecret
	}

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	secret, err := enc.DecodeString(strings.ToUpper(strings.TrimRight(secretBase32, "=")))
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}

	counter := uint64(at.Unix() / int64(e.cfg.Period.Seconds()))
	return hotpCode(secret, counter, e.cfg.Digits), nil
}

func hotpCode(secret []byte, counter uint64, digits int) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
