package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the shortest signing key accepted for HS256.
const MinSecretLength = 32

var signingMethod = jwt.SigningMethodHS256

var segmentEncoding = base64.RawURLEncoding.Strict()

// TokenConfig is the process-wide signing configuration. It is built once at
// startup and never modified.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Validate checks the signing configuration.
func (c TokenConfig) Validate() error {
	if len(c.Secret) == 0 {
		return errors.New("token signing secret is required")
	}
	if len(c.Secret) < MinSecretLength {
		return fmt.Errorf("token signing secret must be at least %d bytes", MinSecretLength)
	}
	if c.TTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	return nil
}

// Claims is the verified content of a token.
type Claims struct {
	ID        string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and verifies HS256 JWTs. It holds no mutable state and is
// safe for concurrent use.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenCodec builds a codec from a validated configuration.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &TokenCodec{secret: secret, issuer: cfg.Issuer, ttl: cfg.TTL}, nil
}

// TTL returns the fixed token lifetime.
func (tc *TokenCodec) TTL() time.Duration {
	return tc.ttl
}

// Issue signs a token for subject valid from now until now+TTL.
func (tc *TokenCodec) Issue(subject string, now time.Time) (string, Claims, error) {
	if subject == "" {
		return "", Claims{}, errors.New("token subject is required")
	}
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(issuedAt.Add(tc.ttl))
	registered := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    tc.issuer,
		Subject:   subject,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}

	token, err := jwt.NewWithClaims(signingMethod, registered).SignedString(tc.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return token, claimsFrom(&registered), nil
}

// Verify checks the token signature and then its expiry at now. The
// signature covers everything before the last "." and is checked before the
// token structure is parsed, so any change to a signed token is reported as
// tampered, whether or not it has expired.
func (tc *TokenCodec) Verify(token string, now time.Time) (Claims, error) {
	last := strings.LastIndexByte(token, '.')
	if last < 0 {
		return Claims{}, fmt.Errorf("%w: missing signature segment", ErrTokenMalformed)
	}
	signingInput := token[:last]

	signature, err := segmentEncoding.DecodeString(token[last+1:])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: undecodable signature", ErrTokenTampered)
	}
	if err := signingMethod.Verify(signingInput, signature, tc.secret); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenTampered, err)
	}

	header, payload, ok := strings.Cut(signingInput, ".")
	if !ok || header == "" || payload == "" || strings.Contains(payload, ".") {
		return Claims{}, fmt.Errorf("%w: expected three segments", ErrTokenMalformed)
	}
	if err := checkHeader(header); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	}
	if tc.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tc.issuer))
	}
	registered := &jwt.RegisteredClaims{}
	_, err = jwt.NewParser(opts...).ParseWithClaims(token, registered, func(*jwt.Token) (interface{}, error) {
		return tc.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenTampered, err)
	default:
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	if registered.Subject == "" || registered.IssuedAt == nil {
		return Claims{}, fmt.Errorf("%w: missing subject or issued-at", ErrTokenMalformed)
	}
	claims := claimsFrom(registered)
	if !now.Before(claims.ExpiresAt) {
		return Claims{}, fmt.Errorf("%w: expired at %s", ErrTokenExpired, claims.ExpiresAt.Format(time.RFC3339))
	}
	return claims, nil
}

func checkHeader(segment string) error {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return errors.New("undecodable header")
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return errors.New("header is not JSON")
	}
	if header.Alg != signingMethod.Alg() {
		return fmt.Errorf("unsupported algorithm %q", header.Alg)
	}
	return nil
}

func claimsFrom(rc *jwt.RegisteredClaims) Claims {
	claims := Claims{ID: rc.ID, Subject: rc.Subject}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		claims.ExpiresAt = rc.ExpiresAt.Time
	}
	return claims
}
