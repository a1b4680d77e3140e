package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// DefaultTTL is the session validity window stamped at sign time.
const DefaultTTL = time.Hour

// Codec signs and verifies session tokens with a process-wide HMAC secret.
// Only HS256 is accepted on verification; a token declaring any other
// algorithm fails even when its signature is internally consistent.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// CodecOption modifies a Codec at construction time.
type CodecOption func(*Codec)

// WithNow overrides the codec clock (primarily for testing).
func WithNow(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a codec bound to the given signing secret. The secret is
// loaded once at startup; an empty secret is a construction error so the
// process refuses to start rather than sign with a default key.
func NewCodec(secret string, ttl time.Duration, options ...CodecOption) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("[NewCodec] signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// TTL returns the validity window applied at sign time.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Sign stamps iat/exp onto a copy of the claims and returns the signed
// token together with its expiry. Identity fields are never touched, which
// is what lets Refresh re-sign verified claims unchanged.
func (c *Codec) Sign(claims Claims) (string, time.Time, error) {
	now := c.now().UTC()
	expiresAt := now.Add(c.ttl)

	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "failed to sign session token")
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a signed token, returning its claims.
// It fails on signature mismatch, a disallowed algorithm, a malformed
// payload, or an expiry at or before the current time. Callers normalize
// any error here to "no session"; nothing is surfaced to the end user.
func (c *Codec) Verify(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, c.verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "invalid session token")
	}
	return &claims, nil
}

func (c *Codec) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return c.secret, nil
}
