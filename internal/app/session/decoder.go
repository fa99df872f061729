package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a session token. The remote authority puts the
// username in sub and the role in role.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ExpiresAtUnix returns exp in epoch seconds.
func (c *Claims) ExpiresAtUnix() (int64, bool) {
	if c == nil || c.ExpiresAt == nil {
		return 0, false
	}
	return c.ExpiresAt.Unix(), true
}

// ExpiredAt reports whether the token is no longer usable at now. A token
// expiring exactly at now is expired, and so is one without exp.
func (c *Claims) ExpiredAt(now time.Time) bool {
	exp, ok := c.ExpiresAtUnix()
	if !ok {
		return true
	}
	return exp <= now.Unix()
}

// Decoder turns a raw bearer token into claims.
type Decoder interface {
	Decode(raw string) (*Claims, error)
}

var _ Decoder = (*TokenDecoder)(nil)

// TokenDecoder reads the payload segment of a three part token. It never
// checks the signature: the remote authority re-validates the token on every
// privileged request and the claims are only used to shape the UI.
type TokenDecoder struct {
	parser *jwt.Parser
}

// NewTokenDecoder creates a decoder that accepts padded and unpadded
// URL-safe base64 payloads.
func NewTokenDecoder() *TokenDecoder {
	return &TokenDecoder{
		parser: jwt.NewParser(jwt.WithPaddingAllowed(), jwt.WithoutClaimsValidation()),
	}
}

// Decode parses raw into claims. Every structural problem is reported as
// ErrMalformedToken.
func (d *TokenDecoder) Decode(raw string) (*Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	payload, err := d.parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not base64url: %v", ErrMalformedToken, err)
	}

	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object: %v", ErrMalformedToken, err)
	}

	return claims, nil
}
