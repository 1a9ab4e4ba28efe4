package authclient

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the claim subset the client inspects: subject, issued-at,
// and expiry. The token signature is never checked here; that is the
// backend's job.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// Sub returns the subject claim.
func (c *TokenClaims) Sub() string {
	return c.RegisteredClaims.Subject
}

// Expiry returns the expiration time, zero when the claim is absent.
func (c *TokenClaims) Expiry() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued-at time, zero when the claim is absent.
func (c *TokenClaims) Issued() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

var unverifiedParser = jwt.NewParser()

// DecodeToken decodes the payload segment of a bearer token without
// verifying its signature. It returns nil on any structural failure: wrong
// segment count, invalid base64url, invalid claim encoding.
func DecodeToken(token string) *TokenClaims {
	claims := &TokenClaims{}
	if _, _, err := unverifiedParser.ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

// IsTokenExpired reports whether the token's exp claim is in the past.
// Tokens that fail to decode are treated as expired (fail closed).
func IsTokenExpired(token string) bool {
	return IsTokenExpiredAt(token, time.Now())
}

// IsTokenExpiredAt is IsTokenExpired against an explicit clock.
func IsTokenExpiredAt(token string, now time.Time) bool {
	claims := DecodeToken(token)
	if claims == nil {
		return true
	}
	// A token without an exp claim never expires locally; the backend still
	// gets the final say during revalidation.
	if claims.RegisteredClaims.ExpiresAt == nil {
		return false
	}
	return claims.RegisteredClaims.ExpiresAt.Time.Unix()*1000 < now.UnixMilli()
}

// DisplayIdentity is a best-effort identity derived from the token subject,
// used only for display.
type DisplayIdentity struct {
	Email    string
	Username string
}

// DisplayIdentityFromToken derives a DisplayIdentity from the sub claim.
// The subject is either an email or a bare username; the two cases are
// distinguished by the presence of "@". This heuristic is inherently
// ambiguous and stays only because the token issuer collapses both into a
// single claim.
func DisplayIdentityFromToken(token string) *DisplayIdentity {
	claims := DecodeToken(token)
	if claims == nil || claims.Sub() == "" {
		return nil
	}

	sub := claims.Sub()
	if strings.Contains(sub, "@") {
		return &DisplayIdentity{
			Email:    sub,
			Username: strings.Split(sub, "@")[0],
		}
	}

	return &DisplayIdentity{
		Email:    "",
		Username: sub,
	}
}
