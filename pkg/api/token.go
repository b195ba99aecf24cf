package api

import (
	"mwdb/pkg/serrors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthToken is an MWDB session token or API key. Both are JWTs signed by the
// server; the client only reads their claims and never verifies the signature.
type AuthToken struct {
	raw    string
	header map[string]any
	claims jwt.MapClaims
}

// ParseAuthToken decodes the claims of an MWDB token.
func ParseAuthToken(value string) (*AuthToken, error) {
	claims := jwt.MapClaims{}
	token, _, err := jwt.NewParser().ParseUnverified(value, claims)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInvalidCredentials, err,
			"invalid authentication token, verify whether the actual token is provided instead of its UUID")
	}

	return &AuthToken{raw: value, header: token.Header, claims: claims}, nil
}

// String returns the encoded token.
func (t *AuthToken) String() string {
	return t.raw
}

// Username returns the login of the token owner.
func (t *AuthToken) Username() string {
	login, _ := t.claims["login"].(string)

	return login
}

// ExpiresAt returns the expiration time, if the token has one. Legacy MWDB
// tokens carry exp in the header instead of the claims.
func (t *AuthToken) ExpiresAt() (time.Time, bool) {
	if exp, err := t.claims.GetExpirationTime(); err == nil && exp != nil {
		return exp.Time, true
	}

	// MapClaims parses the numeric forms encoding/json produces.
	exp, err := jwt.MapClaims{"exp": t.header["exp"]}.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

// Expired reports whether the token is expired at now. Tokens without
// expiration never expire.
func (t *AuthToken) Expired(now time.Time) bool {
	exp, ok := t.ExpiresAt()

	return ok && !now.Before(exp)
}
