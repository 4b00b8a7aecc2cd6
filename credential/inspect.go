package credential

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by Inspect for tokens that are not a parseable JWT.
var ErrNotJWT = errors.New("credential: token is not a JWT")

// Claims is the display subset of a session token's payload.
type Claims struct {
	Subject   string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that is before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

type sessionClaims struct {
	PlainID string `json:"id,omitempty"`
	UserID  string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// Inspect decodes token claims WITHOUT verifying the signature. The result is only
// fit for display; authentication is always decided by the remote service.
func Inspect(token string) (Claims, error) {
	var claims sessionClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return Claims{}, ErrNotJWT
	}

	out := Claims{
		Subject: claims.Subject,
		UserID:  claims.UserID,
	}
	if out.UserID == "" {
		out.UserID = claims.PlainID
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
