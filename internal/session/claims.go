package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims reads the subject and expiry of a JWT-shaped token without
// verifying it. Opaque tokens yield zero values.
func tokenClaims(token string) (subject string, exp time.Time) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", time.Time{}
	}

	if email, ok := claims["email"].(string); ok && email != "" {
		subject = email
	} else if sub, err := claims.GetSubject(); err == nil {
		subject = sub
	}
	if subject == "" {
		// some issuers put the user id under "id" or "uid"
		for _, k := range []string{"id", "uid", "_id"} {
			if v, ok := claims[k].(string); ok && v != "" {
				subject = v
				break
			}
		}
	}

	if e, err := claims.GetExpirationTime(); err == nil && e != nil {
		exp = e.Time
	}
	return subject, exp
}
