package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const audience = "terminfinder-api"

// Scopes of an appointment access token.
const (
	ScopeAppointment = "appointment"
	ScopeAdmin       = "appointment.admin"
)

// Claims grant access to one protected appointment. Subject holds the
// appointment id for ScopeAppointment and the admin id for ScopeAdmin.
type Claims struct {
	Customer string `json:"cid"`
	Scope    string `json:"scope"`
	jwt.RegisteredClaims
}

func NewAccessToken(customerID, subject, scope, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Customer: customerID,
		Scope:    scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  []string{audience},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func Parse(tokenString, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
	)
	if err != nil {
		return nil, err
	}
	if claims, ok := tok.Claims.(*Claims); ok && tok.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// Grants reports whether the token opens the given appointment.
func (c *Claims) Grants(customerID, subject, scope string) bool {
	return c.Customer == customerID && c.Subject == subject && c.Scope == scope
}
