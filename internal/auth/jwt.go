package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidVisitor = errors.New("auth: invalid visitor token")

// VisitorClaims is the only thing the browser holds: an opaque visitor ID.
// Upstream credentials stay on the server.
type VisitorClaims struct {
	VisitorID string `json:"vid"`
	jwt.RegisteredClaims
}

func NewVisitorID() string {
	return uuid.NewString()
}

func NewVisitorToken(secret, issuer string, ttl time.Duration, visitorID string) (string, error) {
	if secret == "" {
		return "", errors.New("auth: missing visitor secret")
	}
	now := time.Now().UTC()
	claims := VisitorClaims{
		VisitorID: visitorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   visitorID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseVisitorToken(secret, issuer, tokenString string) (*VisitorClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &VisitorClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*VisitorClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if _, err := uuid.Parse(claims.VisitorID); err != nil || claims.Subject != claims.VisitorID {
		return nil, ErrInvalidVisitor
	}
	return claims, nil
}
