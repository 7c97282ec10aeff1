package session

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// Claims are carried in the session token.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.StandardClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret   []byte
	lifespan time.Duration
	now      func() time.Time
}

// NewTokenIssuer creates an issuer for the given secret and token lifespan.
func NewTokenIssuer(secret string, lifespan time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:   []byte(secret),
		lifespan: lifespan,
		now:      time.Now,
	}
}

// Issue returns a signed token for s and its expiry time.
func (t *TokenIssuer) Issue(s Session) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.lifespan)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		SessionID: s.ID,
		StandardClaims: jwt.StandardClaims{
			Subject:   s.UID,
			IssuedAt:  now.Unix(),
			ExpiresAt: expires.Unix(),
		},
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies token and returns its claims.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
