// Package auth issues and verifies panel operator tokens.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fastpanel/fastpanel/internal/models"
)

// DefaultExpiry is the lifetime of an access token.
const DefaultExpiry = 24 * time.Hour

const issuer = "fastpanel"

// ErrNoSecret is returned when a Tokens is built without a signing key.
var ErrNoSecret = errors.New("jwt secret is not set")

// Claims identifies a panel operator.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64       `json:"userId"`
	Role   models.Role `json:"role"`
}

// Tokens signs and validates HS256 access tokens.
type Tokens struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewTokens returns a Tokens using secret. expiry <= 0 selects DefaultExpiry.
func NewTokens(secret string, expiry time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Tokens{secret: []byte(secret), expiry: expiry, now: time.Now}, nil
}

// Issue returns a signed token for u.
func (t *Tokens) Issue(u models.User) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(u.ID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
		UserID: u.ID,
		Role:   u.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse validates tokenStr and returns its claims.
func (t *Tokens) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		// HMAC only: alg "none" and asymmetric algorithms are rejected.
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
