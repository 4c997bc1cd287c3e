/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package auth verifies the HS256 tokens that identify players.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenCookie is checked when neither the header nor the query carries a
// token.
const TokenCookie = "wordrace_token"

var (
	ErrNoToken      = errors.New("no token presented")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is who a token says the caller is.
type Identity struct {
	PlayerID string
	Name     string
}

// Claims are the token's payload: sub is the player id, name the display
// name.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Verify parses and validates a token string.
func (v *Verifier) Verify(token string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return Identity{PlayerID: sub, Name: strings.TrimSpace(claims.Name)}, nil
}

// Authenticate reads the token from the Authorization header, the token
// query parameter or the token cookie, in that order.
func (v *Verifier) Authenticate(r *http.Request) (Identity, error) {
	token := FromRequest(r)
	if token == "" {
		return Identity{}, ErrNoToken
	}

	return v.Verify(token)
}

// Issue signs a token for id. The wordrace token subcommand prints these.
func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := v.now()

	claims := Claims{
		Name: id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.PlayerID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// FromRequest extracts a raw token without validating it.
func FromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}

	if c, err := r.Cookie(TokenCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}

	return ""
}
