// Package auth issues and verifies access tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pulsegram/apiserver/types"
)

// Config holds the token signing settings. It is injected into Provider
// rather than read from package state.
type Config struct {
	Secret   string
	TokenTTL time.Duration
	Issuer   string
}

// Claims are the token claims. The subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
}

// Provider issues HS256 access tokens and resolves them back to user ids.
type Provider struct {
	cfg Config
	now func() time.Time
}

func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	return &Provider{cfg: cfg, now: time.Now}, nil
}

// Issue returns a signed token for the user.
func (p *Provider) Issue(userID int, username string) (string, error) {
	now := p.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			Issuer:    p.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.TokenTTL)),
		},
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(p.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Resolve verifies the token and returns the user id it was issued for.
// Every failure is reported as types.ErrUnauthenticated.
func (p *Provider) Resolve(tokenString string) (int, error) {
	if tokenString == "" {
		return 0, types.ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	}
	if p.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(p.cfg.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return 0, types.ErrUnauthenticated
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID <= 0 {
		return 0, types.ErrUnauthenticated
	}
	return userID, nil
}
