// Package auth verifies host tokens issued by the admin auth service.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"

	"live-quiz-service/internal/domain"
)

const adminRole = "admin"

// Claims is what the admin auth service puts in a host token.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	Admin bool     `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Verify parses the token and maps it to an identity. Any failure wraps domain.ErrUnauthorized.
func (v *Verifier) Verify(raw string) (domain.Identity, error) {
	if !v.Enabled() {
		return domain.Identity{}, fmt.Errorf("%w: no secret configured", domain.ErrUnauthorized)
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, jwt.ErrSignatureInvalid)
	}
	if claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, errors.New("token has no subject"))
	}
	return domain.Identity{
		Subject: claims.Subject,
		Admin:   claims.Admin || lo.Contains(claims.Roles, adminRole),
	}, nil
}

// Issue signs a host token. The admin auth service normally does this; the CLI uses it for local runs.
func (v *Verifier) Issue(subject string, admin bool, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", fmt.Errorf("%w: no secret configured", domain.ErrUnauthorized)
	}
	now := time.Now()
	claims := &Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if admin {
		claims.Roles = []string{adminRole}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
