// Package auth issues and verifies the RS256 tokens used by every
// protected endpoint and defines the closed set of caller roles.
package auth

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

// ClaimsKey is the request context key under which the authentication
// middleware stores the verified Claims.
const ClaimsKey ctxKey = 1

const (
	RoleAdmin      = "ADMIN"
	RolePharmacist = "PHARMACIST"
	RoleUser       = "USER"
)

// Claims carries the user id in Subject and the caller's role.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// IsAllowed reports whether role is one of the allowed roles. Handlers go
// through this check instead of comparing role strings inline.
func IsAllowed(role string, allowed ...string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// IsValidRole reports whether role belongs to the closed role enumeration.
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RolePharmacist || role == RoleUser
}

type Keys struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// NewKeys builds Keys from an already parsed private key.
func NewKeys(privateKey *rsa.PrivateKey) (*Keys, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("private key is nil")
	}
	return &Keys{privateKey: privateKey, publicKey: &privateKey.PublicKey}, nil
}

// LoadKeys parses a PEM encoded RSA private key.
func LoadKeys(privatePEM []byte) (*Keys, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewKeys(privateKey)
}

// GenerateToken signs a token for the given user id and role, valid for 24h.
func (k *Keys) GenerateToken(userID string, role string) (string, error) {
	if !IsValidRole(role) {
		return "", fmt.Errorf("unknown role: %s", role)
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "pharmacy-service",
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(24 * time.Hour)),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(k.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies the signature and expiry and returns the claims.
func (k *Keys) ValidateToken(tokenStr string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return k.publicKey, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return Claims{}, fmt.Errorf("invalid token")
	}
	if !IsValidRole(claims.Role) {
		return Claims{}, fmt.Errorf("unknown role in token: %s", claims.Role)
	}
	return claims, nil
}
