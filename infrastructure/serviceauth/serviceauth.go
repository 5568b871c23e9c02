// Package serviceauth verifies the bearer tokens presented on the Secure
// Command Gateway's out-of-band Admin channel, the only path that may
// clear a CommandLockdown (together with EmergencyBeacon) countermeasure.
package serviceauth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminTokenHeader is the header name carrying the admin bearer token on
// the out-of-band channel.
const AdminTokenHeader = "X-Admin-Token"

// DefaultAdminTokenExpiry bounds how long an admin clearance token is
// valid once issued.
const DefaultAdminTokenExpiry = 15 * time.Minute

type contextKey string

const adminIDKey contextKey = "admin_id"

// WithAdminID returns a new context carrying the authenticated admin id.
func WithAdminID(ctx context.Context, adminID string) context.Context {
	return context.WithValue(ctx, adminIDKey, adminID)
}

// GetAdminID extracts the authenticated admin id from context.
func GetAdminID(ctx context.Context) string {
	if v, ok := ctx.Value(adminIDKey).(string); ok {
		return v
	}
	return ""
}

// AdminClaims are the JWT claims required to act over the out-of-band
// Admin channel.
type AdminClaims struct {
	AdminID string `json:"admin_id"`
	jwt.RegisteredClaims
}

// AdminTokenGenerator issues admin clearance tokens. Used by operator
// tooling outside this module's scope; kept here so tests can mint
// fixtures without a separate signing path.
type AdminTokenGenerator struct {
	privateKey *rsa.PrivateKey
	adminID    string
	expiry     time.Duration
}

// NewAdminTokenGenerator creates a new AdminTokenGenerator.
func NewAdminTokenGenerator(privateKey *rsa.PrivateKey, adminID string, expiry time.Duration) *AdminTokenGenerator {
	if expiry == 0 {
		expiry = DefaultAdminTokenExpiry
	}
	return &AdminTokenGenerator{privateKey: privateKey, adminID: adminID, expiry: expiry}
}

// GenerateToken generates a new admin clearance token.
func (g *AdminTokenGenerator) GenerateToken() (string, error) {
	now := time.Now()
	claims := &AdminClaims{
		AdminID: g.adminID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.expiry)),
			Issuer:    "sentinel-admin-channel",
			Subject:   g.adminID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(g.privateKey)
}

// AdminVerifier verifies bearer tokens presented on the out-of-band
// channel before a countermeasure clearance request is honored.
type AdminVerifier struct {
	publicKey *rsa.PublicKey
}

// NewAdminVerifier creates a new AdminVerifier.
func NewAdminVerifier(publicKey *rsa.PublicKey) *AdminVerifier {
	return &AdminVerifier{publicKey: publicKey}
}

// Verify parses and validates token, returning the authenticated admin id.
func (v *AdminVerifier) Verify(token string) (string, error) {
	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method.Alg())
		}
		return v.publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse admin token: %w", err)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("admin token is not valid")
	}
	if claims.AdminID == "" {
		return "", fmt.Errorf("admin token missing admin_id claim")
	}
	return claims.AdminID, nil
}

// ParseRSAPublicKeyFromPEM parses an RSA public key from PEM bytes.
// Supported PEM types: PUBLIC KEY (PKIX), RSA PUBLIC KEY (PKCS#1), CERTIFICATE.
func ParseRSAPublicKeyFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	rest := pemBytes
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, fmt.Errorf("no PEM public key found")
		}

		switch block.Type {
		case "PUBLIC KEY":
			pubAny, err := x509.ParsePKIXPublicKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse PKIX public key: %w", err)
			}
			pub, ok := pubAny.(*rsa.PublicKey)
			if !ok {
				return nil, fmt.Errorf("public key is not RSA")
			}
			return pub, nil
		case "RSA PUBLIC KEY":
			pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse PKCS#1 public key: %w", err)
			}
			return pub, nil
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse certificate: %w", err)
			}
			pub, ok := cert.PublicKey.(*rsa.PublicKey)
			if !ok {
				return nil, fmt.Errorf("certificate public key is not RSA")
			}
			return pub, nil
		}

		if len(rest) == 0 {
			return nil, fmt.Errorf("no supported PEM public key found")
		}
	}
}

// ParseRSAPrivateKeyFromPEM parses an RSA private key from PEM bytes.
// Supported PEM types: RSA PRIVATE KEY (PKCS#1), PRIVATE KEY (PKCS#8).
func ParseRSAPrivateKeyFromPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	rest := pemBytes
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, fmt.Errorf("no PEM private key found")
		}

		switch block.Type {
		case "RSA PRIVATE KEY":
			priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse PKCS#1 private key: %w", err)
			}
			return priv, nil
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse PKCS#8 private key: %w", err)
			}
			priv, ok := key.(*rsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("private key is not RSA")
			}
			return priv, nil
		}

		if len(rest) == 0 {
			return nil, fmt.Errorf("no supported PEM private key found")
		}
	}
}
