package gateway

import (
	"context"
	"crypto/rsa"
	"fmt"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/serviceauth"
)

// AdminChannel is the distinct authenticated channel spec.md §4.5
// requires for clearing CommandLockdown: a JWT bearer credential separate
// from the regular command path's trust boundary, verified with
// infrastructure/serviceauth's RS256 admin tokens.
type AdminChannel struct {
	verifier *serviceauth.AdminVerifier
}

// NewAdminChannel creates an AdminChannel trusting tokens signed by the
// holder of the private key matching publicKey.
func NewAdminChannel(publicKey *rsa.PublicKey) *AdminChannel {
	return &AdminChannel{verifier: serviceauth.NewAdminVerifier(publicKey)}
}

// ClearLockdown verifies token and, if valid, releases CommandLockdown
// and EmergencyBeacon on countermeasures. Returns the authenticated
// admin id on success.
func (a *AdminChannel) ClearLockdown(_ context.Context, token string, countermeasures *Set) (string, error) {
	adminID, err := a.verifier.Verify(token)
	if err != nil {
		return "", fmt.Errorf("gateway: admin clearance denied: %w", err)
	}
	countermeasures.ClearLockdown()
	return adminID, nil
}
