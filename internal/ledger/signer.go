package ledger

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Signer implements the verification algebra spec.md §4.4 requires: an
// authenticated signature scheme over a command's canonical encoding. The
// spec intentionally does not mandate a primitive — Verify must be
// constant-time, which is the only hard requirement.
type Signer interface {
	// Sign returns a signature over data (always Command.CanonicalEncode()).
	Sign(data []byte) ([]byte, error)
	// Verify reports whether sig is a valid signature over data.
	Verify(data []byte, sig []byte) bool
	// ID identifies the key material in use, for audit logging.
	ID() string
}

// Ed25519Signer signs with crypto/ed25519, the same primitive the
// teacher's account-key handling in application.go uses directly.
type Ed25519Signer struct {
	id         string
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewEd25519Signer generates a fresh Ed25519 keypair.
func NewEd25519Signer(id string) (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("ledger: generate ed25519 key: %w", err)
	}
	return &Ed25519Signer{id: id, privateKey: priv, publicKey: pub}, nil
}

// NewEd25519SignerFromSeed deterministically derives a keypair from a
// 32-byte seed, for reproducible test fixtures.
func NewEd25519SignerFromSeed(id string, seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ledger: ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Ed25519Signer{id: id, privateKey: priv, publicKey: priv.Public().(ed25519.PublicKey)}, nil
}

func (s *Ed25519Signer) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(s.privateKey, data), nil
}

func (s *Ed25519Signer) Verify(data []byte, sig []byte) bool {
	return ed25519.Verify(s.publicKey, data, sig)
}

func (s *Ed25519Signer) ID() string { return s.id }

// PublicKey returns the verifying key, for distributing to peers.
func (s *Ed25519Signer) PublicKey() ed25519.PublicKey { return s.publicKey }

// HMACSigner implements the keyed-hash form of the signing algebra as
// HMAC-SHA256(key, canonical(cmd)); verify is constant-time equality of
// the recomputed signature. Selected in deterministic/test
// configurations where a symmetric shared secret is more convenient than
// asymmetric keys.
type HMACSigner struct {
	id  string
	key []byte
}

// NewHMACSigner creates an HMACSigner over a raw shared key.
func NewHMACSigner(id string, key []byte) *HMACSigner {
	return &HMACSigner{id: id, key: append([]byte(nil), key...)}
}

// NewHMACSignerFromMasterSecret derives a per-purpose subkey from a
// master secret via HKDF-SHA256, grounded on the teacher's
// internal/crypto/crypto.go use of golang.org/x/crypto/hkdf for subkey
// derivation. This is signing algebra, not key management: no storage or
// rotation is implemented, per spec.md §1's Non-goal.
func NewHMACSignerFromMasterSecret(id string, masterSecret []byte, info string) (*HMACSigner, error) {
	reader := hkdf.New(sha256.New, masterSecret, nil, []byte(info))
	subkey := make([]byte, 32)
	if _, err := io.ReadFull(reader, subkey); err != nil {
		return nil, fmt.Errorf("ledger: derive hmac subkey: %w", err)
	}
	return NewHMACSigner(id, subkey), nil
}

func (s *HMACSigner) Sign(data []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	return mac.Sum(nil), nil
}

func (s *HMACSigner) Verify(data []byte, sig []byte) bool {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	expected := mac.Sum(nil)
	return subtle.ConstantTimeCompare(expected, sig) == 1
}

func (s *HMACSigner) ID() string { return s.id }

// SignCommand signs cmd's canonical encoding with signer.
func SignCommand(signer Signer, cmd Command) ([]byte, error) {
	return signer.Sign(cmd.CanonicalEncode())
}

// VerifyTransaction verifies tx.Signature against tx.Command's canonical
// encoding using signer.
func VerifyTransaction(signer Signer, tx Transaction) bool {
	return signer.Verify(tx.Command.CanonicalEncode(), tx.Signature)
}
