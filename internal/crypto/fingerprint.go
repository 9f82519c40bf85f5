package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"tcncore/internal/domain"
)

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}

// KeyIDFor names a RAK by the fingerprint of its verification key.
func KeyIDFor(vk domain.VerificationKey) domain.KeyID {
	return domain.KeyID(Fingerprint(vk.Slice()))
}
