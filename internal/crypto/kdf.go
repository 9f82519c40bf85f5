package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"tcncore/internal/domain"
	"tcncore/internal/util/memzero"
)

const (
	signingInfo = "tcn/rak/signing/v1"
	ratchetInfo = "tcn/rak/ratchet-root/v1"
)

// RAKMaterial is everything derived from a Report Authorization Key seed.
type RAKMaterial struct {
	SigningKey      domain.Ed25519Private
	VerificationKey domain.VerificationKey
	RatchetRoot     [32]byte
}

// Wipe zeroes the secret parts of m.
func (m *RAKMaterial) Wipe() {
	memzero.Zero(m.SigningKey[:])
	memzero.Zero(m.RatchetRoot[:])
}

// NewSeed returns a fresh random RAK seed.
func NewSeed() (domain.Seed, error) {
	var s domain.Seed
	if _, err := rand.Read(s[:]); err != nil {
		return s, fmt.Errorf("generate seed: %w", err)
	}
	return s, nil
}

// DeriveRAK splits seed into an Ed25519 signing key and a ratchet tree root
// using HKDF-SHA256 with distinct info labels.
func DeriveRAK(seed domain.Seed) (RAKMaterial, error) {
	var m RAKMaterial
	var signSeed [32]byte
	defer memzero.Zero(signSeed[:])

	if err := expand(seed[:], signingInfo, signSeed[:]); err != nil {
		return m, err
	}
	if err := expand(seed[:], ratchetInfo, m.RatchetRoot[:]); err != nil {
		return m, err
	}
	m.SigningKey, m.VerificationKey = Ed25519FromSeed(signSeed)
	return m, nil
}

// VerificationKeyFor derives only the public verification key for seed.
func VerificationKeyFor(seed domain.Seed) (domain.VerificationKey, error) {
	m, err := DeriveRAK(seed)
	if err != nil {
		return domain.VerificationKey{}, err
	}
	defer m.Wipe()
	return m.VerificationKey, nil
}

func expand(secret []byte, info string, out []byte) error {
	r := hkdf.New(sha256.New, secret, nil, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return fmt.Errorf("hkdf %s: %w", info, err)
	}
	return nil
}
