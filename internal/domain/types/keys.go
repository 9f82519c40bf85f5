package types

import (
	"encoding/hex"
	"fmt"
	"time"
)

// SeedSize is the byte length of a Report Authorization Key seed.
const SeedSize = 32

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// MarshalText encodes the key as lowercase hex.
func (p Ed25519Public) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(p[:])), nil
}

// UnmarshalText decodes a hex-encoded key.
func (p *Ed25519Public) UnmarshalText(b []byte) error {
	return decodeFixedHex(p[:], b, "ed25519 public key")
}

// Ed25519Private is an Ed25519 signing private key (ed25519.PrivateKey layout).
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// VerificationKey is the public half of a RAK, embedded in every report.
type VerificationKey = Ed25519Public

// Seed is the private material of a Report Authorization Key.
type Seed [SeedSize]byte

// Slice returns the seed as a []byte.
func (s Seed) Slice() []byte { return s[:] }

// ReportAuthorizationKey is a device-owned RAK and its ratchet bookkeeping.
//
// Seed never leaves the key store in plaintext form; everything else is
// public metadata.
type ReportAuthorizationKey struct {
	ID              KeyID           `json:"id"`
	Seed            Seed            `json:"-"`
	VerificationKey VerificationKey `json:"verification_key"`
	CreatedAt       time.Time       `json:"created_at"`
	// RetiredAt is set when a newer key replaced this one.
	RetiredAt time.Time `json:"retired_at,omitempty"`
	// ExpiresAt is when the key leaves the verification set.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	// Cursor is the highest ratchet index handed out for broadcast.
	Cursor uint32 `json:"cursor"`
	// PublishedThrough is the exclusive end of the last published range.
	PublishedThrough uint32 `json:"published_through"`
}

// Retired reports whether the key has been rotated out.
func (k ReportAuthorizationKey) Retired() bool { return !k.RetiredAt.IsZero() }

// Expired reports whether the key is past its acceptance window at now.
func (k ReportAuthorizationKey) Expired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && !now.Before(k.ExpiresAt)
}

// IndexAt maps a wall-clock time to a ratchet index for this key.
func (k ReportAuthorizationKey) IndexAt(now time.Time, interval time.Duration) uint32 {
	if interval <= 0 || now.Before(k.CreatedAt) {
		return 0
	}
	n := now.Sub(k.CreatedAt) / interval
	if n > 1<<32-1 {
		return 1<<32 - 1
	}
	return uint32(n)
}

func decodeFixedHex(dst, src []byte, what string) error {
	if hex.DecodedLen(len(src)) != len(dst) {
		return fmt.Errorf("%w: %s: want %d bytes, got %d", ErrMalformedInput, what, len(dst), hex.DecodedLen(len(src)))
	}
	if _, err := hex.Decode(dst, src); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedInput, what, err)
	}
	return nil
}
