// Package crypto exposes the minimal primitives used by tcncore.
//
// Contents
//
//   - Report Authorization Key seed generation and HKDF splitting into a
//     signing key and a ratchet tree root (NewSeed, DeriveRAK)
//   - Ed25519 signing and verification from a derived seed (Ed25519FromSeed,
//     SignEd25519, VerifyEd25519)
//   - Short public-key fingerprints used as key identifiers (Fingerprint,
//     KeyIDFor)
//   - Base64 helpers for transport encoding (B64, UnB64)
//
// # Notes
//
// All functions return fixed-size array types defined in internal/domain to
// avoid accidental reallocations. Callers should treat returned secrets as
// sensitive and wipe them with RAKMaterial.Wipe or memzero.Zero when done.
package crypto
