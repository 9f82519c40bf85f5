// Package ratchet derives the unlinkable token sequence of a Report
// Authorization Key.
//
// Tokens are the leaves of a binary hash tree of height 32 rooted at a
// secret derived from the key seed. Each child is HKDF-Expand of its parent
// under a left or right label, so any node reveals its whole subtree and
// nothing outside it. A token is a truncated SHA-256 digest over the
// verification key, the index and the leaf.
//
// # Disclosure
//
// A report reveals the minimal dyadic cover of its index range: at most two
// nodes per tree level. Open rejects any node list that is not exactly that
// cover, so a verifier can derive the declared tokens, in O(length + 32)
// work, and cannot compute a token before or after the range.
//
// Ratchet and Disclosed values are immutable and safe for concurrent use.
package ratchet
