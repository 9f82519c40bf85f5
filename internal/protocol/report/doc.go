// Package report builds, encodes and verifies signed exposure reports.
//
// # Wire format
//
// All integers are big-endian.
//
//	"TCNREPORT/v1" | verification key(32) | start(4) | length(4)
//	| node count(1) | nodes: height(1) prefix(4) value(32)
//	| memo type(1) | memo length(2) | memo
//	| Ed25519 signature(64)
//
// Everything before the signature is the canonical form; it is what gets
// signed and what the report ID digests. Two reports over the same key and
// range but with different memos therefore have different IDs.
//
// # Verification
//
// Verify runs, in order and stopping at the first failure: structural limits,
// the signature, the memo type and version, then the disclosure shape. A
// failure is a *domain.VerificationError carrying a typed reason; messages
// never include key bytes.
package report
