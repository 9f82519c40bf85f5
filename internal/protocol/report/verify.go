package report

import (
	"errors"

	"tcncore/internal/crypto"
	"tcncore/internal/domain"
	"tcncore/internal/protocol/memo"
	"tcncore/internal/protocol/ratchet"
)

// VerifyOptions bounds what Verify accepts.
type VerifyOptions struct {
	MaxLength uint32
}

// Verified is a report that passed every check, with its disclosure opened.
type Verified struct {
	domain.VerifiedReport
	Disclosed *ratchet.Disclosed
}

// Verify checks r in order: structure, signature, memo, disclosure. The
// first failing check is returned as a *domain.VerificationError.
func Verify(r domain.Report, opts VerifyOptions) (*Verified, error) {
	maxLen := opts.MaxLength
	if maxLen == 0 {
		maxLen = DefaultMaxLength
	}

	switch {
	case r.Length == 0:
		return nil, domain.Reject(domain.ReasonEmptyRange, "length is zero")
	case r.Length > maxLen:
		return nil, domain.Reject(domain.ReasonRangeTooLarge, "length %d exceeds %d", r.Length, maxLen)
	case r.End() > ratchet.MaxIndex+1:
		return nil, domain.Reject(domain.ReasonRangeOverflow, "start %d length %d", r.Start, r.Length)
	case len(r.Memo.Data) > MaxMemoSize:
		return nil, domain.Reject(domain.ReasonMemoTooLarge, "%d bytes", len(r.Memo.Data))
	case len(r.Disclosure) > maxNodes:
		return nil, domain.Reject(domain.ReasonMalformedDisclosure, "%d nodes", len(r.Disclosure))
	}

	if !crypto.VerifyEd25519(r.VerificationKey, Canonical(r), r.Signature) {
		return nil, domain.Reject(domain.ReasonBadSignature, "")
	}

	symptoms, err := memo.Decode(r.Memo)
	if errors.Is(err, memo.ErrUnsupportedVersion) {
		return nil, domain.Reject(domain.ReasonUnsupportedMemo, "%v", err)
	}
	if err != nil {
		return nil, domain.Reject(domain.ReasonMalformedMemo, "%v", err)
	}

	disclosed, err := ratchet.Open(r.VerificationKey, r.Start, r.Length, r.Disclosure)
	if err != nil {
		return nil, domain.Reject(domain.ReasonMalformedDisclosure, "%v", err)
	}

	return &Verified{
		VerifiedReport: domain.VerifiedReport{ID: ID(r), Report: r, Symptoms: symptoms},
		Disclosed:      disclosed,
	}, nil
}

// DecodeAndVerify parses and verifies wire bytes. Framing errors are
// reported as ReasonMalformedEncoding.
func DecodeAndVerify(b []byte, opts VerifyOptions) (*Verified, error) {
	r, err := Decode(b)
	if err != nil {
		return nil, domain.Reject(domain.ReasonMalformedEncoding, "%v", err)
	}
	return Verify(r, opts)
}
