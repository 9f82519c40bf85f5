package report

import (
	"fmt"
	"time"

	"tcncore/internal/crypto"
	"tcncore/internal/domain"
	"tcncore/internal/protocol/ratchet"
)

// DefaultMaxLength is fourteen days of fifteen-minute token periods.
const DefaultMaxLength = 14 * 24 * 4

// BuildOptions bounds what Build accepts.
type BuildOptions struct {
	// MaxLength caps the number of indices per report.
	MaxLength uint32
	// ReplayTolerance is how far start may reach back into an already
	// published range.
	ReplayTolerance uint32
	Now             time.Time
}

// Build signs a report disclosing [start, start+length) of rak's ratchet.
func Build(rak domain.ReportAuthorizationKey, start, length uint32, memo domain.Memo, opts BuildOptions) (domain.Report, error) {
	maxLen := opts.MaxLength
	if maxLen == 0 {
		maxLen = DefaultMaxLength
	}
	switch {
	case length == 0:
		return domain.Report{}, fmt.Errorf("%w: report length must be positive", domain.ErrMalformedInput)
	case length > maxLen:
		return domain.Report{}, fmt.Errorf("%w: report length %d exceeds %d", domain.ErrMalformedInput, length, maxLen)
	case uint64(start)+uint64(length) > ratchet.MaxIndex+1:
		return domain.Report{}, fmt.Errorf("%w: report range overflows index space", domain.ErrMalformedInput)
	case len(memo.Data) > MaxMemoSize:
		return domain.Report{}, fmt.Errorf("%w: memo of %d bytes exceeds %d", domain.ErrMalformedInput, len(memo.Data), MaxMemoSize)
	case rak.Expired(opts.Now):
		return domain.Report{}, fmt.Errorf("build report with key %s: %w", rak.ID, domain.ErrKeyExpired)
	case uint64(start)+uint64(opts.ReplayTolerance) < uint64(rak.PublishedThrough):
		return domain.Report{}, fmt.Errorf(
			"%w: start %d reaches back past published index %d",
			domain.ErrMalformedInput, start, rak.PublishedThrough,
		)
	}

	m, err := crypto.DeriveRAK(rak.Seed)
	if err != nil {
		return domain.Report{}, err
	}
	defer m.Wipe()

	rt, err := ratchet.New(m.RatchetRoot[:], m.VerificationKey)
	if err != nil {
		return domain.Report{}, err
	}
	nodes, err := rt.Disclose(start, length)
	if err != nil {
		return domain.Report{}, err
	}

	r := domain.Report{
		VerificationKey: m.VerificationKey,
		Start:           start,
		Length:          length,
		Disclosure:      nodes,
		Memo:            domain.Memo{Type: memo.Type, Data: append([]byte(nil), memo.Data...)},
	}
	r.Signature = crypto.SignEd25519(m.SigningKey, Canonical(r))
	return r, nil
}
