package report_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tcncore/internal/crypto"
	"tcncore/internal/domain"
	"tcncore/internal/protocol/memo"
	"tcncore/internal/protocol/ratchet"
	"tcncore/internal/protocol/report"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func makeRAK(t *testing.T, fill byte) domain.ReportAuthorizationKey {
	t.Helper()
	seed := domain.Seed{fill}
	vk, err := crypto.VerificationKeyFor(seed)
	require.NoError(t, err)
	return domain.ReportAuthorizationKey{
		ID:              crypto.KeyIDFor(vk),
		Seed:            seed,
		VerificationKey: vk,
		CreatedAt:       now.Add(-24 * time.Hour),
	}
}

func makeMemo(t *testing.T, fever domain.FeverSeverity) domain.Memo {
	t.Helper()
	m, err := memo.Encode(domain.SymptomMemo{ReportTime: now, Fever: fever})
	require.NoError(t, err)
	return m
}

func reason(t *testing.T, err error) domain.VerificationReason {
	t.Helper()
	require.ErrorIs(t, err, domain.ErrVerificationFailure)
	var ve *domain.VerificationError
	require.True(t, errors.As(err, &ve))
	return ve.Reason
}

func TestBuildVerify_RoundTrip(t *testing.T) {
	rak := makeRAK(t, 1)
	r, err := report.Build(rak, 20, 90, makeMemo(t, domain.FeverMild), report.BuildOptions{Now: now})
	require.NoError(t, err)

	wire := report.Encode(r)
	decoded, err := report.Decode(wire)
	require.NoError(t, err)
	require.Equal(t, r, decoded)

	v, err := report.Verify(decoded, report.VerifyOptions{})
	require.NoError(t, err)
	require.Equal(t, report.ID(r), v.ID)
	require.Equal(t, domain.FeverMild, v.Symptoms.Fever)

	m, err := crypto.DeriveRAK(rak.Seed)
	require.NoError(t, err)
	rt, err := ratchet.New(m.RatchetRoot[:], m.VerificationKey)
	require.NoError(t, err)

	n := 0
	for i, tok := range v.Disclosed.Tokens() {
		require.Equal(t, rt.Token(i), tok)
		n++
	}
	require.Equal(t, 90, n)
}

func TestBuild_Rejects(t *testing.T) {
	rak := makeRAK(t, 1)
	memo := makeMemo(t, domain.FeverNone)
	opts := report.BuildOptions{Now: now, ReplayTolerance: 4}

	_, err := report.Build(rak, 0, 0, memo, opts)
	require.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = report.Build(rak, 0, report.DefaultMaxLength+1, memo, opts)
	require.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = report.Build(rak, ratchet.MaxIndex, 2, memo, opts)
	require.ErrorIs(t, err, domain.ErrMalformedInput)

	// Rotation alone does not stop a key from reporting its past tokens.
	retired := rak
	retired.RetiredAt = now.Add(-time.Hour)
	retired.ExpiresAt = now.Add(13 * 24 * time.Hour)
	_, err = report.Build(retired, 0, 4, memo, opts)
	require.NoError(t, err)

	expired := rak
	expired.ExpiresAt = now
	_, err = report.Build(expired, 0, 4, memo, opts)
	require.ErrorIs(t, err, domain.ErrKeyExpired)

	published := rak
	published.PublishedThrough = 100
	_, err = report.Build(published, 95, 10, memo, opts)
	require.ErrorIs(t, err, domain.ErrMalformedInput)
	_, err = report.Build(published, 96, 10, memo, opts)
	require.NoError(t, err)
}

func TestVerify_TamperedSignature(t *testing.T) {
	r, err := report.Build(makeRAK(t, 1), 0, 8, makeMemo(t, domain.FeverNone), report.BuildOptions{Now: now})
	require.NoError(t, err)

	r.Signature[0] ^= 0xff
	_, err = report.Verify(r, report.VerifyOptions{})
	require.Equal(t, domain.ReasonBadSignature, reason(t, err))
}

func TestVerify_TamperedRange(t *testing.T) {
	r, err := report.Build(makeRAK(t, 1), 0, 8, makeMemo(t, domain.FeverNone), report.BuildOptions{Now: now})
	require.NoError(t, err)

	r.Length = 9
	_, err = report.Verify(r, report.VerifyOptions{})
	require.Equal(t, domain.ReasonBadSignature, reason(t, err))
}

func TestVerify_StructureCheckedFirst(t *testing.T) {
	r, err := report.Build(makeRAK(t, 1), 0, 8, makeMemo(t, domain.FeverNone), report.BuildOptions{Now: now})
	require.NoError(t, err)

	r.Length = 0
	r.Signature = nil
	_, err = report.Verify(r, report.VerifyOptions{})
	require.Equal(t, domain.ReasonEmptyRange, reason(t, err))

	r.Length = 100
	_, err = report.Verify(r, report.VerifyOptions{MaxLength: 50})
	require.Equal(t, domain.ReasonRangeTooLarge, reason(t, err))

	r.Start, r.Length = ratchet.MaxIndex, 2
	_, err = report.Verify(r, report.VerifyOptions{})
	require.Equal(t, domain.ReasonRangeOverflow, reason(t, err))
}

// signed builds a report with arbitrary fields and a valid signature.
func signed(t *testing.T, rak domain.ReportAuthorizationKey, r domain.Report) domain.Report {
	t.Helper()
	m, err := crypto.DeriveRAK(rak.Seed)
	require.NoError(t, err)
	r.VerificationKey = m.VerificationKey
	r.Signature = crypto.SignEd25519(m.SigningKey, report.Canonical(r))
	return r
}

func TestVerify_UnsupportedMemo(t *testing.T) {
	rak := makeRAK(t, 1)
	good, err := report.Build(rak, 0, 8, makeMemo(t, domain.FeverNone), report.BuildOptions{Now: now})
	require.NoError(t, err)

	bad := good
	bad.Memo = domain.Memo{Type: 42, Data: []byte("x")}
	_, err = report.Verify(signed(t, rak, bad), report.VerifyOptions{})
	require.Equal(t, domain.ReasonUnsupportedMemo, reason(t, err))

	bad.Memo = domain.Memo{Type: domain.MemoTypeSymptomsV1, Data: []byte{memo.Version, 1}}
	_, err = report.Verify(signed(t, rak, bad), report.VerifyOptions{})
	require.Equal(t, domain.ReasonMalformedMemo, reason(t, err))
}

func TestVerify_MalformedDisclosure(t *testing.T) {
	rak := makeRAK(t, 1)
	good, err := report.Build(rak, 3, 7, makeMemo(t, domain.FeverNone), report.BuildOptions{Now: now})
	require.NoError(t, err)

	// A signed report whose nodes reveal more than the declared range.
	bad := good
	bad.Disclosure = []domain.RatchetNode{{Height: 4, Prefix: 0}}
	_, err = report.Verify(signed(t, rak, bad), report.VerifyOptions{})
	require.Equal(t, domain.ReasonMalformedDisclosure, reason(t, err))
}

func TestID_DistinctPayloads(t *testing.T) {
	rak := makeRAK(t, 1)
	a, err := report.Build(rak, 0, 8, makeMemo(t, domain.FeverNone), report.BuildOptions{Now: now})
	require.NoError(t, err)
	b, err := report.Build(rak, 0, 8, makeMemo(t, domain.FeverSerious), report.BuildOptions{Now: now})
	require.NoError(t, err)

	require.NotEqual(t, report.ID(a), report.ID(b))

	again, err := report.Build(rak, 0, 8, makeMemo(t, domain.FeverNone), report.BuildOptions{Now: now})
	require.NoError(t, err)
	require.Equal(t, report.ID(a), report.ID(again))
}

func TestDecode_Framing(t *testing.T) {
	r, err := report.Build(makeRAK(t, 1), 0, 8, makeMemo(t, domain.FeverNone), report.BuildOptions{Now: now})
	require.NoError(t, err)
	wire := report.Encode(r)

	_, err = report.Decode(wire[:len(wire)-1])
	require.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = report.Decode(append(append([]byte(nil), wire...), 0))
	require.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = report.Decode([]byte("garbage"))
	require.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = report.DecodeAndVerify([]byte("garbage"), report.VerifyOptions{})
	require.Equal(t, domain.ReasonMalformedEncoding, reason(t, err))
}
