package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tcncore/internal/crypto"
	"tcncore/internal/domain"
)

func TestDeriveRAK_DeterministicAndSeparated(t *testing.T) {
	seed := domain.Seed{1, 2, 3}

	a, err := crypto.DeriveRAK(seed)
	require.NoError(t, err)
	b, err := crypto.DeriveRAK(seed)
	require.NoError(t, err)

	require.Equal(t, a.VerificationKey, b.VerificationKey)
	require.Equal(t, a.RatchetRoot, b.RatchetRoot)
	require.NotEqual(t, a.RatchetRoot[:], a.SigningKey[:32], "root must not equal signing seed")

	other, err := crypto.DeriveRAK(domain.Seed{9})
	require.NoError(t, err)
	require.NotEqual(t, a.VerificationKey, other.VerificationKey)
}

func TestSignVerify(t *testing.T) {
	m, err := crypto.DeriveRAK(domain.Seed{7})
	require.NoError(t, err)

	msg := []byte("hello")
	sig := crypto.SignEd25519(m.SigningKey, msg)
	require.True(t, crypto.VerifyEd25519(m.VerificationKey, msg, sig))
	require.False(t, crypto.VerifyEd25519(m.VerificationKey, []byte("hellO"), sig))
	require.False(t, crypto.VerifyEd25519(m.VerificationKey, msg, sig[:10]))
}

func TestWipe(t *testing.T) {
	m, err := crypto.DeriveRAK(domain.Seed{7})
	require.NoError(t, err)
	m.Wipe()
	require.Equal(t, [32]byte{}, m.RatchetRoot)
	require.Equal(t, domain.Ed25519Private{}, m.SigningKey)
}

func TestKeyIDFor(t *testing.T) {
	id := crypto.KeyIDFor(domain.VerificationKey{1})
	require.Len(t, id.String(), 20)
	require.Equal(t, id, crypto.KeyIDFor(domain.VerificationKey{1}))
}
