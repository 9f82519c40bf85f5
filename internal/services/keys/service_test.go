package keys_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tcncore/internal/domain"
	"tcncore/internal/services/keys"
	"tcncore/internal/store"
)

const pass = "Tr0ub4dor&3-horse"

var t0 = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func newService(t *testing.T) *keys.Service {
	t.Helper()
	ks := store.NewKeyFileStore(t.TempDir(), store.ScryptParams{N: 1 << 10, R: 8, P: 1})
	return keys.New(ks, keys.Policy{
		TokenInterval:     15 * time.Minute,
		RotationPeriod:    24 * time.Hour,
		AcceptanceWindow:  14 * 24 * time.Hour,
		MaxHistoricalKeys: 2,
	}, nil)
}

func TestCurrent_CreatesOnceAndRequiresStrongPassphrase(t *testing.T) {
	svc := newService(t)

	_, err := svc.Current("weak", t0)
	require.ErrorIs(t, err, keys.ErrWeakPassphrase)

	a, err := svc.Current(pass, t0)
	require.NoError(t, err)
	require.NotEqual(t, domain.Seed{}, a.Seed)

	b, err := svc.Current(pass, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)
	require.Equal(t, a.Seed, b.Seed)
}

func TestRotate_RetiresAndKeepsForVerification(t *testing.T) {
	svc := newService(t)
	first, err := svc.Current(pass, t0)
	require.NoError(t, err)

	second, err := svc.Rotate(pass, t0.Add(time.Hour))
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	cur, err := svc.Current(pass, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, second.ID, cur.ID)

	vks, err := svc.AllForVerification(t0.Add(2 * time.Hour))
	require.NoError(t, err)
	require.ElementsMatch(t, []domain.VerificationKey{first.VerificationKey, second.VerificationKey}, vks)

	// After the acceptance window the retired key drops out.
	later := t0.Add(time.Hour + 14*24*time.Hour)
	vks, err = svc.AllForVerification(later)
	require.NoError(t, err)
	require.Equal(t, []domain.VerificationKey{second.VerificationKey}, vks)

	n, err := svc.PruneExpired(later)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	own, err := svc.IsOwn(first.VerificationKey)
	require.NoError(t, err)
	require.False(t, own)
	own, err = svc.IsOwn(second.VerificationKey)
	require.NoError(t, err)
	require.True(t, own)
}

func TestRotateIfDue(t *testing.T) {
	svc := newService(t)
	first, err := svc.Current(pass, t0)
	require.NoError(t, err)

	k, rotated, err := svc.RotateIfDue(pass, t0.Add(23*time.Hour))
	require.NoError(t, err)
	require.False(t, rotated)
	require.Equal(t, first.ID, k.ID)

	k, rotated, err = svc.RotateIfDue(pass, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.True(t, rotated)
	require.NotEqual(t, first.ID, k.ID)
}

func TestPruneExpired_BoundsHistory(t *testing.T) {
	svc := newService(t)
	_, err := svc.Current(pass, t0)
	require.NoError(t, err)
	for i := 1; i <= 4; i++ {
		_, err := svc.Rotate(pass, t0.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	n, err := svc.PruneExpired(t0.Add(5 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, n, "four retired keys trimmed to two")

	vks, err := svc.AllForVerification(t0.Add(5 * time.Hour))
	require.NoError(t, err)
	require.Len(t, vks, 3)
}

func TestNextToken_MonotonicCursor(t *testing.T) {
	svc := newService(t)

	tok0, idx, err := svc.NextToken(pass, t0)
	require.NoError(t, err)
	require.Equal(t, uint32(0), idx)

	tok5, idx, err := svc.NextToken(pass, t0.Add(75*time.Minute))
	require.NoError(t, err)
	require.Equal(t, uint32(5), idx)
	require.NotEqual(t, tok0, tok5)

	// A clock step backwards keeps the cursor.
	again, idx, err := svc.NextToken(pass, t0.Add(10*time.Minute))
	require.NoError(t, err)
	require.Equal(t, uint32(5), idx)
	require.Equal(t, tok5, again)

	cur, err := svc.Current(pass, t0)
	require.NoError(t, err)
	require.Equal(t, uint32(5), cur.Cursor)
}

func TestMarkPublished_Monotonic(t *testing.T) {
	svc := newService(t)
	k, err := svc.Current(pass, t0)
	require.NoError(t, err)

	require.NoError(t, svc.MarkPublished(k.ID, 10))
	require.NoError(t, svc.MarkPublished(k.ID, 4))

	cur, err := svc.Current(pass, t0)
	require.NoError(t, err)
	require.Equal(t, uint32(10), cur.PublishedThrough)

	require.Error(t, svc.MarkPublished("missing", 1))
}
