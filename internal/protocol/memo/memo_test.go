package memo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tcncore/internal/domain"
	"tcncore/internal/protocol/memo"
)

func TestEncodeDecode_AllFields(t *testing.T) {
	earliest := time.Unix(1589209754, 0).UTC()
	in := domain.SymptomMemo{
		ReportTime:          time.Unix(1589300000, 0).UTC(),
		EarliestSymptomTime: &earliest,
		BroadcastFrom:       time.Unix(1588100000, 0).UTC(),
		Fever:               domain.FeverSerious,
		Cough:               domain.CoughExisting,
		Breathlessness:      true,
		LossSmellOrTaste:    true,
		Other:               true,
	}
	m, err := memo.Encode(in)
	require.NoError(t, err)
	require.Equal(t, domain.MemoTypeSymptomsV1, m.Type)
	require.Len(t, m.Data, memo.Size)

	out, err := memo.Decode(m)
	require.NoError(t, err)
	in.Version = memo.Version
	require.Equal(t, in, out)
}

func TestEncode_NoSymptoms(t *testing.T) {
	m, err := memo.Encode(domain.SymptomMemo{ReportTime: time.Unix(1, 0), NoSymptoms: true})
	require.NoError(t, err)
	out, err := memo.Decode(m)
	require.NoError(t, err)
	require.Nil(t, out.EarliestSymptomTime)
	require.True(t, out.BroadcastFrom.IsZero())
	require.True(t, out.NoSymptoms)
	require.False(t, out.HasSymptoms())
}

func TestEncode_RequiresReportTime(t *testing.T) {
	_, err := memo.Encode(domain.SymptomMemo{Fever: domain.FeverMild})
	require.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestDecode_Rejects(t *testing.T) {
	good, err := memo.Encode(domain.SymptomMemo{ReportTime: time.Unix(100, 0)})
	require.NoError(t, err)

	_, err = memo.Decode(domain.Memo{Type: 9, Data: good.Data})
	require.ErrorIs(t, err, memo.ErrUnsupportedVersion)

	future := append([]byte(nil), good.Data...)
	future[0] = 2
	_, err = memo.Decode(domain.Memo{Type: domain.MemoTypeSymptomsV1, Data: future})
	require.ErrorIs(t, err, memo.ErrUnsupportedVersion)

	_, err = memo.Decode(domain.Memo{Type: domain.MemoTypeSymptomsV1, Data: good.Data[:10]})
	require.ErrorIs(t, err, domain.ErrMalformedInput)

	badFever := append([]byte(nil), good.Data...)
	badFever[25] = 7
	_, err = memo.Decode(domain.Memo{Type: domain.MemoTypeSymptomsV1, Data: badFever})
	require.ErrorIs(t, err, domain.ErrMalformedInput)

	badFlags := append([]byte(nil), good.Data...)
	badFlags[27] = 0x80
	_, err = memo.Decode(domain.Memo{Type: domain.MemoTypeSymptomsV1, Data: badFlags})
	require.ErrorIs(t, err, domain.ErrMalformedInput)
}
