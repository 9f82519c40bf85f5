package memo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"tcncore/internal/domain"
)

// Version is the symptom layout written by Encode.
const Version uint8 = 1

// Size is the encoded length of a version 1 symptom memo: version, report
// time, earliest symptom time, broadcast start, fever, cough, flags.
const Size = 1 + 8 + 8 + 8 + 1 + 1 + 1

const (
	offFever = 25
	offCough = 26
	offFlags = 27
)

const (
	flagBreathlessness uint8 = 1 << iota
	flagMuscleAches
	flagLossSmellOrTaste
	flagDiarrhea
	flagRunnyNose
	flagOther
	flagNoSymptoms

	knownFlags = flagNoSymptoms<<1 - 1
)

// ErrUnsupportedVersion is returned for memos written by a newer layout.
var ErrUnsupportedVersion = errors.New("unsupported memo version")

// Encode packs m into a typed memo. ReportTime is required.
func Encode(m domain.SymptomMemo) (domain.Memo, error) {
	if m.ReportTime.IsZero() || m.ReportTime.Unix() <= 0 {
		return domain.Memo{}, fmt.Errorf("%w: memo report time is required", domain.ErrMalformedInput)
	}
	if m.Fever > domain.FeverSerious || m.Cough > domain.CoughDry {
		return domain.Memo{}, fmt.Errorf("%w: memo severity out of range", domain.ErrMalformedInput)
	}

	b := make([]byte, Size)
	b[0] = Version
	binary.BigEndian.PutUint64(b[1:9], uint64(m.ReportTime.Unix()))
	if m.EarliestSymptomTime != nil && !m.EarliestSymptomTime.IsZero() {
		if m.EarliestSymptomTime.Unix() <= 0 {
			return domain.Memo{}, fmt.Errorf("%w: earliest symptom time before epoch", domain.ErrMalformedInput)
		}
		binary.BigEndian.PutUint64(b[9:17], uint64(m.EarliestSymptomTime.Unix()))
	}
	if !m.BroadcastFrom.IsZero() {
		if m.BroadcastFrom.Unix() <= 0 {
			return domain.Memo{}, fmt.Errorf("%w: broadcast start before epoch", domain.ErrMalformedInput)
		}
		binary.BigEndian.PutUint64(b[17:25], uint64(m.BroadcastFrom.Unix()))
	}
	b[offFever] = uint8(m.Fever)
	b[offCough] = uint8(m.Cough)
	b[offFlags] = packFlags(m)
	return domain.Memo{Type: domain.MemoTypeSymptomsV1, Data: b}, nil
}

// Decode unpacks a typed memo. Unknown memo types and versions wrap
// ErrUnsupportedVersion; every other problem wraps domain.ErrMalformedInput.
func Decode(memo domain.Memo) (domain.SymptomMemo, error) {
	var m domain.SymptomMemo
	if memo.Type != domain.MemoTypeSymptomsV1 {
		return m, fmt.Errorf("%w: memo type %d", ErrUnsupportedVersion, memo.Type)
	}
	b := memo.Data
	if len(b) == 0 {
		return m, fmt.Errorf("%w: empty memo", domain.ErrMalformedInput)
	}
	if b[0] != Version {
		return m, fmt.Errorf("%w: %d", ErrUnsupportedVersion, b[0])
	}
	if len(b) != Size {
		return m, fmt.Errorf("%w: memo length %d, want %d", domain.ErrMalformedInput, len(b), Size)
	}

	m.Version = b[0]
	rt := binary.BigEndian.Uint64(b[1:9])
	if rt == 0 || rt > 1<<62 {
		return m, fmt.Errorf("%w: memo report time out of range", domain.ErrMalformedInput)
	}
	m.ReportTime = time.Unix(int64(rt), 0).UTC()
	if est := binary.BigEndian.Uint64(b[9:17]); est != 0 {
		if est > 1<<62 {
			return m, fmt.Errorf("%w: earliest symptom time out of range", domain.ErrMalformedInput)
		}
		t := time.Unix(int64(est), 0).UTC()
		m.EarliestSymptomTime = &t
	}
	if from := binary.BigEndian.Uint64(b[17:25]); from != 0 {
		if from > 1<<62 {
			return m, fmt.Errorf("%w: broadcast start out of range", domain.ErrMalformedInput)
		}
		m.BroadcastFrom = time.Unix(int64(from), 0).UTC()
	}
	if b[offFever] > uint8(domain.FeverSerious) || b[offCough] > uint8(domain.CoughDry) {
		return m, fmt.Errorf("%w: memo severity out of range", domain.ErrMalformedInput)
	}
	m.Fever = domain.FeverSeverity(b[offFever])
	m.Cough = domain.CoughSeverity(b[offCough])
	if b[offFlags]&^knownFlags != 0 {
		return m, fmt.Errorf("%w: unknown memo flags %#x", domain.ErrMalformedInput, b[offFlags])
	}
	unpackFlags(b[offFlags], &m)
	return m, nil
}

func packFlags(m domain.SymptomMemo) uint8 {
	var f uint8
	set := func(on bool, bit uint8) {
		if on {
			f |= bit
		}
	}
	set(m.Breathlessness, flagBreathlessness)
	set(m.MuscleAches, flagMuscleAches)
	set(m.LossSmellOrTaste, flagLossSmellOrTaste)
	set(m.Diarrhea, flagDiarrhea)
	set(m.RunnyNose, flagRunnyNose)
	set(m.Other, flagOther)
	set(m.NoSymptoms, flagNoSymptoms)
	return f
}

func unpackFlags(f uint8, m *domain.SymptomMemo) {
	m.Breathlessness = f&flagBreathlessness != 0
	m.MuscleAches = f&flagMuscleAches != 0
	m.LossSmellOrTaste = f&flagLossSmellOrTaste != 0
	m.Diarrhea = f&flagDiarrhea != 0
	m.RunnyNose = f&flagRunnyNose != 0
	m.Other = f&flagOther != 0
	m.NoSymptoms = f&flagNoSymptoms != 0
}
