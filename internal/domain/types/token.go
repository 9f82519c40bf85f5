package types

import (
	"encoding/hex"
	"fmt"
	"time"
)

// TokenSize is the byte length of a Temporary Contact Number.
const TokenSize = 16

// Token is a Temporary Contact Number: the unit that is broadcast and observed.
type Token [TokenSize]byte

// ParseToken builds a Token from raw bytes.
func ParseToken(b []byte) (Token, error) {
	var t Token
	if len(b) != TokenSize {
		return t, fmt.Errorf("%w: token: want %d bytes, got %d", ErrMalformedInput, TokenSize, len(b))
	}
	copy(t[:], b)
	return t, nil
}

// ParseTokenHex builds a Token from its hex form.
func ParseTokenHex(s string) (Token, error) {
	var t Token
	err := t.UnmarshalText([]byte(s))
	return t, err
}

// String returns the hex form of the token.
func (t Token) String() string { return hex.EncodeToString(t[:]) }

// MarshalText encodes the token as lowercase hex.
func (t Token) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText decodes a hex-encoded token.
func (t *Token) UnmarshalText(b []byte) error { return decodeFixedHex(t[:], b, "token") }

// ObservedTokenRecord is one sighting of a token by the radio layer.
type ObservedTokenRecord struct {
	Seq        uint64    `json:"seq"`
	Token      Token     `json:"token"`
	ObservedAt time.Time `json:"observed_at"`
	Distance   float64   `json:"distance"`
}

// TimeWindow is a closed interval of wall-clock time. A zero bound is open.
type TimeWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}
