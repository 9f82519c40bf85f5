package report

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"tcncore/internal/crypto"
	"tcncore/internal/domain"
	"tcncore/internal/protocol/ratchet"
)

const (
	magic = "TCNREPORT/v1"

	nodeSize = 1 + 4 + 32

	// MaxMemoSize bounds the memo payload.
	MaxMemoSize = 1024

	// maxNodes is the largest minimal cover of any 32-bit range.
	maxNodes = 2 * ratchet.Depth
)

// Canonical returns the bytes covered by the report signature.
func Canonical(r domain.Report) []byte {
	var buf bytes.Buffer
	buf.Grow(len(magic) + 32 + 4 + 4 + 1 + len(r.Disclosure)*nodeSize + 1 + 2 + len(r.Memo.Data))

	buf.WriteString(magic)
	buf.Write(r.VerificationKey[:])
	buf.Write(binary.BigEndian.AppendUint32(nil, r.Start))
	buf.Write(binary.BigEndian.AppendUint32(nil, r.Length))
	buf.WriteByte(byte(len(r.Disclosure)))
	for _, n := range r.Disclosure {
		buf.WriteByte(n.Height)
		buf.Write(binary.BigEndian.AppendUint32(nil, n.Prefix))
		buf.Write(n.Value[:])
	}
	buf.WriteByte(byte(r.Memo.Type))
	buf.Write(binary.BigEndian.AppendUint16(nil, uint16(len(r.Memo.Data))))
	buf.Write(r.Memo.Data)
	return buf.Bytes()
}

// Encode returns the wire form: canonical bytes followed by the signature.
func Encode(r domain.Report) []byte {
	return append(Canonical(r), r.Signature...)
}

// ID returns the report identifier: hex SHA-256 of the canonical bytes.
func ID(r domain.Report) domain.ReportID {
	sum := sha256.Sum256(Canonical(r))
	return domain.ReportID(hex.EncodeToString(sum[:]))
}

// Decode parses the wire form. It checks framing only; use Verify for
// everything else.
func Decode(b []byte) (domain.Report, error) {
	var r domain.Report
	d := decoder{b: b}

	if string(d.next(len(magic))) != magic {
		return r, malformed("bad magic")
	}
	copy(r.VerificationKey[:], d.next(32))
	r.Start = d.u32()
	r.Length = d.u32()

	count := int(d.u8())
	if count > maxNodes {
		return r, malformed("disclosure has %d nodes", count)
	}
	if count > 0 {
		r.Disclosure = make([]domain.RatchetNode, 0, count)
	}
	for i := 0; i < count && d.err == nil; i++ {
		var n domain.RatchetNode
		n.Height = d.u8()
		n.Prefix = d.u32()
		copy(n.Value[:], d.next(32))
		r.Disclosure = append(r.Disclosure, n)
	}

	r.Memo.Type = domain.MemoType(d.u8())
	memoLen := int(d.u16())
	if memoLen > MaxMemoSize {
		return r, malformed("memo of %d bytes", memoLen)
	}
	r.Memo.Data = append([]byte(nil), d.next(memoLen)...)
	r.Signature = append([]byte(nil), d.next(crypto.SignatureSize)...)

	if d.err != nil {
		return domain.Report{}, d.err
	}
	if len(d.b) != 0 {
		return domain.Report{}, malformed("%d trailing bytes", len(d.b))
	}
	return r, nil
}

type decoder struct {
	b   []byte
	err error
}

func (d *decoder) next(n int) []byte {
	if d.err != nil {
		return make([]byte, n)
	}
	if len(d.b) < n {
		d.err = malformed("truncated report")
		return make([]byte, n)
	}
	out := d.b[:n]
	d.b = d.b[n:]
	return out
}

func (d *decoder) u8() uint8   { return d.next(1)[0] }
func (d *decoder) u16() uint16 { return binary.BigEndian.Uint16(d.next(2)) }
func (d *decoder) u32() uint32 { return binary.BigEndian.Uint32(d.next(4)) }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedInput, fmt.Sprintf(format, args...))
}
