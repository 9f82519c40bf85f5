package ratchet

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"iter"

	"golang.org/x/crypto/hkdf"

	"tcncore/internal/domain"
)

// Depth is the height of the tree; leaves sit at height 0, the root at Depth.
const Depth = 32

// MaxIndex is the last addressable ratchet index.
const MaxIndex = 1<<Depth - 1

const tokenDomain = "tcn|token|v1"

var childInfo = [2][]byte{[]byte("tcn|node|0"), []byte("tcn|node|1")}

// Node is one disclosed subtree root.
type Node = domain.RatchetNode

// Ratchet derives the token sequence of a single Report Authorization Key.
//
// A Ratchet is immutable and safe for concurrent use.
type Ratchet struct {
	root [32]byte
	vk   domain.VerificationKey
}

// New returns a Ratchet for the given tree root and verification key.
func New(root []byte, vk domain.VerificationKey) (*Ratchet, error) {
	if len(root) != 32 {
		return nil, fmt.Errorf("%w: ratchet root: want 32 bytes, got %d", domain.ErrMalformedInput, len(root))
	}
	r := &Ratchet{vk: vk}
	copy(r.root[:], root)
	return r, nil
}

// VerificationKey returns the key that every token is bound to.
func (r *Ratchet) VerificationKey() domain.VerificationKey { return r.vk }

// Token returns the token at index.
func (r *Ratchet) Token(index uint32) domain.Token {
	leaf := descend(r.root, Depth, 0, uint32(index))
	return tokenFor(r.vk, index, leaf)
}

// Tokens lazily yields (index, token) pairs for [start, start+length) in
// index order.
func (r *Ratchet) Tokens(start, length uint32) (iter.Seq2[uint32, domain.Token], error) {
	nodes, err := r.Disclose(start, length)
	if err != nil {
		return nil, err
	}
	return expandAll(r.vk, nodes), nil
}

// Disclose returns the minimal set of subtree roots that covers exactly
// [start, start+length).
func (r *Ratchet) Disclose(start, length uint32) ([]Node, error) {
	shape, err := Cover(start, length)
	if err != nil {
		return nil, err
	}
	for i := range shape {
		shape[i].Value = descend(r.root, Depth, shape[i].Height, shape[i].Prefix)
	}
	return shape, nil
}

// Cover computes the minimal dyadic cover of [start, start+length) with node
// values left zero.
func Cover(start, length uint32) ([]Node, error) {
	if length == 0 {
		return nil, fmt.Errorf("%w: empty ratchet range", domain.ErrMalformedInput)
	}
	pos, end := uint64(start), uint64(start)+uint64(length)
	if end > MaxIndex+1 {
		return nil, fmt.Errorf("%w: ratchet range overflows index space", domain.ErrMalformedInput)
	}
	var out []Node
	for pos < end {
		h := uint8(0)
		for h+1 < Depth && pos&(uint64(1)<<(h+1)-1) == 0 && pos+uint64(1)<<(h+1) <= end {
			h++
		}
		out = append(out, Node{Height: h, Prefix: uint32(pos >> h)})
		pos += uint64(1) << h
	}
	return out, nil
}

// Disclosed is the verifier's view of a report's disclosure: it can derive
// the declared tokens and nothing else.
type Disclosed struct {
	vk    domain.VerificationKey
	start uint32
	end   uint64
	nodes []Node
}

// Open checks that nodes are exactly the minimal cover of
// [start, start+length) and returns the disclosed range.
func Open(vk domain.VerificationKey, start, length uint32, nodes []Node) (*Disclosed, error) {
	want, err := Cover(start, length)
	if err != nil {
		return nil, err
	}
	if len(nodes) != len(want) {
		return nil, fmt.Errorf("%w: disclosure has %d nodes, range needs %d", domain.ErrMalformedInput, len(nodes), len(want))
	}
	for i, n := range nodes {
		if n.Height != want[i].Height || n.Prefix != want[i].Prefix {
			return nil, fmt.Errorf("%w: disclosure node %d does not match range", domain.ErrMalformedInput, i)
		}
	}
	return &Disclosed{
		vk:    vk,
		start: start,
		end:   uint64(start) + uint64(length),
		nodes: append([]Node(nil), nodes...),
	}, nil
}

// Start returns the first disclosed index.
func (d *Disclosed) Start() uint32 { return d.start }

// Len returns the number of disclosed indices.
func (d *Disclosed) Len() uint32 { return uint32(d.end - uint64(d.start)) }

// Tokens yields every disclosed (index, token) pair in index order.
func (d *Disclosed) Tokens() iter.Seq2[uint32, domain.Token] { return expandAll(d.vk, d.nodes) }

// Token returns the token at index, which must lie inside the disclosed range.
func (d *Disclosed) Token(index uint32) (domain.Token, error) {
	if uint64(index) < uint64(d.start) || uint64(index) >= d.end {
		return domain.Token{}, fmt.Errorf("%w: index %d outside disclosed range", domain.ErrMalformedInput, index)
	}
	for _, n := range d.nodes {
		if uint64(index) >= n.First() && uint64(index) < n.First()+n.Span() {
			leaf := descend(n.Value, n.Height, 0, index)
			return tokenFor(d.vk, index, leaf), nil
		}
	}
	// Unreachable: Open guarantees the nodes tile the range.
	return domain.Token{}, fmt.Errorf("%w: index %d not covered", domain.ErrMalformedInput, index)
}

// TokenSet maps every disclosed token to its index.
func (d *Disclosed) TokenSet() map[domain.Token]uint32 {
	out := make(map[domain.Token]uint32, d.Len())
	for i, tok := range d.Tokens() {
		out[tok] = i
	}
	return out
}

func expandAll(vk domain.VerificationKey, nodes []Node) iter.Seq2[uint32, domain.Token] {
	return func(yield func(uint32, domain.Token) bool) {
		for _, n := range nodes {
			if !expand(vk, n.Value, n.Height, n.Prefix, yield) {
				return
			}
		}
	}
}

// expand walks the subtree depth-first, left to right.
func expand(vk domain.VerificationKey, value [32]byte, height uint8, prefix uint32, yield func(uint32, domain.Token) bool) bool {
	if height == 0 {
		return yield(prefix, tokenFor(vk, prefix, value))
	}
	if !expand(vk, child(value, 0), height-1, prefix<<1, yield) {
		return false
	}
	return expand(vk, child(value, 1), height-1, prefix<<1|1, yield)
}

// descend walks from a node at height from down to the node at height to
// whose prefix is target.
func descend(value [32]byte, from, to uint8, target uint32) [32]byte {
	for lvl := from; lvl > to; lvl-- {
		bit := (target >> (lvl - 1 - to)) & 1
		value = child(value, bit)
	}
	return value
}

func child(parent [32]byte, bit uint32) [32]byte {
	var out [32]byte
	r := hkdf.Expand(sha256.New, parent[:], childInfo[bit&1])
	// A single SHA-256 block never fails to expand.
	_, _ = io.ReadFull(r, out[:])
	return out
}

func tokenFor(vk domain.VerificationKey, index uint32, leaf [32]byte) domain.Token {
	h := sha256.New()
	h.Write([]byte(tokenDomain))
	h.Write(vk[:])
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)
	h.Write(idx[:])
	h.Write(leaf[:])
	var t domain.Token
	copy(t[:], h.Sum(nil))
	return t
}
