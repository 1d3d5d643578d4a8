// Package dp implements the distinguished-point wire record and the
// concurrent x-prefix index that collects them during a solve.
package dp

import (
	"fmt"

	"github.com/tos-network/kangaroo/ec"
)

// KeySize is the length of a DP's identifying x-prefix.
const KeySize = 12

// EncodedSize is the on-wire length of a Record.
const EncodedSize = 41

const (
	distanceOffset = 16
	distanceSize   = 22
	typeOffset     = EncodedSize - 1
)

// KangarooType distinguishes a tame walk from the two wild walks.
type KangarooType byte

const (
	TAME  KangarooType = 0
	WILD1 KangarooType = 1
	WILD2 KangarooType = 2
)

func (t KangarooType) String() string {
	switch t {
	case TAME:
		return "tame"
	case WILD1:
		return "wild1"
	case WILD2:
		return "wild2"
	default:
		return fmt.Sprintf("kangaroo-type(%d)", byte(t))
	}
}

// Valid reports whether t is one of TAME, WILD1, WILD2.
func (t KangarooType) Valid() bool {
	return t == TAME || t == WILD1 || t == WILD2
}

// Record is a distinguished point as produced by a walker: a 12-byte
// x-prefix key, a signed 22-byte walk distance, and a kangaroo type.
// It is a small fixed-size value — callers pass it by value.
type Record struct {
	key      [KeySize]byte
	distance [distanceSize]byte
	kind     KangarooType
}

// NewRecord builds a Record from an x-prefix, a signed distance, and a
// kangaroo type. Only the low 22 bytes of dist's two's-complement
// pattern are retained;
// the sign is carried by byte 21 of the stored field (0xFF ⇒ negative).
func NewRecord(key [KeySize]byte, dist ec.Scalar, kind KangarooType) Record {
	var r Record
	r.key = key
	r.kind = kind

	b := dist.Bytes() // big-endian 32 bytes
	// Keep the low 22 bytes, stored little-endian as the wire layout
	// requires: byte 0 of the distance field is the least significant
	// byte, byte 21 the most significant (and therefore the sign byte
	// for sign-extension).
	for i := 0; i < distanceSize; i++ {
		r.distance[i] = b[31-i]
	}
	return r
}

// Key returns the 12-byte x-prefix.
func (r Record) Key() [KeySize]byte { return r.key }

// Type returns the kangaroo type.
func (r Record) Type() KangarooType { return r.kind }

// Distance reconstructs the full-width signed scalar from the 22-byte
// on-wire field, sign-extending through the upper 10 bytes when byte 21
// (the field's most significant byte) is 0xFF.
func (r Record) Distance() ec.Scalar {
	var b [32]byte
	negative := r.distance[distanceSize-1] == 0xFF
	if negative {
		for i := 0; i < len(b); i++ {
			b[i] = 0xFF
		}
	}
	for i := 0; i < distanceSize; i++ {
		b[31-i] = r.distance[i]
	}
	return ec.SetBytes(b)
}

// Encode serialises r into its 41-byte wire layout: 12-byte key, 4
// reserved/padding bytes, 22-byte signed distance, 1-byte type.
func (r Record) Encode() [EncodedSize]byte {
	var out [EncodedSize]byte
	copy(out[0:KeySize], r.key[:])
	copy(out[distanceOffset:distanceOffset+distanceSize], r.distance[:])
	out[typeOffset] = byte(r.kind)
	return out
}

// DecodeRecord parses a 41-byte wire record.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) != EncodedSize {
		return Record{}, fmt.Errorf("dp: record must be %d bytes, got %d", EncodedSize, len(b))
	}
	var r Record
	copy(r.key[:], b[0:KeySize])
	copy(r.distance[:], b[distanceOffset:distanceOffset+distanceSize])
	r.kind = KangarooType(b[typeOffset])
	if !r.kind.Valid() {
		return Record{}, fmt.Errorf("dp: invalid kangaroo type %d", b[typeOffset])
	}
	return r, nil
}
