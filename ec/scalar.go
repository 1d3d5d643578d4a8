// Package ec wraps the secp256k1 operations the kangaroo solver needs: a
// fixed-width 256-bit signed scalar with two's-complement-style sign
// extension, and an affine curve point backed by btcec/secp256k1.
package ec

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"
)

// Scalar is a 256-bit signed integer, mirroring the original EcInt's
// fixed-width representation. It is backed by uint256.Int (four
// little-endian 64-bit limbs, Limb(0) least significant) the same way
// EVM opcodes layer SDiv/SMod/SAR's two's-complement semantics on top
// of the same unsigned type — arithmetic wraps modulo 2^256; callers
// that need values reduced modulo the curve order go through ModN.
type Scalar struct {
	v uint256.Int
}

// NewScalar returns the zero scalar.
func NewScalar() Scalar { return Scalar{} }

// ScalarFromUint64 returns a scalar equal to v.
func ScalarFromUint64(v uint64) Scalar {
	var s Scalar
	s.v.SetUint64(v)
	return s
}

// Limb returns the i'th 64-bit little-endian limb (i in [0,4)).
func (s Scalar) Limb(i int) uint64 { return s.v[i] }

// SetLimb sets the i'th limb and returns the scalar.
func (s Scalar) SetLimb(i int, v uint64) Scalar {
	s.v[i] = v
	return s
}

// IsNeg reports whether the scalar's sign bit (bit 255) is set.
func (s Scalar) IsNeg() bool { return s.v[3]>>63 != 0 }

// Add returns s + other, wrapping modulo 2^256.
func (s Scalar) Add(other Scalar) Scalar {
	var out Scalar
	out.v.Add(&s.v, &other.v)
	return out
}

// Sub returns s - other, wrapping modulo 2^256.
func (s Scalar) Sub(other Scalar) Scalar {
	var out Scalar
	out.v.Sub(&s.v, &other.v)
	return out
}

// Neg returns the two's-complement negation of s.
func (s Scalar) Neg() Scalar {
	var out Scalar
	out.v.Sub(uint256.NewInt(0), &s.v)
	return out
}

// ShiftLeft returns s << n (0 <= n < 256), discarding overflow bits above 255.
func (s Scalar) ShiftLeft(n int) Scalar {
	if n <= 0 {
		return s
	}
	if n >= 256 {
		return Scalar{}
	}
	var out Scalar
	out.v.Lsh(&s.v, uint(n))
	return out
}

// ShiftRight1 returns s >> 1, an unsigned (logical) shift of the raw 256-bit
// pattern — matching the reference's ShiftRight(1) call in the resolver,
// which operates on the already sign-normalised magnitude.
func (s Scalar) ShiftRight1() Scalar {
	var out Scalar
	out.v.Rsh(&s.v, 1)
	return out
}

// BitLen returns the number of bits needed to represent s, treating it as
// an unsigned 256-bit pattern (matches EcInt::GetBitLength on a
// known-nonnegative value such as a range width).
func (s Scalar) BitLen() int { return s.v.BitLen() }

// Cmp compares s and other as unsigned 256-bit patterns.
func (s Scalar) Cmp(other Scalar) int { return s.v.Cmp(&other.v) }

// IsZero reports whether s is the zero scalar.
func (s Scalar) IsZero() bool { return s.v.IsZero() }

// Bytes returns the scalar as 32 big-endian bytes.
func (s Scalar) Bytes() [32]byte { return s.v.Bytes32() }

// SetBytes sets s from 32 big-endian bytes and returns s.
func SetBytes(b [32]byte) Scalar {
	var s Scalar
	s.v.SetBytes32(b[:])
	return s
}

// Hex renders the scalar as uppercase hex, no leading zeros (matching
// EcInt::GetHex), with a leading "0" for the zero value.
func (s Scalar) Hex() string {
	b := s.Bytes()
	h := hex.EncodeToString(b[:])
	h = strings.TrimLeft(h, "0")
	if h == "" {
		h = "0"
	}
	return strings.ToUpper(h)
}

// ScalarFromHex parses a hex string (optionally "0x"-prefixed) into a
// Scalar, sign-extending if necessary is not performed here: the string is
// treated as an unsigned magnitude, left-padded to 32 bytes.
func ScalarFromHex(s string) (Scalar, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Scalar{}, fmt.Errorf("ec: invalid hex scalar %q: %w", s, err)
	}
	if len(raw) > 32 {
		return Scalar{}, fmt.Errorf("ec: hex scalar %q overflows 256 bits", s)
	}
	var b [32]byte
	copy(b[32-len(raw):], raw)
	return SetBytes(b), nil
}

// RandomBelow returns a uniformly random scalar in [0, bound).
func RandomBelow(rng *rand.Rand, bound Scalar) Scalar {
	if bound.IsZero() {
		return Scalar{}
	}
	bits := bound.BitLen()
	for {
		var b [32]byte
		nbytes := (bits + 7) / 8
		rng.Read(b[32-nbytes:])
		if bits%8 != 0 {
			b[32-nbytes] &= byte(1<<uint(bits%8) - 1)
		}
		cand := SetBytes(b)
		if cand.Cmp(bound) < 0 {
			return cand
		}
	}
}

// ModN reduces s modulo the secp256k1 group order and returns the decred
// ModNScalar form, which is what btcec needs for scalar multiplication.
// s is interpreted as a signed two's-complement 256-bit integer: negative
// values are negated to their true magnitude before reduction, then the
// resulting ModNScalar is negated back, since SetByteSlice itself treats
// its input as an unsigned magnitude.
func (s Scalar) ModN() *secp256k1.ModNScalar {
	var m secp256k1.ModNScalar
	if s.IsNeg() {
		mag := s.Neg().Bytes()
		m.SetByteSlice(mag[:])
		m.Negate()
		return &m
	}
	b := s.Bytes()
	m.SetByteSlice(b[:])
	return &m
}

// ModNBytes returns the 32-byte big-endian encoding btcec.PrivKeyFromBytes
// expects, after reducing s modulo the curve order.
func (s Scalar) ModNBytes() []byte {
	out := s.ModN().Bytes()
	return out[:]
}
