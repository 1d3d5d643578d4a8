package ec

import (
	"encoding/hex"
	"fmt"
	"math/rand"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Point is an affine secp256k1 point. The zero value is "not set" (IsSet
// reports false); only a handful of operations are exposed, matching the
// capability set §4.A names: k·G, equality, y-negation, and hex codec,
// plus point addition and x-coordinate access for the walker.
type Point struct {
	pub *btcec.PublicKey
	set bool
}

// IsSet reports whether p holds a point.
func (p Point) IsSet() bool { return p.set && p.pub != nil }

// MultiplyG returns s·G. s·G for s ≡ 0 (mod n) is the point at infinity,
// which this package represents as the unset Point — callers that Add
// or Negate an unset Point already get correct identity-element
// behaviour, so no special infinity type is needed.
func MultiplyG(s Scalar) Point {
	if s.ModN().IsZero() {
		return Point{}
	}
	priv := secp256k1PrivFromScalar(s)
	return Point{pub: priv.PubKey(), set: true}
}

// Equal reports whether p and other represent the same point.
func (p Point) Equal(other Point) bool {
	if !p.IsSet() || !other.IsSet() {
		return p.IsSet() == other.IsSet()
	}
	a := p.pub.SerializeCompressed()
	b := other.pub.SerializeCompressed()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Negate returns -p (same x, y := -y mod p, i.e. the parity-flipped
// point), implemented by flipping the compressed serialization's parity
// byte and re-parsing rather than poking field elements directly.
func (p Point) Negate() Point {
	if !p.IsSet() {
		return p
	}
	c := p.pub.SerializeCompressed()
	flipped := make([]byte, len(c))
	copy(flipped, c)
	switch flipped[0] {
	case 0x02:
		flipped[0] = 0x03
	case 0x03:
		flipped[0] = 0x02
	}
	pub, err := btcec.ParsePubKey(flipped)
	if err != nil {
		// Unreachable for a point obtained from this package.
		return p
	}
	return Point{pub: pub, set: true}
}

// Add returns p + other. A wild kangaroo's walk is a sequence of point
// additions starting from Q, so unlike the rest of this package (which
// only needs k·G), the walker genuinely needs point addition — not a
// scalar-only reconstruction, since the discrete log of Q is exactly
// what is unknown. btcec/v2's PublicKey is a type alias for
// secp256k1.PublicKey, so its Jacobian form is used directly.
func (p Point) Add(other Point) Point {
	if !p.IsSet() {
		return other
	}
	if !other.IsSet() {
		return p
	}
	var j1, j2, sum secp256k1.JacobianPoint
	p.pub.AsJacobian(&j1)
	other.pub.AsJacobian(&j2)
	secp256k1.AddNonConst(&j1, &j2, &sum)
	sum.ToAffine()
	if sum.X.IsZero() && sum.Y.IsZero() {
		// p == -other: the sum is the point at infinity, which this
		// package has no representation for. Vanishingly unlikely
		// during a random walk; callers must not rely on a walk ever
		// hitting it.
		return Point{}
	}
	pub := secp256k1.NewPublicKey(&sum.X, &sum.Y)
	return Point{pub: (*btcec.PublicKey)(pub), set: true}
}

// XBytes returns p's affine x-coordinate as 32 big-endian bytes. This is
// the value the walk's distinguished-point predicate and jump-table
// selection both hash on.
func (p Point) XBytes() [32]byte {
	var out [32]byte
	if !p.IsSet() {
		return out
	}
	raw := p.pub.SerializeUncompressed()
	copy(out[:], raw[1:33])
	return out
}

// Hex renders p in compressed form as uppercase hex.
func (p Point) Hex() string {
	if !p.IsSet() {
		return ""
	}
	return fmt.Sprintf("%X", p.pub.SerializeCompressed())
}

// PointFromHex parses a compressed (33-byte) or uncompressed (65-byte)
// hex-encoded public key.
func PointFromHex(s string) (Point, error) {
	raw, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return Point{}, fmt.Errorf("ec: invalid hex point %q: %w", s, err)
	}
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return Point{}, fmt.Errorf("ec: invalid secp256k1 point %q: %w", s, err)
	}
	return Point{pub: pub, set: true}, nil
}

// RandomPoint returns k·G for a random k — used by the benchmark sub-mode
// to manufacture a target with no known discrete log.
func RandomPoint(rng *rand.Rand) Point {
	var b [32]byte
	rng.Read(b[:])
	return MultiplyG(SetBytes(b))
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		return s[2:]
	}
	return s
}

func secp256k1PrivFromScalar(s Scalar) *btcec.PrivateKey {
	priv, _ := btcec.PrivKeyFromBytes(s.ModNBytes())
	return priv
}
