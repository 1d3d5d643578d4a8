// Package solve turns a pair of colliding distinguished points into a
// candidate discrete log and verifies it against the target point.
package solve

import (
	"github.com/tos-network/kangaroo/dp"
	"github.com/tos-network/kangaroo/ec"
)

// Collision classifies a pair of same-x-prefix records before Resolve is
// invoked, separating expected/benign same-type collisions from the two
// kinds worth resolving.
type Collision int

const (
	// Ignored covers both-TAME and self-collision (equal low distance)
	// same-kangaroo-type pairs: expected, not an error, not resolved.
	Ignored Collision = iota
	// TameWild is a TAME × {WILD1,WILD2} pair: resolve with variants 1–2.
	TameWild
	// WildWild is a WILD1 × WILD2 pair: resolve with variants 3–4. A
	// Resolve miss here is not an error.
	WildWild
	// Inconsistent is any other same-type pair (e.g. WILD1×WILD1 with
	// differing distances): an internal error, but not fatal.
	Inconsistent
)

// Classify decides how a and b (two records sharing an x-prefix) should
// be handled.
func Classify(a, b dp.Record) Collision {
	if a.Type() == b.Type() {
		if a.Type() == dp.TAME {
			return Ignored
		}
		// WILD1×WILD1 or WILD2×WILD2: a self-collision if the distances'
		// low 8 bytes agree (same step of the same kind of walk).
		if a.Distance().Limb(0) == b.Distance().Limb(0) {
			return Ignored
		}
		return Inconsistent
	}
	if isWild(a.Type()) && isWild(b.Type()) {
		return WildWild
	}
	return TameWild
}

func isWild(t dp.KangarooType) bool { return t == dp.WILD1 || t == dp.WILD2 }

// Resolve attempts to recover the discrete log of q given a tame record
// t and a wild record w (order-independent — Resolve sorts by type
// itself) and the half-range constant h. It tries the variant(s)
// appropriate to the pairing and returns the first candidate that
// verifies by k·G == q.
func Resolve(t, w dp.Record, q ec.Point, h ec.Scalar) (ec.Scalar, bool) {
	if t.Type() == dp.TAME && isWild(w.Type()) {
		return resolveTameWild(t.Distance(), w.Distance(), q, h)
	}
	if w.Type() == dp.TAME && isWild(t.Type()) {
		return resolveTameWild(w.Distance(), t.Distance(), q, h)
	}
	if isWild(t.Type()) && isWild(w.Type()) && t.Type() != w.Type() {
		return resolveWildWild(t.Distance(), w.Distance(), q, h)
	}
	return ec.Scalar{}, false
}

func resolveTameWild(tameDist, wildDist ec.Scalar, q ec.Point, h ec.Scalar) (ec.Scalar, bool) {
	base1 := tameDist.Sub(wildDist)
	if k := base1.Add(h); ec.MultiplyG(k).Equal(q) {
		return k, true
	}
	base2 := base1.Neg()
	if k := base2.Add(h); ec.MultiplyG(k).Equal(q) {
		return k, true
	}
	return ec.Scalar{}, false
}

func resolveWildWild(d1, d2 ec.Scalar, q ec.Point, h ec.Scalar) (ec.Scalar, bool) {
	base3 := d1.Sub(d2)
	if base3.IsNeg() {
		base3 = base3.Neg()
	}
	base3 = base3.ShiftRight1()

	if k := base3.Add(h); ec.MultiplyG(k).Equal(q) {
		return k, true
	}
	if k := base3.Neg().Add(h); ec.MultiplyG(k).Equal(q) {
		return k, true
	}
	return ec.Scalar{}, false
}
