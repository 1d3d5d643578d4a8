// Package walk builds the jump tables and range constants a solve needs,
// and picks the next jump for a walker given its current x-coordinate.
package walk

import (
	"fmt"
	"math/rand"

	"github.com/tos-network/kangaroo/ec"
)

// JumpTableSize is the number of entries in each jump table.
const JumpTableSize = 512

// Jump is one entry of a jump table: a distance and the point it maps to.
type Jump struct {
	Dist  ec.Scalar
	Point ec.Point
}

// Plan holds everything a walker needs to run a kangaroo: the jump
// tables, the half-range point, and the tame starting offset. It is a
// pure function of the (R, DP, Q, S) inputs and its RNG seeds — no
// further randomness is consumed once NewPlan returns.
//
// Q is stored shifted into range-local offset space (Q - S·G), since the
// whole walk — tame start, wild start, collision resolution — operates
// on the offset from S, not the absolute private key. Callers add S
// back onto a resolved offset to report the absolute key.
type Plan struct {
	R     int
	DP    int
	Q     ec.Point // local target: original Q minus S·G
	NegQ  ec.Point // -Q; the WILD2 herd starts from it shifted by 2H·G
	S     ec.Scalar
	H     ec.Scalar
	PH    ec.Point // H·G
	NegPH ec.Point // -(H·G)

	TameOffset ec.Scalar

	Jumps [3][]Jump
}

// jumpExponent returns the magnitude-band exponent for jump table idx
// (0=J1, 1=J2, 2=J3), per §3's table: R/2+3, R-10, R-12.
func jumpExponent(r, idx int) int {
	switch idx {
	case 0:
		return r/2 + 3
	case 1:
		return r - 10
	case 2:
		return r - 12
	default:
		panic("walk: invalid jump table index")
	}
}

// NewPlan constructs the range constants and jump tables for a solve.
// q is the target point (its discrete log is what the solve is looking
// for — it is never known to NewPlan); s is the range start. seedRng
// drives the (reproducible) jump-table construction; the caller re-seeds
// per-walk randomness separately once the plan is built.
func NewPlan(seedRng *rand.Rand, r, dpBits int, q ec.Point, s ec.Scalar) (*Plan, error) {
	if r < 32 || r > 180 {
		return nil, fmt.Errorf("walk: R=%d out of range [32,180]", r)
	}
	if dpBits < 14 || dpBits > 60 {
		return nil, fmt.Errorf("walk: DP=%d out of range [14,60]", dpBits)
	}
	if !q.IsSet() {
		return nil, fmt.Errorf("walk: target point Q is not set")
	}

	localQ, h := RangeConstants(q, s, r)
	tameOffset := h.Sub(ec.ScalarFromUint64(1).ShiftLeft(r - 5))

	p := &Plan{
		R:          r,
		DP:         dpBits,
		Q:          localQ,
		NegQ:       localQ.Negate(),
		S:          s,
		H:          h,
		PH:         ec.MultiplyG(h),
		TameOffset: tameOffset,
	}
	p.NegPH = p.PH.Negate()

	for i := 0; i < 3; i++ {
		e := jumpExponent(r, i)
		p.Jumps[i] = buildJumpTable(seedRng, e)
	}
	return p, nil
}

// RangeConstants computes the two values any collision resolver needs
// but no walker does: the range-local target point (Q - S·G) and the
// half-range scalar H = 2^(R-1). Both NewPlan and a server that never
// walks (it only resolves submitted points) derive them this way.
func RangeConstants(q ec.Point, s ec.Scalar, r int) (localQ ec.Point, h ec.Scalar) {
	h = ec.ScalarFromUint64(1).ShiftLeft(r - 1)
	localQ = q.Add(ec.MultiplyG(s).Negate())
	return localQ, h
}

func buildJumpTable(rng *rand.Rand, exponent int) []Jump {
	base := ec.ScalarFromUint64(1).ShiftLeft(exponent)
	table := make([]Jump, JumpTableSize)
	for i := 0; i < JumpTableSize; i++ {
		offset := ec.RandomBelow(rng, base)
		d := base.Add(offset)
		d = clearLowBit(d)
		table[i] = Jump{Dist: d, Point: ec.MultiplyG(d)}
	}
	return table
}

func clearLowBit(s ec.Scalar) ec.Scalar {
	v := s.Limb(0)
	return s.SetLimb(0, v&^1)
}

// NextJump selects a jump-table entry for the walker currently at x,
// hashing x's low bits into [0, JumpTableSize) — the same "jump index
// from low bits of x" rule used by the reference GPU kernel.
func (p *Plan) NextJump(tableIdx int, x ec.Scalar) Jump {
	idx := int(x.Limb(0) % JumpTableSize)
	return p.Jumps[tableIdx][idx]
}
