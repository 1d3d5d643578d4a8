package walk

import (
	"math/rand"
	"testing"

	"github.com/tos-network/kangaroo/ec"
)

func testPlan(t *testing.T, r, dpBits int) *Plan {
	rng := rand.New(rand.NewSource(1))
	q := ec.MultiplyG(ec.ScalarFromUint64(12345))
	p, err := NewPlan(rng, r, dpBits, q, ec.ScalarFromUint64(0))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewPlanRejectsBadRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	q := ec.MultiplyG(ec.ScalarFromUint64(1))
	if _, err := NewPlan(rng, 31, 16, q, ec.ScalarFromUint64(0)); err == nil {
		t.Fatal("expected error for R below range")
	}
	if _, err := NewPlan(rng, 78, 13, q, ec.ScalarFromUint64(0)); err == nil {
		t.Fatal("expected error for DP below range")
	}
	if _, err := NewPlan(rng, 78, 16, ec.Point{}, ec.ScalarFromUint64(0)); err == nil {
		t.Fatal("expected error for unset Q")
	}
}

func TestJumpTablesAreEvenAndInBand(t *testing.T) {
	const r = 78
	p := testPlan(t, r, 16)

	exponents := []int{r/2 + 3, r - 10, r - 12}
	for tableIdx, e := range exponents {
		lower := ec.ScalarFromUint64(1).ShiftLeft(e)
		upper := ec.ScalarFromUint64(1).ShiftLeft(e + 1)
		for i, jump := range p.Jumps[tableIdx] {
			if jump.Dist.Limb(0)&1 != 0 {
				t.Fatalf("table %d entry %d: distance is odd", tableIdx, i)
			}
			if jump.Dist.Cmp(lower) < 0 || jump.Dist.Cmp(upper) >= 0 {
				t.Fatalf("table %d entry %d: distance %s out of band [%s,%s)",
					tableIdx, i, jump.Dist.Hex(), lower.Hex(), upper.Hex())
			}
			if !jump.Point.Equal(ec.MultiplyG(jump.Dist)) {
				t.Fatalf("table %d entry %d: point does not match dist*G", tableIdx, i)
			}
		}
	}
}

func TestJumpTableSizeIsRespected(t *testing.T) {
	p := testPlan(t, 78, 16)
	for i, table := range p.Jumps {
		if len(table) != JumpTableSize {
			t.Fatalf("table %d has %d entries, want %d", i, len(table), JumpTableSize)
		}
	}
}

func TestPlanRangeConstants(t *testing.T) {
	const r = 40
	p := testPlan(t, r, 14)

	wantH := ec.ScalarFromUint64(1).ShiftLeft(r - 1)
	if p.H.Hex() != wantH.Hex() {
		t.Fatalf("H = %s, want %s", p.H.Hex(), wantH.Hex())
	}
	wantTameOffset := wantH.Sub(ec.ScalarFromUint64(1).ShiftLeft(r - 5))
	if p.TameOffset.Hex() != wantTameOffset.Hex() {
		t.Fatalf("TameOffset = %s, want %s", p.TameOffset.Hex(), wantTameOffset.Hex())
	}
	if !p.PH.Equal(ec.MultiplyG(wantH)) {
		t.Fatal("PH should equal H*G")
	}
	if !p.NegPH.Equal(p.PH.Negate()) {
		t.Fatal("NegPH should equal Negate(PH)")
	}
	if !p.NegQ.Equal(p.Q.Negate()) {
		t.Fatal("NegQ should equal Negate(Q)")
	}
}

func TestNextJumpIsDeterministicForSameX(t *testing.T) {
	p := testPlan(t, 78, 16)
	x := ec.ScalarFromUint64(999)
	a := p.NextJump(0, x)
	b := p.NextJump(0, x)
	if a.Dist.Hex() != b.Dist.Hex() {
		t.Fatal("NextJump should be deterministic for the same x")
	}
}
