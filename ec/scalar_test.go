package ec

import (
	"testing"
)

func TestScalarAddSubNeg(t *testing.T) {
	a := ScalarFromUint64(100)
	b := ScalarFromUint64(40)

	sum := a.Add(b)
	if sum.Hex() != "8C" {
		t.Fatalf("100+40 = %s, want 8C", sum.Hex())
	}

	diff := a.Sub(b)
	if diff.Hex() != "3C" {
		t.Fatalf("100-40 = %s, want 3C", diff.Hex())
	}

	neg := ScalarFromUint64(1).Neg()
	if !neg.IsNeg() {
		t.Fatalf("Neg(1) should have sign bit set")
	}
	if got := neg.Neg(); got.Hex() != "1" {
		t.Fatalf("Neg(Neg(1)) = %s, want 1", got.Hex())
	}
}

func TestScalarShift(t *testing.T) {
	one := ScalarFromUint64(1)
	shifted := one.ShiftLeft(32)
	if shifted.Hex() != "100000000" {
		t.Fatalf("1<<32 = %s, want 100000000", shifted.Hex())
	}

	back := shifted.ShiftRight1().ShiftRight1()
	if back.Hex() != "40000000" {
		t.Fatalf("(1<<32)>>2 = %s, want 40000000", back.Hex())
	}
}

func TestScalarBitLen(t *testing.T) {
	cases := []struct {
		v    uint64
		want int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{0xFF, 8},
	}
	for _, c := range cases {
		if got := ScalarFromUint64(c.v).BitLen(); got != c.want {
			t.Errorf("BitLen(%d) = %d, want %d", c.v, got, c.want)
		}
	}

	r := ScalarFromUint64(1).ShiftLeft(39)
	if got := r.BitLen(); got != 40 {
		t.Errorf("BitLen(1<<39) = %d, want 40", got)
	}
}

func TestScalarHexRoundTrip(t *testing.T) {
	want := "ABCDEF0123456789"
	s, err := ScalarFromHex(want)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Hex(); got != want {
		t.Fatalf("round trip = %s, want %s", got, want)
	}
}

func TestScalarLimbAccess(t *testing.T) {
	s := ScalarFromUint64(1).ShiftLeft(70)
	if s.Limb(0) != 0 || s.Limb(1) != 1<<6 {
		t.Fatalf("unexpected limbs: %#v", s)
	}
}

func TestScalarCmp(t *testing.T) {
	a := ScalarFromUint64(5)
	b := ScalarFromUint64(10)
	if a.Cmp(b) >= 0 {
		t.Fatal("5 should be < 10")
	}
	if b.Cmp(a) <= 0 {
		t.Fatal("10 should be > 5")
	}
	if a.Cmp(a) != 0 {
		t.Fatal("5 should equal 5")
	}
}
