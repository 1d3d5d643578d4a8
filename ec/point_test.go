package ec

import "testing"

func TestMultiplyGAndEqual(t *testing.T) {
	a := MultiplyG(ScalarFromUint64(5))
	b := MultiplyG(ScalarFromUint64(5))
	c := MultiplyG(ScalarFromUint64(6))

	if !a.Equal(b) {
		t.Fatal("5*G should equal 5*G")
	}
	if a.Equal(c) {
		t.Fatal("5*G should not equal 6*G")
	}
}

func TestMultiplyGZeroIsUnset(t *testing.T) {
	p := MultiplyG(ScalarFromUint64(0))
	if p.IsSet() {
		t.Fatal("0*G should be the unset (infinity) point")
	}
}

func TestPointAddMatchesScalarAddition(t *testing.T) {
	a := MultiplyG(ScalarFromUint64(7))
	b := MultiplyG(ScalarFromUint64(11))
	sum := a.Add(b)
	want := MultiplyG(ScalarFromUint64(18))
	if !sum.Equal(want) {
		t.Fatalf("7*G + 11*G should equal 18*G")
	}
}

func TestPointAddIdentity(t *testing.T) {
	a := MultiplyG(ScalarFromUint64(42))
	if got := a.Add(Point{}); !got.Equal(a) {
		t.Fatal("P + infinity should equal P")
	}
	if got := (Point{}).Add(a); !got.Equal(a) {
		t.Fatal("infinity + P should equal P")
	}
}

func TestPointAddInverseIsInfinity(t *testing.T) {
	a := MultiplyG(ScalarFromUint64(99))
	neg := a.Negate()
	sum := a.Add(neg)
	if sum.IsSet() {
		t.Fatal("P + (-P) should be the unset (infinity) point")
	}
}

func TestNegateRoundTrip(t *testing.T) {
	a := MultiplyG(ScalarFromUint64(777))
	if got := a.Negate().Negate(); !got.Equal(a) {
		t.Fatal("Negate(Negate(P)) should equal P")
	}
}

func TestPointHexRoundTrip(t *testing.T) {
	a := MultiplyG(ScalarFromUint64(123456789))
	parsed, err := PointFromHex(a.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.Equal(a) {
		t.Fatal("hex round trip should preserve the point")
	}
}

func TestPointFromHexRejectsGarbage(t *testing.T) {
	if _, err := PointFromHex("not-hex"); err == nil {
		t.Fatal("expected error for non-hex input")
	}
}

func TestXBytesOfUnsetPointIsZero(t *testing.T) {
	var want [32]byte
	if got := (Point{}).XBytes(); got != want {
		t.Fatalf("unset point XBytes should be all-zero, got %x", got)
	}
}

func TestXBytesIsStableAcrossEqualPoints(t *testing.T) {
	a := MultiplyG(ScalarFromUint64(314159))
	b := MultiplyG(ScalarFromUint64(314159))
	if a.XBytes() != b.XBytes() {
		t.Fatal("equal points should have equal XBytes")
	}
}
