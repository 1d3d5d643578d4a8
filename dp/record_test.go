package dp

import (
	"testing"

	"github.com/tos-network/kangaroo/ec"
)

func TestRecordEncodeDecodeRoundTrip(t *testing.T) {
	var key [KeySize]byte
	for i := range key {
		key[i] = byte(i + 1)
	}
	dist, err := ec.ScalarFromHex("1234ABCD")
	if err != nil {
		t.Fatal(err)
	}

	rec := NewRecord(key, dist, WILD1)
	enc := rec.Encode()

	decoded, err := DecodeRecord(enc[:])
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Key() != rec.Key() {
		t.Fatalf("key mismatch: %x != %x", decoded.Key(), rec.Key())
	}
	if decoded.Type() != WILD1 {
		t.Fatalf("type mismatch: %v", decoded.Type())
	}
	if decoded.Distance().Hex() != dist.Hex() {
		t.Fatalf("distance mismatch: %s != %s", decoded.Distance().Hex(), dist.Hex())
	}
}

func TestRecordNegativeDistanceSignExtends(t *testing.T) {
	var key [KeySize]byte
	neg := ec.ScalarFromUint64(1).Neg()

	rec := NewRecord(key, neg, TAME)
	enc := rec.Encode()
	if enc[distanceOffset+distanceSize-1] != 0xFF {
		t.Fatalf("expected sign byte 0xFF, got %#x", enc[distanceOffset+distanceSize-1])
	}

	decoded, err := DecodeRecord(enc[:])
	if err != nil {
		t.Fatal(err)
	}
	if !decoded.Distance().IsNeg() {
		t.Fatalf("decoded distance should be negative")
	}
	if decoded.Distance().Neg().Hex() != "1" {
		t.Fatalf("expected -1, got %s", decoded.Distance().Hex())
	}
}

func TestDecodeRecordRejectsBadLength(t *testing.T) {
	if _, err := DecodeRecord(make([]byte, 40)); err == nil {
		t.Fatal("expected error for short record")
	}
}

func TestDecodeRecordRejectsBadType(t *testing.T) {
	buf := make([]byte, EncodedSize)
	buf[typeOffset] = 7
	if _, err := DecodeRecord(buf); err == nil {
		t.Fatal("expected error for invalid kangaroo type")
	}
}

func TestScenarioDPCodecFromSpec(t *testing.T) {
	// Input bytes [01 02 ... 0C 00 00 00 00 | 22 bytes last=0xFF | 2 ignored | 01]
	buf := make([]byte, EncodedSize)
	for i := 0; i < KeySize; i++ {
		buf[i] = byte(i + 1)
	}
	for i := distanceOffset; i < distanceOffset+distanceSize; i++ {
		buf[i] = 0xAB
	}
	buf[distanceOffset+distanceSize-1] = 0xFF
	buf[typeOffset] = byte(WILD1)

	rec, err := DecodeRecord(buf)
	if err != nil {
		t.Fatal(err)
	}
	var wantKey [KeySize]byte
	for i := range wantKey {
		wantKey[i] = byte(i + 1)
	}
	if rec.Key() != wantKey {
		t.Fatalf("key mismatch: %x", rec.Key())
	}
	if !rec.Distance().IsNeg() {
		t.Fatalf("expected negative distance")
	}
	if rec.Type() != WILD1 {
		t.Fatalf("expected WILD1, got %v", rec.Type())
	}
}
