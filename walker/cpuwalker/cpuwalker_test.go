package cpuwalker

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/tos-network/kangaroo/dp"
	"github.com/tos-network/kangaroo/ec"
	"github.com/tos-network/kangaroo/walk"
)

type recordingSink struct {
	batches [][]byte
	ops     uint64
}

func (s *recordingSink) AddDPBatch(buf []byte, opsAccumulated uint64) {
	if len(buf) > 0 {
		cp := make([]byte, len(buf))
		copy(cp, buf)
		s.batches = append(s.batches, cp)
	}
	s.ops += opsAccumulated
}

func buildPlan(t *testing.T, r, dpBits int) *walk.Plan {
	q := ec.MultiplyG(ec.ScalarFromUint64(777777))
	rng := rand.New(rand.NewSource(1))
	p, err := walk.NewPlan(rng, r, dpBits, q, ec.ScalarFromUint64(0))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestWalkerEmitsWellFormedDistinguishedPoints(t *testing.T) {
	const r, dpBits = 32, 14
	plan := buildPlan(t, r, dpBits)

	w := New(6)
	if err := w.Prepare(plan.Q, r, dpBits, plan); err != nil {
		t.Fatal(err)
	}

	sink := &recordingSink{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w.Execute(ctx, sink)

	if len(sink.batches) == 0 {
		t.Fatal("expected at least one DP batch within the time budget")
	}

	for _, batch := range sink.batches {
		if len(batch)%dp.EncodedSize != 0 {
			t.Fatalf("batch length %d is not a multiple of %d", len(batch), dp.EncodedSize)
		}
		for off := 0; off < len(batch); off += dp.EncodedSize {
			rec, err := dp.DecodeRecord(batch[off : off+dp.EncodedSize])
			if err != nil {
				t.Fatalf("decode DP record: %v", err)
			}
			if !rec.Type().Valid() {
				t.Fatalf("invalid kangaroo type %v", rec.Type())
			}
		}
	}
}

func TestWalkerStopHaltsExecute(t *testing.T) {
	const r, dpBits = 48, 60 // DP threshold effectively unreachable in this window
	plan := buildPlan(t, r, dpBits)

	w := New(3)
	if err := w.Prepare(plan.Q, r, dpBits, plan); err != nil {
		t.Fatal(err)
	}

	sink := &recordingSink{}
	done := make(chan struct{})
	go func() {
		w.Execute(context.Background(), sink)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	w.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after Stop")
	}
}

func TestSpawnKangaroosWild2StartsFromNegatedQ(t *testing.T) {
	plan := buildPlan(t, 78, 16)
	w := New(30)
	rng := rand.New(rand.NewSource(2))
	herd := w.spawnKangaroos(rng, plan)

	sawWild1, sawWild2 := false, false
	for _, k := range herd {
		switch k.typ {
		case dp.WILD1:
			sawWild1 = true
			if !k.point.Equal(plan.Q.Add(ec.MultiplyG(k.dist))) {
				t.Fatal("wild1 kangaroo should start on plan.Q + dist*G")
			}
		case dp.WILD2:
			sawWild2 = true
			if !k.point.Equal(plan.NegQ.Add(ec.MultiplyG(plan.H.ShiftLeft(1).Add(k.dist)))) {
				t.Fatal("wild2 kangaroo should start on plan.NegQ + (2H+dist)*G, not plan.Q")
			}
			if k.point.Equal(plan.Q.Add(ec.MultiplyG(k.dist))) {
				t.Fatal("wild2 kangaroo must not start from the same point as wild1")
			}
		}
	}
	if !sawWild1 || !sawWild2 {
		t.Fatal("herd should include both wild1 and wild2 kangaroos")
	}
}

func TestTrailingZeroBits(t *testing.T) {
	var x [32]byte
	if trailingZeroBits(x) != 256 {
		t.Fatalf("all-zero input should have 256 trailing zero bits, got %d", trailingZeroBits(x))
	}
	x[31] = 0b00010000
	if got := trailingZeroBits(x); got != 4 {
		t.Fatalf("expected 4 trailing zero bits, got %d", got)
	}
}
