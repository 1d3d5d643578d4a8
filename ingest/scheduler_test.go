package ingest

import (
	"testing"
)

func TestSchedulerAddAndDrain(t *testing.T) {
	s := NewScheduler()
	s.Add(make([]byte, 41*3), 100)
	s.Add(make([]byte, 41*2), 50)

	buf, ops := s.Drain()
	if len(buf) != 41*5 {
		t.Fatalf("drained %d bytes, want %d", len(buf), 41*5)
	}
	if ops != 150 {
		t.Fatalf("ops = %d, want 150", ops)
	}

	buf2, ops2 := s.Drain()
	if len(buf2) != 0 {
		t.Fatalf("second drain should be empty, got %d bytes", len(buf2))
	}
	if ops2 != 150 {
		t.Fatalf("ops should persist across drains, got %d", ops2)
	}
}

func TestSchedulerOverflowIsDroppedAndCounted(t *testing.T) {
	s := NewScheduler()
	tooBig := make([]byte, maxPendingBytes+41)
	s.Add(tooBig, 500)

	if s.Stats().Overflows != 1 {
		t.Fatalf("expected 1 overflow, got %d", s.Stats().Overflows)
	}
	buf, ops := s.Drain()
	if len(buf) != 0 {
		t.Fatalf("overflowing batch should have been dropped, got %d bytes", len(buf))
	}
	if ops != 0 {
		t.Fatalf("a dropped batch's ops should not join the running total, got %d", ops)
	}
}

func TestSchedulerDrainIsIndependentOfFutureAdds(t *testing.T) {
	s := NewScheduler()
	s.Add(make([]byte, 41), 1)
	buf, _ := s.Drain()

	s.Add(make([]byte, 41*2), 2)

	if len(buf) != 41 {
		t.Fatalf("drained buffer mutated after later Add: len=%d", len(buf))
	}
}
