package ingest

import (
	"testing"

	"github.com/tos-network/kangaroo/dp"
	"github.com/tos-network/kangaroo/ec"
)

func TestRemoteSchedulerAddDrainClear(t *testing.T) {
	r := NewRemoteScheduler()
	var key [dp.KeySize]byte
	rec := dp.NewRecord(key, ec.ScalarFromUint64(1), dp.TAME)

	r.Add([]dp.Record{rec, rec}, 10)
	if r.Len() != 2 {
		t.Fatalf("expected 2 pending, got %d", r.Len())
	}

	batch := r.Drain()
	if len(batch) != 2 {
		t.Fatalf("expected drain of 2, got %d", len(batch))
	}
	// A failed submit leaves pending records untouched.
	if r.Len() != 2 {
		t.Fatalf("drain without clear should not remove pending records, got %d", r.Len())
	}

	r.Clear(2)
	if r.Len() != 0 {
		t.Fatalf("expected 0 pending after clear, got %d", r.Len())
	}
}

func TestRemoteSchedulerClearPartial(t *testing.T) {
	r := NewRemoteScheduler()
	var key [dp.KeySize]byte
	for i := 0; i < 5; i++ {
		r.Add([]dp.Record{dp.NewRecord(key, ec.ScalarFromUint64(uint64(i)), dp.TAME)}, 1)
	}
	r.Clear(3)
	if r.Len() != 2 {
		t.Fatalf("expected 2 remaining after partial clear, got %d", r.Len())
	}
}

func TestRemoteSchedulerOpsTotal(t *testing.T) {
	r := NewRemoteScheduler()
	var key [dp.KeySize]byte
	r.Add([]dp.Record{dp.NewRecord(key, ec.ScalarFromUint64(1), dp.TAME)}, 7)
	r.Add(nil, 3)
	if r.OpsTotal() != 10 {
		t.Fatalf("OpsTotal = %d, want 10", r.OpsTotal())
	}
}
