package ingest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tos-network/kangaroo/dp"
)

// DefaultSubmitInterval is how often a distributed client ships its
// pending DP records to the server.
const DefaultSubmitInterval = 30 * time.Second

// RemoteScheduler is the distributed-mode ingest buffer: decoded records
// accumulate in a pending slice until a submit call succeeds. A failed
// submit leaves the slice untouched so the batch is retried.
type RemoteScheduler struct {
	mu      sync.Mutex
	pending []dp.Record

	opsTotal atomic.Uint64
}

// NewRemoteScheduler returns an empty RemoteScheduler.
func NewRemoteScheduler() *RemoteScheduler {
	return &RemoteScheduler{}
}

// Add appends a batch of already-decoded records and adds opsCount to
// the running ops total.
func (r *RemoteScheduler) Add(records []dp.Record, opsCount uint64) {
	r.opsTotal.Add(opsCount)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, records...)
}

// Drain returns a copy of the pending records without clearing them;
// the caller must call Clear only after a submission succeeds, so a
// transport failure leaves the batch pending for the next tick.
func (r *RemoteScheduler) Drain() []dp.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dp.Record, len(r.pending))
	copy(out, r.pending)
	return out
}

// Clear drops the first n pending records — called once a submission of
// those n records has been acknowledged by the server.
func (r *RemoteScheduler) Clear(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n >= len(r.pending) {
		r.pending = r.pending[:0]
		return
	}
	r.pending = append(r.pending[:0], r.pending[n:]...)
}

// OpsTotal returns the cumulative operation count across all workers.
func (r *RemoteScheduler) OpsTotal() uint64 { return r.opsTotal.Load() }

// Len reports the number of currently pending records.
func (r *RemoteScheduler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
