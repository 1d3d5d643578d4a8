// Package ingest buffers distinguished-point batches produced by workers
// and hands them to the orchestrator's poll loop, locally or (in
// distributed mode) to the server via periodic submission.
package ingest

import (
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
)

// MaxPendingRecords bounds each flip-flop buffer, the Go analogue of the
// reference's MAX_CNT_LIST.
const MaxPendingRecords = 1 << 20

const maxPendingBytes = MaxPendingRecords * 41

// Stats reports scheduler-level counters.
type Stats struct {
	Overflows uint64
}

// Scheduler is the local-mode ingest buffer: two byte slices ("active"
// and "standby"), swapped on Drain. Workers append encoded 41-byte DP
// records to the active buffer under mu; Drain hands the accumulated
// bytes to the caller outside the lock.
type Scheduler struct {
	mu        sync.Mutex
	active    []byte
	standby   []byte
	overflows uint64

	opsTotal atomic.Uint64
}

// NewScheduler returns an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		active:  make([]byte, 0, 4096),
		standby: make([]byte, 0, 4096),
	}
}

// Add appends a batch of encoded DP records (a multiple of 41 bytes) to
// the active buffer and adds opsCount to the running ops total. If the
// active buffer would overflow MaxPendingRecords, the batch is dropped
// and Stats().Overflows is incremented.
func (s *Scheduler) Add(batch []byte, opsCount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.active)+len(batch) > maxPendingBytes {
		s.overflows++
		log.Warn("ingest: active buffer would overflow, dropping batch", "batchBytes", len(batch), "activeBytes", len(s.active))
		return
	}
	s.active = append(s.active, batch...)
	s.opsTotal.Add(opsCount)
}

// Drain copies the active buffer, swaps the active/standby roles, and
// returns the copy along with the current cumulative ops total. The
// returned slice must be decoded outside any scheduler lock.
func (s *Scheduler) Drain() ([]byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(s.active))
	copy(buf, s.active)

	s.active, s.standby = s.standby[:0], s.active

	return buf, s.opsTotal.Load()
}

// AddDPBatch satisfies walker.Sink, forwarding to Add. Workers address
// the scheduler only through the Sink interface; Add is this method's
// implementation, named to match the rest of this package's vocabulary.
func (s *Scheduler) AddDPBatch(buf []byte, opsAccumulated uint64) { s.Add(buf, opsAccumulated) }

// OpsTotal returns the cumulative operation count across all workers.
func (s *Scheduler) OpsTotal() uint64 { return s.opsTotal.Load() }

// Stats returns the overflow counter.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Overflows: s.overflows}
}
