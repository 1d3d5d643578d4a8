package kangarooserver

import (
	"fmt"
	"sync"

	"github.com/tos-network/kangaroo/ec"
)

// RangeStatus mirrors the reference server's work_ranges.status column.
type RangeStatus string

const (
	RangePending  RangeStatus = "pending"
	RangeAssigned RangeStatus = "assigned"
)

// WorkRange is one chunk of the configured search, handed to exactly one
// client at a time by Assign.
type WorkRange struct {
	ID         string
	Start      ec.Scalar
	End        ec.Scalar
	BitRange   int
	DPBits     int
	Status     RangeStatus
	AssignedTo string
}

// RangeLedger partitions a search [start, end) into fixed-size chunks
// and hands them out to clients on request, the Go analogue of
// kangaroo_server.py's work_ranges table plus its _generate_work_ranges
// and get_work logic.
type RangeLedger struct {
	mu     sync.Mutex
	ranges []*WorkRange
	cursor int // index of the first range that might still be pending
}

// NewRangeLedger returns an empty ledger.
func NewRangeLedger() *RangeLedger {
	return &RangeLedger{}
}

// Generate replaces the ledger's contents with chunks of chunkSize
// covering [start, end), each inheriting bitRange/dpBits. Returns the
// number of ranges generated.
func (l *RangeLedger) Generate(start, end, chunkSize ec.Scalar, bitRange, dpBits int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ranges = nil
	l.cursor = 0

	if chunkSize.IsZero() {
		return 0
	}

	cur := start
	id := 0
	for cur.Cmp(end) < 0 {
		next := cur.Add(chunkSize)
		if next.Cmp(end) > 0 {
			next = end
		}
		l.ranges = append(l.ranges, &WorkRange{
			ID:       fmt.Sprintf("range_%06d", id),
			Start:    cur,
			End:      next,
			BitRange: bitRange,
			DPBits:   dpBits,
			Status:   RangePending,
		})
		cur = next
		id++
	}
	return len(l.ranges)
}

// Assign finds the first pending range, marks it assigned to clientID,
// and returns a copy. ok=false means the ledger is exhausted.
func (l *RangeLedger) Assign(clientID string) (WorkRange, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := l.cursor; i < len(l.ranges); i++ {
		r := l.ranges[i]
		if r.Status != RangePending {
			continue
		}
		r.Status = RangeAssigned
		r.AssignedTo = clientID
		l.cursor = i
		return *r, true
	}
	return WorkRange{}, false
}

// Snapshot returns a copy of every range currently tracked, for status
// reporting and persistence.
func (l *RangeLedger) Snapshot() []WorkRange {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]WorkRange, len(l.ranges))
	for i, r := range l.ranges {
		out[i] = *r
	}
	return out
}

// Restore repopulates the ledger from previously persisted records,
// used on server startup to resume a configured search.
func (l *RangeLedger) Restore(records []WorkRange) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ranges = make([]*WorkRange, len(records))
	for i := range records {
		r := records[i]
		l.ranges[i] = &r
	}
	l.cursor = 0
}

// CountByStatus tallies ranges per status, for /api/status reporting.
func (l *RangeLedger) CountByStatus() map[RangeStatus]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[RangeStatus]int)
	for _, r := range l.ranges {
		out[r.Status]++
	}
	return out
}
