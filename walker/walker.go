// Package walker defines the contract between the orchestrator and a
// kangaroo-walking worker (GPU kernel or, here, the CPU reference
// implementation in walker/cpuwalker).
package walker

import (
	"context"

	"github.com/tos-network/kangaroo/ec"
	"github.com/tos-network/kangaroo/walk"
)

// Sink is how a Worker hands distinguished points back to the core: a
// batch of encoded 41-byte records plus the number of elliptic-curve
// operations performed to produce them.
type Sink interface {
	AddDPBatch(buf []byte, opsAccumulated uint64)
}

// Worker is the core's view of a parallelism unit running kangaroo
// walks — one CPU reference walker, or (out of scope here) one GPU
// kernel instance.
type Worker interface {
	// Prepare configures the worker for a solve. It may fail (e.g. no
	// GPU present); the orchestrator then skips this worker.
	Prepare(q ec.Point, r, dpBits int, plan *walk.Plan) error
	// Execute runs walks until ctx is cancelled or Stop is called,
	// emitting distinguished points to sink as they occur.
	Execute(ctx context.Context, sink Sink)
	// Stop requests that Execute return as soon as possible.
	Stop()
	// StatsSpeed reports the worker's current throughput in M ops/s.
	StatsSpeed() uint32
}
