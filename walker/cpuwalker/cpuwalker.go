// Package cpuwalker implements walker.Worker entirely in Go, without any
// GPU kernel, so the kangaroo pipeline is runnable and testable on any
// machine. It is the reference implementation §1 and §6 call out: slow
// compared to a real GPU kernel, but it walks, emits, and solves for
// real.
package cpuwalker

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tos-network/kangaroo/dp"
	"github.com/tos-network/kangaroo/ec"
	"github.com/tos-network/kangaroo/walk"
	"github.com/tos-network/kangaroo/walker"
)

// flushEvery bounds how many DP-bearing steps accumulate in a worker's
// local buffer before it is handed to the sink.
const flushEvery = 64

// speedWindow is how often StatsSpeed's running estimate is refreshed.
const speedWindow = 500 * time.Millisecond

// Walker is a CPU-only walker.Worker: it runs numKangaroos independent
// kangaroo walks (split roughly evenly across TAME, WILD1, WILD2) in a
// single goroutine's tight loop.
type Walker struct {
	numKangaroos int

	mu     sync.Mutex
	q      ec.Point
	r      int
	dpBits int
	plan   *walk.Plan

	stop  atomic.Bool
	speed atomic.Uint32 // M ops/s, updated periodically from Execute
}

// New returns a Walker that runs n concurrent kangaroo walks.
func New(n int) *Walker {
	return &Walker{numKangaroos: n}
}

type kangaroo struct {
	typ   dp.KangarooType
	dist  ec.Scalar
	point ec.Point
}

// Prepare stores the solve parameters this walker will use once Execute
// is called.
func (w *Walker) Prepare(q ec.Point, r, dpBits int, plan *walk.Plan) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.q, w.r, w.dpBits, w.plan = q, r, dpBits, plan
	w.stop.Store(false)
	return nil
}

// Stop requests that a running Execute call return promptly.
func (w *Walker) Stop() { w.stop.Store(true) }

// StatsSpeed reports the most recently measured throughput in M ops/s.
func (w *Walker) StatsSpeed() uint32 { return w.speed.Load() }

// Execute runs every kangaroo's walk until ctx is cancelled or Stop is
// called, emitting distinguished points to sink as they are produced.
func (w *Walker) Execute(ctx context.Context, sink walker.Sink) {
	w.mu.Lock()
	plan := w.plan
	dpBits := w.dpBits
	w.mu.Unlock()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	kangaroos := w.spawnKangaroos(rng, plan)

	buf := make([]byte, 0, flushEvery*dp.EncodedSize)
	var opsSinceFlush uint64
	var opsSinceSpeedTick uint64
	windowStart := time.Now()

	flush := func() {
		if len(buf) == 0 && opsSinceFlush == 0 {
			return
		}
		sink.AddDPBatch(buf, opsSinceFlush)
		buf = buf[:0]
		opsSinceFlush = 0
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		default:
		}
		if w.stop.Load() {
			flush()
			return
		}

		for i := range kangaroos {
			k := &kangaroos[i]
			step(plan, k)
			opsSinceFlush++
			opsSinceSpeedTick++

			if isDistinguished(k.point, dpBits) {
				rec := dp.NewRecord(keyFromPoint(k.point), recordedDistance(plan, k), k.typ)
				enc := rec.Encode()
				buf = append(buf, enc[:]...)
			}
		}

		if len(buf) >= flushEvery*dp.EncodedSize {
			flush()
		}

		if elapsed := time.Since(windowStart); elapsed >= speedWindow {
			mops := float64(opsSinceSpeedTick) / elapsed.Seconds() / 1e6
			w.speed.Store(uint32(mops))
			opsSinceSpeedTick = 0
			windowStart = time.Now()
		}
	}
}

// spawnKangaroos builds the kangaroo herd: tames start near
// Plan.TameOffset, wild1 starts near Plan.Q and wild2 starts near
// Plan.NegQ + 2H·G, each with independent random jitter so that distinct
// kangaroos of the same type don't retrace each other's steps. Wild2
// walking from -Q rather than Q is what makes a wild1×wild2 collision
// mean anything: Q+d1·G landing on -Q+(2H+d2)·G gives 2k = 2H+d2-d1,
// which solve.Resolve's variants 3–4 turn into k = H ± |d1-d2|/2. The
// 2H shift places wild2 in the same [0, 2^R) band as the other herds,
// so a tame×wild2 collision resolves through variant 2. Starting both
// wild herds from the same point would only ever "collide" once their
// distances are exactly equal, which carries no information about Q.
func (w *Walker) spawnKangaroos(rng *rand.Rand, plan *walk.Plan) []kangaroo {
	n := w.numKangaroos
	if n < 3 {
		n = 3
	}
	jitterBound := ec.ScalarFromUint64(1).ShiftLeft(maxInt(plan.R-4, 1))

	out := make([]kangaroo, n)
	for i := range out {
		typ := dp.KangarooType(i % 3)
		jitter := ec.RandomBelow(rng, jitterBound)

		var start ec.Scalar
		var point ec.Point
		switch typ {
		case dp.TAME:
			start = plan.TameOffset.Add(jitter)
			point = ec.MultiplyG(start)
		case dp.WILD1:
			start = jitter
			point = plan.Q.Add(ec.MultiplyG(start))
		default:
			start = jitter
			point = plan.NegQ.Add(ec.MultiplyG(plan.H.ShiftLeft(1).Add(start)))
		}
		out[i] = kangaroo{typ: typ, dist: start, point: point}
	}
	return out
}

// step advances one kangaroo by a single jump, using J1 for ordinary
// steps and occasionally J2/J3 (by low bits of x) to shatter cycles —
// the same proportion the original's bulk-vs-shatter jump mix implies.
func step(plan *walk.Plan, k *kangaroo) {
	x := ec.SetBytes(k.point.XBytes())
	tableIdx := selectTable(x)
	jump := plan.NextJump(tableIdx, x)
	k.dist = k.dist.Add(jump.Dist)
	k.point = k.point.Add(jump.Point)
}

// recordedDistance returns the scalar a kangaroo's DP record should
// carry. A tame kangaroo's point is always H-centered (it starts near
// plan.TameOffset, itself close to H), so its absolute walked scalar is
// shifted by -H before recording — this is what lets solve.Resolve's
// k = H + (t - w) reconstruct the local offset without ever learning H
// from the tame side twice. A wild kangaroo's distance is already
// relative to its herd's starting point (Q for wild1, -Q + 2H·G for
// wild2: it starts at a small jitter and only accumulates jumps), so it
// is recorded unchanged.
func recordedDistance(plan *walk.Plan, k *kangaroo) ec.Scalar {
	if k.typ == dp.TAME {
		return k.dist.Sub(plan.H)
	}
	return k.dist
}

func selectTable(x ec.Scalar) int {
	low := x.Limb(0)
	switch {
	case low&0xFF == 0:
		return 2 // J3: rare, large jump
	case low&0xF == 0:
		return 1 // J2: occasional, large jump
	default:
		return 0 // J1: ordinary bulk-walking jump
	}
}

// isDistinguished reports whether p's x-coordinate has at least dpBits
// trailing zero bits.
func isDistinguished(p ec.Point, dpBits int) bool {
	x := p.XBytes()
	return trailingZeroBits(x) >= dpBits
}

func trailingZeroBits(x [32]byte) int {
	n := 0
	for i := len(x) - 1; i >= 0; i-- {
		b := x[i]
		if b == 0 {
			n += 8
			continue
		}
		for b&1 == 0 {
			n++
			b >>= 1
		}
		break
	}
	return n
}

// keyFromPoint extracts the 12-byte x-prefix (the low 12 bytes of the
// 32-byte big-endian x-coordinate) used as the DP index key.
func keyFromPoint(p ec.Point) [dp.KeySize]byte {
	x := p.XBytes()
	var key [dp.KeySize]byte
	copy(key[:], x[32-dp.KeySize:])
	return key
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
