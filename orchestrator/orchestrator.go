// Package orchestrator drives one kangaroo solve end to end: building
// the walk plan, running workers, ingesting distinguished points,
// resolving collisions, and reporting the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/tos-network/kangaroo/dp"
	"github.com/tos-network/kangaroo/ec"
	"github.com/tos-network/kangaroo/ingest"
	"github.com/tos-network/kangaroo/solve"
	"github.com/tos-network/kangaroo/walk"
	"github.com/tos-network/kangaroo/walker"
)

// ErrBadRange and ErrBadDP are returned from Prepare on out-of-bounds
// inputs, per §3's invariants.
var (
	ErrBadRange   = errors.New("orchestrator: R out of range [32,180]")
	ErrBadDP      = errors.New("orchestrator: DP out of range [14,60]")
	ErrNoWorkers  = errors.New("orchestrator: no workers available after Prepare")
	ErrNotPrepare = errors.New("orchestrator: Run called outside Prepare state")
)

// State is one of the explicit phases a solve moves through.
type State int

const (
	StatePrepare State = iota
	StateRunning
	StateDraining
	StateFinalising
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePrepare:
		return "prepare"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateFinalising:
		return "finalising"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

const (
	pollInterval  = 5 * time.Millisecond
	statsInterval = 5 * time.Second
	drainPoll     = 100 * time.Millisecond
)

// Stats bundles the counters the stats line and any embedding metrics
// exporter read.
type Stats struct {
	OpsExpected uint64
	DPExpected  uint64
	OpsActual   uint64
	Speed       uint32 // aggregate M ops/s across workers
	Errors      uint64
	Overflows   uint64
	Solved      bool
}

// Options configures a solve.
type Options struct {
	R      int
	DP     int
	Q      ec.Point // the real target point
	S      ec.Scalar
	Workers []walker.Worker

	// IndexOnly forces every ingested record's type to TAME before
	// indexing and skips the resolver entirely (§9's resolution of the
	// "gen-mode" question). The orchestrator does not write the index
	// out to a tame file.
	IndexOnly bool

	// PreloadTamePath, if non-empty, is loaded into the DP index during
	// Prepare via dp.Index.LoadTameFile.
	PreloadTamePath string

	// Remote, if set, switches Run into distributed-client mode: DPs are
	// batched and submitted to a server instead of resolved locally.
	Remote *RemoteConfig

	// ResultsPath overrides RESULTS.TXT's location; empty uses the
	// process working directory.
	ResultsPath string
}

// RemoteConfig parameterises distributed-client mode.
type RemoteConfig struct {
	Client         RemoteClient
	ClientID       string
	SubmitInterval time.Duration
}

// Orchestrator drives a single solve.
type Orchestrator struct {
	opts Options

	state atomic.Int32
	solved atomic.Bool
	solution atomic.Pointer[ec.Scalar]

	index     *dp.Index
	scheduler *ingest.Scheduler
	remote    *ingest.RemoteScheduler

	stats Stats
	statsMu sync.Mutex

	plan *walk.Plan
}

// New returns an Orchestrator ready for Prepare.
func New() *Orchestrator {
	return &Orchestrator{}
}

// State reports the orchestrator's current phase.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

func (o *Orchestrator) setState(s State) { o.state.Store(int32(s)) }

// Prepare validates opts, builds the walk plan, and primes workers and
// the DP index. It must be called before Run.
func (o *Orchestrator) Prepare(opts Options) error {
	if opts.R < 32 || opts.R > 180 {
		return ErrBadRange
	}
	if opts.DP < 14 || opts.DP > 60 {
		return ErrBadDP
	}

	o.opts = opts
	o.index = dp.NewIndex()
	o.scheduler = ingest.NewScheduler()
	if opts.Remote != nil {
		o.remote = ingest.NewRemoteScheduler()
	}
	o.solved.Store(false)
	o.solution.Store(nil)
	o.stats = Stats{
		OpsExpected: expectedOps(opts.R),
		DPExpected:  expectedOps(opts.R) / (1 << uint(opts.DP)),
	}

	if opts.PreloadTamePath != "" {
		n, err := o.index.LoadTameFile(opts.PreloadTamePath)
		if err != nil {
			return fmt.Errorf("orchestrator: preload tame file: %w", err)
		}
		log.Info("orchestrator: preloaded tame file", "path", opts.PreloadTamePath, "records", n)
	}

	seedRng := rand.New(rand.NewSource(1))
	plan, err := walk.NewPlan(seedRng, opts.R, opts.DP, opts.Q, opts.S)
	if err != nil {
		return fmt.Errorf("orchestrator: build walk plan: %w", err)
	}
	o.plan = plan

	var ready []walker.Worker
	for i, w := range opts.Workers {
		if err := w.Prepare(plan.Q, opts.R, opts.DP, plan); err != nil {
			log.Warn("orchestrator: worker failed to prepare, skipping", "worker", i, "err", err)
			continue
		}
		ready = append(ready, w)
	}
	if len(ready) == 0 {
		return ErrNoWorkers
	}
	o.opts.Workers = ready

	o.setState(StatePrepare)
	return nil
}

// expectedOps returns 1.15 * 2^(R/2), the expected total operation
// count for a solve of this range width.
func expectedOps(r int) uint64 {
	return uint64(1.15 * pow2(r/2))
}

func pow2(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 2
	}
	return v
}

// Run executes Running → Draining → Finalising → Done, returning the
// resolved private key (relative to S already applied) on success.
func (o *Orchestrator) Run(ctx context.Context) (ec.Scalar, bool, error) {
	if o.State() != StatePrepare {
		return ec.Scalar{}, false, ErrNotPrepare
	}

	started := time.Now()
	var wg sync.WaitGroup
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sink walker.Sink = o.scheduler
	if o.opts.Remote != nil {
		sink = remoteSink{sched: o.remote}
	}

	for _, w := range o.opts.Workers {
		wg.Add(1)
		go func(w walker.Worker) {
			defer wg.Done()
			w.Execute(runCtx, sink)
		}(w)
	}

	o.setState(StateRunning)
	if o.opts.Remote != nil {
		o.runDistributedPollLoop(ctx)
	} else {
		o.runPollLoop(ctx)
	}

	o.setState(StateDraining)
	cancel()
	for _, w := range o.opts.Workers {
		w.Stop()
	}
	o.drain(&wg)

	o.setState(StateFinalising)
	k, ok := o.finalise()
	log.Info("orchestrator: finished", "elapsed", time.Since(started).Round(time.Millisecond), "overhead", o.OverheadFactor(), "solved", ok)

	o.setState(StateDone)
	return k, ok, nil
}

func (o *Orchestrator) runPollLoop(ctx context.Context) {
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	start := time.Now()
	for {
		if o.solved.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			o.ingestOnce()
			if o.solved.Load() {
				return
			}
		case <-statsTicker.C:
			o.logStats(start)
		}
	}
}

func (o *Orchestrator) ingestOnce() {
	buf, ops := o.scheduler.Drain()
	o.setOps(ops)

	for off := 0; off+dp.EncodedSize <= len(buf); off += dp.EncodedSize {
		rec, err := dp.DecodeRecord(buf[off : off+dp.EncodedSize])
		if err != nil {
			log.Warn("orchestrator: dropping malformed DP record", "err", err)
			continue
		}
		o.ingestRecord(rec)
		if o.solved.Load() {
			return
		}
	}
}

func (o *Orchestrator) ingestRecord(rec dp.Record) {
	if o.opts.IndexOnly {
		rec = dp.NewRecord(rec.Key(), rec.Distance(), dp.TAME)
	}

	prior := o.index.FindOrInsert(rec)
	if prior == nil || o.opts.IndexOnly {
		return
	}

	class := solve.Classify(*prior, rec)
	switch class {
	case solve.Ignored:
		return
	case solve.Inconsistent:
		o.incErrors()
		return
	}

	k, ok := solve.Resolve(*prior, rec, o.plan.Q, o.plan.H)
	if !ok {
		if class == solve.TameWild {
			o.incErrors()
		}
		return
	}
	o.reportSolution(k)
}

func (o *Orchestrator) reportSolution(localK ec.Scalar) {
	absolute := o.opts.S.Add(localK)
	if !ec.MultiplyG(absolute).Equal(o.opts.Q) {
		log.Warn("orchestrator: candidate key failed final verification, discarding")
		o.incErrors()
		return
	}
	if o.solved.CompareAndSwap(false, true) {
		o.solution.Store(&absolute)
	}
}

func (o *Orchestrator) drain(wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			return
		case <-time.After(drainPoll):
		}
	}
}

func (o *Orchestrator) finalise() (ec.Scalar, bool) {
	if o.opts.Remote != nil {
		o.submitRemote(context.Background())
	}

	if !o.solved.Load() {
		return ec.Scalar{}, false
	}
	k := *o.solution.Load()
	if err := o.appendResult(k); err != nil {
		log.Error("orchestrator: failed to write RESULTS.TXT", "err", err)
	}
	return k, true
}

func (o *Orchestrator) appendResult(k ec.Scalar) error {
	path := o.opts.ResultsPath
	if path == "" {
		path = "RESULTS.TXT"
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(fmt.Sprintf("PRIVATE KEY: %s\r\n", k.Hex()))
	return err
}

func (o *Orchestrator) logStats(start time.Time) {
	st := o.Stats()
	log.Info("orchestrator: stats",
		"state", o.State(),
		"elapsed", time.Since(start).Round(time.Second),
		"speed", st.Speed,
		"ops", st.OpsActual,
		"opsExpected", st.OpsExpected,
		"errors", st.Errors,
		"overflows", st.Overflows,
		"solved", st.Solved,
	)
}

func (o *Orchestrator) setOps(ops uint64) {
	o.statsMu.Lock()
	o.stats.OpsActual = ops
	o.statsMu.Unlock()
}

func (o *Orchestrator) incErrors() {
	o.statsMu.Lock()
	o.stats.Errors++
	o.statsMu.Unlock()
}

// Stats returns a snapshot of the orchestrator's live counters.
func (o *Orchestrator) Stats() Stats {
	o.statsMu.Lock()
	st := o.stats
	o.statsMu.Unlock()

	if o.scheduler != nil {
		st.Overflows = o.scheduler.Stats().Overflows
	}
	st.Solved = o.solved.Load()

	var speed uint32
	for _, w := range o.opts.Workers {
		speed += w.StatsSpeed()
	}
	st.Speed = speed
	return st
}

// OverheadFactor returns K = ops_expected / (1.15 * ops_actual), the
// figure printed alongside the private key on solve.
func (o *Orchestrator) OverheadFactor() float64 {
	st := o.Stats()
	if st.OpsActual == 0 {
		return 0
	}
	return float64(st.OpsExpected) / (1.15 * float64(st.OpsActual))
}
