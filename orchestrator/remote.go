package orchestrator

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/tos-network/kangaroo/dp"
	"github.com/tos-network/kangaroo/ec"
	"github.com/tos-network/kangaroo/ingest"
)

// RemoteClient is the subset of rpcclient.Client's surface the
// orchestrator needs to run in distributed mode. It is declared here,
// not in rpcclient, so this package depends only on the shape of calls
// it makes — the standard Go way to avoid a consumer depending on a
// concrete transport package.
type RemoteClient interface {
	SubmitPoints(ctx context.Context, clientID string, points []dp.Record) (status string, solution string, err error)
	Status(ctx context.Context) (solved bool, solution string, err error)
}

// remoteSink adapts a RemoteScheduler to walker.Sink by decoding the
// wire-format batch workers hand over before buffering it for submission.
type remoteSink struct {
	sched *ingest.RemoteScheduler
}

func (s remoteSink) AddDPBatch(buf []byte, opsAccumulated uint64) {
	records := make([]dp.Record, 0, len(buf)/dp.EncodedSize)
	for off := 0; off+dp.EncodedSize <= len(buf); off += dp.EncodedSize {
		rec, err := dp.DecodeRecord(buf[off : off+dp.EncodedSize])
		if err != nil {
			log.Warn("orchestrator: dropping malformed DP record", "err", err)
			continue
		}
		records = append(records, rec)
	}
	s.sched.Add(records, opsAccumulated)
}

// runDistributedPollLoop replaces runPollLoop when opts.Remote is set:
// instead of resolving collisions locally, it periodically submits
// pending points to the server and polls /api/status so a solution
// found by any other client is observed within one tick.
func (o *Orchestrator) runDistributedPollLoop(ctx context.Context) {
	interval := o.opts.Remote.SubmitInterval
	if interval <= 0 {
		interval = ingest.DefaultSubmitInterval
	}
	submitTicker := time.NewTicker(interval)
	defer submitTicker.Stop()
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
		case <-submitTicker.C:
			o.submitRemote(ctx)
			o.pollRemoteStatus(ctx)
		case <-statsTicker.C:
			o.logStats(start)
		}
	}
}

func (o *Orchestrator) submitRemote(ctx context.Context) {
	if o.remote == nil || o.opts.Remote == nil || o.opts.Remote.Client == nil {
		return
	}
	pending := o.remote.Drain()
	o.setOps(o.remote.OpsTotal())
	if len(pending) == 0 {
		return
	}

	status, solution, err := o.opts.Remote.Client.SubmitPoints(ctx, o.opts.Remote.ClientID, pending)
	if err != nil {
		log.Warn("orchestrator: submit_points failed, will retry", "err", err)
		return
	}
	o.remote.Clear(len(pending))

	if status == "solved" {
		o.acceptRemoteSolution(solution)
	}
}

func (o *Orchestrator) pollRemoteStatus(ctx context.Context) {
	if o.opts.Remote == nil || o.opts.Remote.Client == nil {
		return
	}
	solved, solution, err := o.opts.Remote.Client.Status(ctx)
	if err != nil {
		log.Warn("orchestrator: status poll failed", "err", err)
		return
	}
	if solved {
		o.acceptRemoteSolution(solution)
	}
}

func (o *Orchestrator) acceptRemoteSolution(hex string) {
	k, err := ec.ScalarFromHex(hex)
	if err != nil {
		log.Warn("orchestrator: server reported an unparsable solution", "solution", hex, "err", err)
		return
	}
	if o.solved.CompareAndSwap(false, true) {
		o.solution.Store(&k)
	}
}
