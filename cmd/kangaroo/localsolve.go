package main

import (
	"context"
	"fmt"
	"math/rand"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/kangaroo/ec"
	"github.com/tos-network/kangaroo/orchestrator"
	"github.com/tos-network/kangaroo/walker"
	"github.com/tos-network/kangaroo/walker/cpuwalker"
)

// kangaroosPerWorker is how many independent walks one "-gpu" digit's
// reference worker runs, split roughly evenly across TAME/WILD1/WILD2.
const kangaroosPerWorker = 24

// defaultBenchR/DP are the benchmark mode's fixed parameters, per §6.
const (
	defaultBenchR  = 78
	defaultBenchDP = 16
)

func runLocalSolve(ctx *cli.Context) error {
	q, err := ec.PointFromHex(ctx.String(pubkeyFlag.Name))
	if err != nil {
		return fatalf("invalid -pubkey: %v", err)
	}

	r, s, err := parseRange(ctx)
	if err != nil {
		return err
	}
	dpBits := ctx.Int(dpFlag.Name)

	return solve(ctx, r, dpBits, q, s)
}

func runBenchmark(ctx *cli.Context) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	q := ec.RandomPoint(rng)
	log.Info("kangaroo: benchmark mode, no -pubkey given", "R", defaultBenchR, "dp", defaultBenchDP)
	return solve(ctx, defaultBenchR, defaultBenchDP, q, ec.ScalarFromUint64(0))
}

// parseRange resolves -range/-start into (R, S). -range accepts either a
// bit-width or an explicit "startHex:endHex" interval, matching the
// reference client's ParseCommandLine.
func parseRange(ctx *cli.Context) (r int, s ec.Scalar, err error) {
	spec := ctx.String(rangeFlag.Name)
	if spec == "" {
		return 0, ec.Scalar{}, fatalf("-range is required outside benchmark mode")
	}

	if startHex, endHex, ok := strings.Cut(spec, ":"); ok {
		start, err := ec.ScalarFromHex(startHex)
		if err != nil {
			return 0, ec.Scalar{}, fatalf("invalid -range start: %v", err)
		}
		end, err := ec.ScalarFromHex(endHex)
		if err != nil {
			return 0, ec.Scalar{}, fatalf("invalid -range end: %v", err)
		}
		width := end.Sub(start)
		return width.BitLen() - 1, start, nil
	}

	bits, err := strconv.Atoi(spec)
	if err != nil {
		return 0, ec.Scalar{}, fatalf("invalid -range: %v", err)
	}
	s = ec.ScalarFromUint64(0)
	if startHex := ctx.String(startFlag.Name); startHex != "" {
		if s, err = ec.ScalarFromHex(startHex); err != nil {
			return 0, ec.Scalar{}, fatalf("invalid -start: %v", err)
		}
	}
	return bits, s, nil
}

func buildWorkers(gpuDigits string) []walker.Worker {
	if gpuDigits == "" {
		gpuDigits = "0"
	}
	seen := make(map[byte]bool)
	var out []walker.Worker
	for i := 0; i < len(gpuDigits); i++ {
		d := gpuDigits[i]
		if d < '0' || d > '9' || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, cpuwalker.New(kangaroosPerWorker))
	}
	if len(out) == 0 {
		out = append(out, cpuwalker.New(kangaroosPerWorker))
	}
	return out
}

func solve(ctx *cli.Context, r, dpBits int, q ec.Point, s ec.Scalar) error {
	o := orchestrator.New()
	opts := orchestrator.Options{
		R:               r,
		DP:              dpBits,
		Q:               q,
		S:               s,
		Workers:         buildWorkers(ctx.String(gpuFlag.Name)),
		PreloadTamePath: ctx.String(tamesFlag.Name),
	}
	if err := o.Prepare(opts); err != nil {
		return fatalf("prepare: %v", err)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if max := ctx.Float64(maxFlag.Name); max > 0 {
		runCtx = watchOpsCeiling(runCtx, o, max)
	}

	k, ok, err := o.Run(runCtx)
	if err != nil {
		return fatalf("run: %v", err)
	}
	if !ok {
		log.Info("kangaroo: stopped without a solution")
		return nil
	}

	fmt.Printf("PRIVATE KEY: %s\n", k.Hex())
	log.Info("kangaroo: solved", "key", k.Hex(), "overhead", o.OverheadFactor())
	return nil
}

// watchOpsCeiling cancels the returned context once the orchestrator's
// actual op count exceeds max times its expected count, the Go analogue
// of the reference client's -max bail-out.
func watchOpsCeiling(parent context.Context, o *orchestrator.Orchestrator, max float64) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := o.Stats()
				if st.Solved {
					return
				}
				if float64(st.OpsActual) > max*float64(st.OpsExpected) {
					log.Warn("kangaroo: -max ops ceiling reached, stopping", "opsActual", st.OpsActual, "opsExpected", st.OpsExpected, "max", max)
					cancel()
					return
				}
			}
		}
	}()
	return ctx
}
