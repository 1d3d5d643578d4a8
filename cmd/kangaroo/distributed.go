package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/kangaroo/ec"
	"github.com/tos-network/kangaroo/orchestrator"
	"github.com/tos-network/kangaroo/rpcclient"
)

func runConfigure(ctx *cli.Context) error {
	serverURL := ctx.String(serverFlag.Name)
	if serverURL == "" {
		return fatalf("-configure requires -server <url>")
	}
	args := ctx.Args()
	if args.Len() != 5 {
		return fatalf("-configure takes 5 positional args: start end pubkey dp_bits range_size")
	}
	startHex, endHex, pubkeyHex, dpBitsStr, rangeSize := args.Get(0), args.Get(1), args.Get(2), args.Get(3), args.Get(4)

	var dpBits int
	if _, err := fmt.Sscanf(dpBitsStr, "%d", &dpBits); err != nil {
		return fatalf("invalid dp_bits %q: %v", dpBitsStr, err)
	}

	client := rpcclient.New(serverURL)
	msg, err := client.ConfigureSearch(context.Background(), startHex, endHex, pubkeyHex, rangeSize, dpBits)
	if err != nil {
		return fatalf("configure_search: %v", err)
	}
	fmt.Println(msg)
	return nil
}

func runDistributedClient(ctx *cli.Context) error {
	serverURL := ctx.String(serverFlag.Name)
	client := rpcclient.New(serverURL)
	clientID := ctx.String(clientIDFlag.Name)
	if clientID == "" {
		clientID = defaultClientID()
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-runCtx.Done():
			return nil
		default:
		}

		work, ok, err := client.GetWork(runCtx, clientID)
		if err != nil {
			log.Warn("kangaroo: get_work failed, retrying", "err", err)
			if !sleepOrDone(runCtx, rpcclient.DefaultWorkBackoff) {
				return nil
			}
			continue
		}
		if !ok {
			if solved, solution, err := client.Status(runCtx); err == nil && solved {
				fmt.Printf("PRIVATE KEY: %s\n", solution)
				return nil
			}
			log.Info("kangaroo: no work available, backing off", "backoff", rpcclient.DefaultWorkBackoff)
			if !sleepOrDone(runCtx, rpcclient.DefaultWorkBackoff) {
				return nil
			}
			continue
		}

		if err := runOneRange(runCtx, client, clientID, ctx.String(gpuFlag.Name), work); err != nil {
			return err
		}
		if runCtx.Err() != nil {
			return nil
		}
	}
}

func runOneRange(ctx context.Context, client *rpcclient.Client, clientID, gpuDigits string, work rpcclient.Work) error {
	start, err := ec.ScalarFromHex(work.StartRange)
	if err != nil {
		return fatalf("server returned invalid start_range %q: %v", work.StartRange, err)
	}
	q, err := ec.PointFromHex(work.PubKey)
	if err != nil {
		return fatalf("server returned invalid pubkey %q: %v", work.PubKey, err)
	}

	o := orchestrator.New()
	opts := orchestrator.Options{
		R:       work.BitRange,
		DP:      work.DPBits,
		Q:       q,
		S:       start,
		Workers: buildWorkers(gpuDigits),
		Remote: &orchestrator.RemoteConfig{
			Client:   client,
			ClientID: clientID,
		},
	}
	if err := o.Prepare(opts); err != nil {
		return fatalf("prepare range %s: %v", work.RangeID, err)
	}

	log.Info("kangaroo: working range", "range", work.RangeID, "R", work.BitRange, "dp", work.DPBits)
	k, ok, err := o.Run(ctx)
	if err != nil {
		return fatalf("run range %s: %v", work.RangeID, err)
	}
	if ok {
		fmt.Printf("PRIVATE KEY: %s\n", k.Hex())
	}
	return nil
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func defaultClientID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "kangaroo"
	}
	return fmt.Sprintf("%s_%d", host, os.Getpid())
}
