// Command kangaroo runs one ECDLP solve using Pollard's kangaroo method,
// either locally, as a throughput benchmark, or as a client of a
// kangarooserver instance. See the package comment on orchestrator for
// the phases a solve moves through.
package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/kangaroo/internal/flags"
)

var (
	pubkeyFlag = &cli.StringFlag{
		Name:     "pubkey",
		Usage:    "target public key, compressed or uncompressed hex (omit for benchmark mode)",
		Category: flags.SolveCategory,
	}
	rangeFlag = &cli.StringFlag{
		Name:     "range",
		Usage:    "search width in bits, or an explicit `<startHex>:<endHex>` interval",
		Category: flags.SolveCategory,
	}
	startFlag = &cli.StringFlag{
		Name:     "start",
		Usage:    "range start as a hex scalar (ignored if -range gives start:end)",
		Category: flags.SolveCategory,
	}
	dpFlag = &cli.IntFlag{
		Name:     "dp",
		Usage:    "distinguished point threshold in bits [14,60]",
		Value:    16,
		Category: flags.SolveCategory,
	}
	tamesFlag = &cli.StringFlag{
		Name:     "tames",
		Usage:    "preload a binary tame-point file (flat sequence of 41-byte DP records)",
		Category: flags.SolveCategory,
	}
	gpuFlag = &cli.StringFlag{
		Name:     "gpu",
		Usage:    "digits selecting parallelism units, e.g. \"01\" for two reference workers",
		Value:    "0",
		Category: flags.PerfCategory,
	}
	maxFlag = &cli.Float64Flag{
		Name:     "max",
		Usage:    "give up once actual ops exceed this multiple of the expected op count (0 = no limit)",
		Category: flags.PerfCategory,
	}
	serverFlag = &cli.StringFlag{
		Name:     "server",
		Usage:    "kangarooserver base URL, switches to distributed-client mode",
		Category: flags.ServerCategory,
	}
	clientIDFlag = &cli.StringFlag{
		Name:     "clientid",
		Usage:    "client identifier reported to -server (default: hostname_pid)",
		Category: flags.ServerCategory,
	}
	configureFlag = &cli.BoolFlag{
		Name:     "configure",
		Usage:    "administratively configure the search on -server; takes 5 positional args: start end pubkey dp_bits range_size",
		Category: flags.ServerCategory,
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "kangaroo"
	app.Usage = "solve ECDLP over a bounded interval with Pollard's kangaroo method"
	app.Flags = []cli.Flag{
		pubkeyFlag, rangeFlag, startFlag, dpFlag, gpuFlag, maxFlag, tamesFlag,
		serverFlag, clientIDFlag, configureFlag,
	}
	app.Action = run
	return app
}

func main() {
	setupLogging()
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging() {
	log.Root().SetHandler(log.LvlFilterHandler(log.LvlInfo, log.StreamHandler(os.Stderr, log.TerminalFormat(true))))
}

func run(ctx *cli.Context) error {
	switch {
	case ctx.Bool(configureFlag.Name):
		return runConfigure(ctx)
	case ctx.String(serverFlag.Name) != "":
		return runDistributedClient(ctx)
	case ctx.String(pubkeyFlag.Name) != "":
		return runLocalSolve(ctx)
	default:
		return runBenchmark(ctx)
	}
}

func fatalf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
