// Command kangarooserver runs the distributed-mode counterpart to
// cmd/kangaroo: it owns a process-lifetime DP index for one configured
// search and resolves collisions submitted by any number of clients,
// the Go translation of the reference implementation's kangaroo_server.py.
package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/kangaroo/internal/flags"
	"github.com/tos-network/kangaroo/kangarooserver"
	"github.com/tos-network/kangaroo/kangarooserver/storedb"
)

var (
	hostFlag = &cli.StringFlag{
		Name:     "host",
		Usage:    "address to listen on",
		Value:    "0.0.0.0",
		Category: flags.ServerCategory,
	}
	portFlag = &cli.IntFlag{
		Name:     "port",
		Usage:    "port to listen on",
		Value:    8080,
		Category: flags.ServerCategory,
	}
	dbFlag = &cli.StringFlag{
		Name:     "db",
		Usage:    "leveldb directory for durable search state (default: in-memory, lost on restart)",
		Category: flags.ServerCategory,
	}
)

func main() {
	log.Root().SetHandler(log.LvlFilterHandler(log.LvlInfo, log.StreamHandler(os.Stderr, log.TerminalFormat(true))))

	app := cli.NewApp()
	app.Name = "kangarooserver"
	app.Usage = "coordinate a distributed kangaroo search across many clients"
	app.Flags = []cli.Flag{hostFlag, portFlag, dbFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	store, err := openStore(ctx.String(dbFlag.Name))
	if err != nil {
		return fmt.Errorf("kangarooserver: %w", err)
	}
	defer store.Close()

	srv, err := kangarooserver.NewServer(store)
	if err != nil {
		return fmt.Errorf("kangarooserver: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", ctx.String(hostFlag.Name), ctx.Int(portFlag.Name))
	log.Info("kangarooserver: listening", "addr", addr, "db", ctx.String(dbFlag.Name))
	if err := kangarooserver.ListenAndServe(addr, srv); err != nil {
		return fmt.Errorf("kangarooserver: %w", err)
	}
	return nil
}

func openStore(path string) (*storedb.Store, error) {
	if path == "" {
		return storedb.OpenMem()
	}
	return storedb.Open(path)
}
