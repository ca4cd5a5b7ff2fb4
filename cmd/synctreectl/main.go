// Command synctreectl drives a repo.Repo against a scriptable in-memory
// connection for manual inspection — a smoke-testing harness, not a
// server or client library (the façade/transport is out of scope).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/treesync/synccore/internal/rlog"
	"github.com/treesync/synccore/query"
	"github.com/treesync/synccore/repo"
	"github.com/treesync/synccore/synctree"
	"github.com/treesync/synccore/treedata"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML config file path",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "log verbosity (0=crit ... 5=trace)",
		Value: -1,
	}
	addrFlag = &cli.StringFlag{
		Name:  "addr",
		Usage: "connection address (only memory:// is implemented)",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "synctreectl"
	app.Usage = "drive a synchronization core against a scriptable in-memory connection"
	app.Flags = []cli.Flag{configFlag, verbosityFlag, addrFlag}
	app.Action = runDemo

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "synctreectl:", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) Config {
	cfg := defaultConfig()
	if path := c.String(configFlag.Name); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "synctreectl: reading config %s: %v\n", path, err)
			os.Exit(1)
		}
	}
	if c.IsSet(verbosityFlag.Name) {
		cfg.Verbosity = c.Int(verbosityFlag.Name)
	}
	if c.IsSet(addrFlag.Name) {
		cfg.Addr = c.String(addrFlag.Name)
	}
	return cfg
}

func runDemo(c *cli.Context) error {
	cfg := loadConfig(c)
	setupLogging(cfg.Verbosity)

	conn := newMemConnection()
	r := repo.New(conn)
	defer r.Close()

	path, _ := treedata.ParsePath("demo/counter")

	_, err := r.Listen(path, query.Filter{}, synctree.EventValue, func(ev synctree.Event) {
		var v any
		if ev.Snapshot != nil {
			v = ev.Snapshot.Value()
		}
		fmt.Printf("[value] %s = %v\n", path.String(), v)
	})
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	if err := r.Set(path, treedata.Leaf(int64(0), nil)); err != nil {
		return fmt.Errorf("set: %w", err)
	}

	txnResult := r.Transaction(path, func(current *treedata.TSD) (*treedata.TSD, error) {
		var v int64
		if current != nil {
			if n, ok := current.Value().(int64); ok {
				v = n
			}
		}
		return treedata.Leaf(v+1, nil), nil
	})
	result, terr := txnResult.Wait()
	if terr != nil {
		return fmt.Errorf("transaction: %w", terr)
	}
	fmt.Printf("[transaction] committed %v\n", result.Value())

	if err := r.OnDisconnectSet(path, treedata.Leaf(int64(-1), nil)); err != nil {
		return fmt.Errorf("onDisconnectSet: %w", err)
	}
	conn.Drop()

	time.Sleep(100 * time.Millisecond)
	return nil
}

func setupLogging(verbosity int) {
	levels := []rlog.Level{rlog.LevelCrit, rlog.LevelError, rlog.LevelWarn, rlog.LevelInfo, rlog.LevelDebug, rlog.LevelTrace}
	if verbosity < 0 {
		verbosity = 0
	}
	if verbosity >= len(levels) {
		verbosity = len(levels) - 1
	}
	h := rlog.NewGlogHandler(rlog.NewTerminalHandler(os.Stderr, true))
	h.Verbosity(levels[verbosity])
	rlog.SetDefault(rlog.NewWithHandler(h))
}
