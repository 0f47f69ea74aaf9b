package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/amarchetti/teledoc/internal/config"
	"github.com/amarchetti/teledoc/internal/daemon"
	"github.com/amarchetti/teledoc/internal/datadir"
	"github.com/amarchetti/teledoc/internal/docs"
	"github.com/amarchetti/teledoc/internal/logging"
	"github.com/amarchetti/teledoc/internal/state"
)

func main() {
	configFlag := flag.String("config", datadir.ConfigPath(), "path to config.toml")
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	testFlag := flag.Bool("test", false, "test connections, print stats, and exit")
	flag.Parse()

	if *testFlag {
		if err := runTest(*configFlag, *debugFlag); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	app := fx.New(
		daemon.Module(daemon.Params{ConfigPath: *configFlag, Debug: *debugFlag}),
	)

	app.Run()
}

// runTest verifies the document connection and prints the run counters,
// without touching the chat platform or the lock.
func runTest(configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := datadir.EnsureDirs(); err != nil {
		return err
	}
	logger, err := logging.New(datadir.LogPath(), debug || cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := docs.NewClient(cfg.DocumentID, cfg.DocsToken, logger)
	if !client.TestConnection(ctx) {
		return fmt.Errorf("document connection test failed")
	}
	fmt.Println("document connection OK")

	db, err := state.Open(datadir.StatePath())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		return err
	}

	stats, err := db.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("processed: %d\nerrors: %d\nlast run: %s\n",
		stats.Processed, stats.Errors, stats.LastRun.Format(time.RFC3339))
	return nil
}
