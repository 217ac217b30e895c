// Command sendq-purge deletes all persisted message and attachment content
// from a sendq database, regardless of send state.
//
// It is the operational wrapper over the pipeline's delete-all-content
// operation, for support flows where a device must be wiped of message data.
// Stop any running relay first: a send in flight during a purge fails
// terminally.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/murmurchat/sendq"
	"github.com/murmurchat/sendq/sqlite"
)

const exitUsage = 2

func main() {
	var (
		dbPath  string
		confirm bool
	)
	flag.StringVar(&dbPath, "db", "", "path to the sendq SQLite database")
	flag.BoolVar(&confirm, "yes", false, "confirm the purge; without it nothing is deleted")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "-db is required")
		flag.Usage()
		os.Exit(exitUsage)
	}
	if !confirm {
		fmt.Fprintln(os.Stderr, "refusing to purge without -yes")
		os.Exit(exitUsage)
	}

	if err := run(context.Background(), dbPath, logger); err != nil {
		logger.Error("purge failed", "err", err)
		os.Exit(1)
	}
	logger.Info("all message content deleted", "db", dbPath)
}

func run(ctx context.Context, dbPath string, logger *slog.Logger) error {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline := sendq.NewPipeline(store, sendq.WithPipelineLogger(logger))

	return pipeline.DeleteAllContent(ctx)
}
