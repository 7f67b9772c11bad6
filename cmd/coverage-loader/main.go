package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/config"
	"github.com/mohammed-shakir/coverage-lookup/internal/ingest"
	"github.com/mohammed-shakir/coverage-lookup/internal/invalidation"
	"github.com/mohammed-shakir/coverage-lookup/internal/invalidation/publisher"
	"github.com/mohammed-shakir/coverage-lookup/internal/logger"
	"github.com/mohammed-shakir/coverage-lookup/internal/store"
	_ "github.com/mohammed-shakir/coverage-lookup/internal/store/memstore"
	_ "github.com/mohammed-shakir/coverage-lookup/internal/store/pgstore"
	_ "github.com/mohammed-shakir/coverage-lookup/internal/store/sqlitestore"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	cfg := config.FromEnv()

	file := flag.String("file", "data.csv", "coverage CSV (';' separated)")
	driver := flag.String("driver", cfg.StoreDriver, "store driver: "+strings.Join(store.Drivers(), "|"))
	batch := flag.Int("batch", ingest.DefaultBatch, "records per insert batch")
	reset := flag.Bool("reset", true, "drop and recreate the partitioned tables first")
	publish := flag.Bool("publish", cfg.Invalidation.Enabled, "publish a reload invalidation event after loading")
	flag.Parse()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Service:   "coverage-loader",
		Component: "ingest",
	}, os.Stderr)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(filepath.Clean(*file))
	if err != nil {
		appLog.Error("open csv", "err", err)
		return 1
	}
	defer func() { _ = f.Close() }()

	st, err := store.Open(ctx, strings.ToLower(*driver), cfg, appLog)
	if err != nil {
		appLog.Error("store setup failed", "err", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	stats, err := ingest.Load(ctx, f, st, ingest.Options{BatchSize: *batch, Reset: *reset, Logger: appLog})
	if err != nil {
		appLog.Error("load failed", "err", err, "loaded", stats.Loaded)
		return 1
	}
	fmt.Printf("loaded %d records (%d read, %d duplicates, %d rejected)\n",
		stats.Loaded, stats.Read, stats.Duplicates, stats.Rejected)
	for _, id := range stats.Partitions.IDs() {
		fmt.Printf("  %-8s %d\n", id, stats.Partitions[id])
	}

	if !*publish {
		return 0
	}
	pub, err := publisher.New(cfg.Invalidation.Brokers, cfg.Invalidation.Topic)
	if err != nil {
		appLog.Error("publisher setup failed", "err", err)
		return 1
	}
	defer func() { _ = pub.Close() }()

	ev := invalidation.NewEvent(invalidation.OpReload, "coverage-loader")
	if !*reset {
		for _, id := range stats.Partitions.IDs() {
			ev.Partitions = append(ev.Partitions, id.String())
		}
	}
	if err := pub.Publish(ctx, ev); err != nil {
		appLog.Error("publish invalidation failed", "err", err)
		return 1
	}
	appLog.Info("invalidation published", "id", ev.ID, "partitions", ev.Partitions)
	return 0
}
