package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohammed-shakir/coverage-lookup/internal/aggregate"
	"github.com/mohammed-shakir/coverage-lookup/internal/cache/redisstore"
	"github.com/mohammed-shakir/coverage-lookup/internal/cache/summarycache"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/config"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/health"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/httpclient"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/observability"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/server"
	"github.com/mohammed-shakir/coverage-lookup/internal/geocoder/banadresse"
	"github.com/mohammed-shakir/coverage-lookup/internal/geocoder/lrucache"
	"github.com/mohammed-shakir/coverage-lookup/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/coverage-lookup/internal/logger"
	"github.com/mohammed-shakir/coverage-lookup/internal/lookup"
	h3mapper "github.com/mohammed-shakir/coverage-lookup/internal/mapper/h3"
	"github.com/mohammed-shakir/coverage-lookup/internal/metrics"
	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
	"github.com/mohammed-shakir/coverage-lookup/internal/proximity"
	"github.com/mohammed-shakir/coverage-lookup/internal/store"
	_ "github.com/mohammed-shakir/coverage-lookup/internal/store/memstore"
	_ "github.com/mohammed-shakir/coverage-lookup/internal/store/pgstore"
	_ "github.com/mohammed-shakir/coverage-lookup/internal/store/sqlitestore"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "coverage-api",
		Component: "api",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Addr:    cfg.MetricsAddr,
		Path:    cfg.MetricsPath,
		Build: metrics.BuildInfo{
			Version:  Version,
			Revision: os.Getenv("BUILD_REVISION"),
			Service:  "coverage-api",
		},
	})
	observability.Init(p.Registerer(), cfg.MetricsEnabled)
	observability.ExposeBuildInfo(Version)
	go func() {
		if err := p.Serve(ctx, appLog); err != nil {
			appLog.Error("metrics server exited", "err", err)
		}
	}()

	appLog.Info("starting coverage-api",
		"addr", cfg.Addr,
		"version", Version,
		"store", cfg.StoreDriver,
		"geocoder", cfg.GeocoderURL,
		"cache", cfg.Cache.Enabled)

	st, err := store.Open(ctx, cfg.StoreDriver, cfg, appLog)
	if err != nil {
		appLog.Error("store setup failed", "err", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	svcCfg, err := lookupConfig(cfg)
	if err != nil {
		appLog.Error("invalid lookup configuration", "err", err)
		return 1
	}

	hc := httpclient.NewOutbound(httpclient.Options{
		Timeout:   cfg.GeocoderTimeout,
		UserAgent: "coverage-lookup/" + Version,
	})
	ban, err := banadresse.New(cfg.GeocoderURL, hc)
	if err != nil {
		appLog.Error("geocoder setup failed", "err", err)
		return 1
	}
	geo := lrucache.New(ban, cfg.GeocodeCacheSize, 24*time.Hour)

	ready := map[string]health.Pinger{"store": st}
	opts := []lookup.Option{lookup.WithLogger(appLog)}

	if cfg.Cache.Enabled {
		rc, sc, err := summaryCache(ctx, cfg)
		if err != nil {
			appLog.Error("cache setup failed", "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()
		ready["redis"] = rc
		opts = append(opts, lookup.WithCache(sc))

		if cfg.Invalidation.Enabled {
			cons, err := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), &zl, sc)
			if err != nil {
				appLog.Error("invalidation consumer setup failed", "err", err)
				return 1
			}
			go func() {
				if err := cons.Start(ctx); err != nil {
					appLog.Error("invalidation consumer exited", "err", err)
				}
			}()
		}
	} else if cfg.Invalidation.Enabled {
		appLog.Warn("invalidation enabled without cache; ignoring")
	}

	svc, err := lookup.New(svcCfg, geo, st, opts...)
	if err != nil {
		appLog.Error("lookup setup failed", "err", err)
		return 1
	}

	h := server.NewHandler(appLog, server.Deps{
		Lookup:      svc,
		Ready:       ready,
		Metrics:     p.Handler(),
		MetricsPath: p.Path(),
	})
	if err := server.Run(ctx, cfg, appLog, h); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func lookupConfig(cfg config.Config) (lookup.Config, error) {
	out := lookup.DefaultConfig()
	out.Radius = cfg.SearchRadius
	out.GeocodeTimeout = cfg.GeocoderTimeout
	out.StoreTimeout = cfg.StoreTimeout
	out.CacheOpTimeout = cfg.Cache.OpTimeout

	mode, err := proximity.ParseMode(cfg.ProximityMode)
	if err != nil {
		return lookup.Config{}, err
	}
	out.Mode = mode

	ops, err := aggregate.ParseOperators(aggregate.DefaultOperators(), cfg.Operators)
	if err != nil {
		return lookup.Config{}, fmt.Errorf("OPERATORS: %w", err)
	}
	out.Operators = ops
	return out, nil
}

func summaryCache(ctx context.Context, cfg config.Config) (*redisstore.Client, *summarycache.Cache, error) {
	rc, err := redisstore.New(ctx, cfg.Cache.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	m, err := h3mapper.New(cfg.Cache.H3Res)
	if err != nil {
		_ = rc.Close()
		return nil, nil, err
	}
	sc := summarycache.New(rc, m, cfg.Cache.TTL,
		summarycache.WithRadius(cfg.SearchRadius),
		summarycache.WithLayout(partition.Lambert93()),
	)
	return rc, sc, nil
}

