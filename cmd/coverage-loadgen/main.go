package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/httpclient"
)

type Config struct {
	TargetURL       string
	Concurrency     int
	Duration        time.Duration
	ZipfS           float64
	ZipfV           float64
	AddressFile     string
	OutputPrefix    string
	RequestTimeout  time.Duration
	AppendTimestamp bool
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.TargetURL, "target", "http://localhost:8080/api/", "coverage API lookup URL")
	flag.IntVar(&cfg.Concurrency, "concurrency", 16, "Concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "Test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.StringVar(&cfg.AddressFile, "addresses", "", "Optional file with one address per line")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/coverage", "Output file prefix (JSON/CSV)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.BoolVar(&cfg.AppendTimestamp, "append-ts", true, "Append UTC timestamp to output prefix")
	flag.Parse()
	return cfg
}

type sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Status    int
	Outcome   string
	Address   string
}

type summary struct {
	StartTime     time.Time        `json:"start"`
	EndTime       time.Time        `json:"end"`
	DurationSec   float64          `json:"duration_sec"`
	TotalRequests int64            `json:"total"`
	Outcomes      map[string]int64 `json:"outcomes"`
	ThroughputRPS float64          `json:"throughput_rps"`
	P50Ms         float64          `json:"p50_ms"`
	P95Ms         float64          `json:"p95_ms"`
	P99Ms         float64          `json:"p99_ms"`
	Concurrency   int              `json:"concurrency"`
	ZipfS         float64          `json:"zipf_s"`
	ZipfV         float64          `json:"zipf_v"`
	Addresses     int              `json:"addresses"`
	TargetURL     string           `json:"target"`
}

type aggregatedResult struct {
	total    int64
	outcomes map[string]int64
	latMs    []float64
}

func main() {
	cfg := loadConfig()
	if cfg.Concurrency <= 0 || cfg.ZipfS <= 1 || cfg.ZipfV < 1 {
		log.Fatalf("need concurrency>0, zipf-s>1, zipf-v>=1")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		log.Fatalf("mkdir results: %v", err)
	}
	prefix := cfg.OutputPrefix
	if cfg.AppendTimestamp {
		prefix = fmt.Sprintf("%s_%s", prefix, time.Now().UTC().Format("20060102_150405Z"))
	}

	addresses := defaultAddresses
	if strings.TrimSpace(cfg.AddressFile) != "" {
		loaded, err := loadAddresses(cfg.AddressFile)
		switch {
		case err != nil:
			log.Printf("WARN: %v; falling back to built-in addresses", err)
		case len(loaded) == 0:
			log.Printf("WARN: %s has no addresses; falling back to built-in addresses", cfg.AddressFile)
		default:
			addresses = loaded
		}
	}
	imax := uint64(len(addresses)) - 1

	target, err := url.Parse(cfg.TargetURL)
	if err != nil {
		log.Fatalf("bad target: %v", err)
	}

	client := httpclient.NewOutbound(httpclient.Options{
		Timeout:        cfg.RequestTimeout,
		MaxIdlePerHost: cfg.Concurrency,
		UserAgent:      "coverage-loadgen",
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	csvPath := prefix + "_samples.csv"
	jsonPath := prefix + "_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		log.Fatalf("open csv: %v", err)
	}
	defer func() { _ = csvFile.Close() }()
	csvWriter := csv.NewWriter(csvFile)

	samplesChan := make(chan sample, 4096)
	resultsChan := make(chan aggregatedResult, 1)
	go func() {
		_ = csvWriter.Write([]string{"timestamp", "latency_ms", "status", "outcome", "address"})
		agg := aggregatedResult{outcomes: map[string]int64{}, latMs: make([]float64, 0, 1<<16)}
		for s := range samplesChan {
			agg.total++
			agg.outcomes[s.Outcome]++
			ms := float64(s.Latency.Microseconds()) / 1000.0
			if s.Outcome != "transport_error" {
				agg.latMs = append(agg.latMs, ms)
			}
			_ = csvWriter.Write([]string{
				s.Timestamp.UTC().Format(time.RFC3339Nano),
				strconv.FormatFloat(ms, 'f', 3, 64),
				strconv.Itoa(s.Status),
				s.Outcome,
				s.Address,
			})
		}
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			log.Printf("csv flush error: %v", err)
		}
		resultsChan <- agg
	}()

	seed := time.Now().UnixNano()
	startTime := time.Now()
	log.Printf("loadgen start target=%s dur=%s conc=%d zipf(s=%.2f,v=%.2f) addresses=%d",
		cfg.TargetURL, cfg.Duration, cfg.Concurrency, cfg.ZipfS, cfg.ZipfV, len(addresses))

	var wg sync.WaitGroup
	wg.Add(cfg.Concurrency)
	for workerID := range cfg.Concurrency {
		go func(id int) {
			defer wg.Done()
			rWorker := rand.New(rand.NewSource(seed + int64(id) + 1))
			zipf := rand.NewZipf(rWorker, cfg.ZipfS, cfg.ZipfV, imax)
			for {
				if ctx.Err() != nil {
					return
				}
				v := zipf.Uint64()
				if v > uint64(math.MaxInt) || int(v) >= len(addresses) {
					continue
				}
				addr := addresses[v]

				u := *target
				q := u.Query()
				q.Set("q", addr)
				u.RawQuery = q.Encode()

				start := time.Now()
				status, body, err := fetch(ctx, client, u.String())
				if err != nil && ctx.Err() != nil {
					return
				}
				s := sample{
					Timestamp: start,
					Latency:   time.Since(start),
					Status:    status,
					Outcome:   outcome(status, body, err),
					Address:   addr,
				}
				select {
				case samplesChan <- s:
				case <-ctx.Done():
					return
				}
			}
		}(workerID)
	}

	go func() {
		<-ctx.Done()
		wg.Wait()
		close(samplesChan)
	}()

	agg := <-resultsChan
	endTime := time.Now()
	elapsed := endTime.Sub(startTime).Seconds()

	sort.Float64s(agg.latMs)
	run := summary{
		StartTime:     startTime.UTC(),
		EndTime:       endTime.UTC(),
		DurationSec:   elapsed,
		TotalRequests: agg.total,
		Outcomes:      agg.outcomes,
		ThroughputRPS: float64(agg.total) / elapsed,
		P50Ms:         percentile(agg.latMs, 50),
		P95Ms:         percentile(agg.latMs, 95),
		P99Ms:         percentile(agg.latMs, 99),
		Concurrency:   cfg.Concurrency,
		ZipfS:         cfg.ZipfS,
		ZipfV:         cfg.ZipfV,
		Addresses:     len(addresses),
		TargetURL:     cfg.TargetURL,
	}

	if jsonFile, err := os.Create(filepath.Clean(jsonPath)); err == nil {
		enc := json.NewEncoder(jsonFile)
		enc.SetIndent("", "  ")
		_ = enc.Encode(run)
		_ = jsonFile.Close()
	}

	log.Printf("done: total=%d outcomes=%v thr=%.2f rps p50=%.1fms p95=%.1fms p99=%.1fms",
		run.TotalRequests, run.Outcomes, run.ThroughputRPS, run.P50Ms, run.P95Ms, run.P99Ms)
	log.Printf("wrote %s and %s", jsonPath, csvPath)
}

// fetch returns the status and at most 4 KiB of the body.
func fetch(ctx context.Context, c *http.Client, u string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, string(b), nil
}
