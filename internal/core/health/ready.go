package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Readiness pings every dependency concurrently and reports 503 unless all
// of them answered within timeout.
func Readiness(timeout time.Duration, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks,omitempty"`
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		var (
			mu     sync.Mutex
			wg     sync.WaitGroup
			checks = make(map[string]string, len(deps))
			ready  = true
		)
		for name, p := range deps {
			wg.Add(1)
			go func(name string, p Pinger) {
				defer wg.Done()
				res := "ok"
				if err := p.Ping(ctx); err != nil {
					res = err.Error()
				}
				mu.Lock()
				checks[name] = res
				if res != "ok" {
					ready = false
				}
				mu.Unlock()
			}(name, p)
		}
		wg.Wait()

		out := resp{Status: "not_ready", Checks: checks}
		if ready {
			out.Status = "ready"
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
