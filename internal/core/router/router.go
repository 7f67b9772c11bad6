package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/observability"
	"github.com/mohammed-shakir/coverage-lookup/internal/lookup"
)

const LookupRoute = "/api/"

type Lookuper interface {
	Lookup(ctx context.Context, address string) (model.CoverageSummary, error)
}

// HandleLookup serves GET /api/?q=<address> and maps the lookup outcome to
// a status code and JSON body.
func HandleLookup(logger *slog.Logger, svc Lookuper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, LookupRoute, sw.code, time.Since(start).Seconds())
		}()

		q := r.URL.Query().Get("q")
		sum, err := svc.Lookup(r.Context(), q)
		if err == nil {
			writeJSON(sw, http.StatusOK, sum)
			return
		}

		status, body := mapError(q, err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(r.Context(), "lookup failed", "err", err)
		} else {
			logger.DebugContext(r.Context(), "lookup rejected", "outcome", lookup.Outcome(err), "err", err)
		}
		writeJSON(sw, status, body)
	}
}

func mapError(q string, err error) (int, map[string]string) {
	switch {
	case errors.Is(err, lookup.ErrInvalidInput):
		return http.StatusBadRequest, map[string]string{"error": "No address provided"}
	case errors.Is(err, lookup.ErrGeocoderUnavailable):
		return http.StatusNotFound, map[string]string{"error": "Unable to fetch coordinates"}
	case errors.Is(err, lookup.ErrNotFound):
		return http.StatusNotFound, map[string]string{"error": fmt.Sprintf("No coordinates found for address '%s'", q)}
	case errors.Is(err, lookup.ErrEmptyResult):
		return http.StatusOK, map[string]string{"message": "No network coverage found"}
	default:
		return http.StatusInternalServerError, map[string]string{"error": "Internal server error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
