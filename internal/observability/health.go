package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// ReadinessResponse is the readiness body, one entry per dependency.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthChecker can verify its own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ReadinessChecks lists the service's dependencies. The trip store and API
// document are required; the idempotency store is checked only when set.
type ReadinessChecks struct {
	TripStore        HealthChecker
	APILoaded        func() bool
	IdempotencyStore HealthChecker
}

const checkTimeout = 2 * time.Second

var (
	errNoTripStore = errors.New("no trip store configured")
	errNoAPI       = errors.New("API document not loaded")
)

type checkFunc func(ctx context.Context) error

func (c ReadinessChecks) named() map[string]checkFunc {
	checks := map[string]checkFunc{
		"trip_store": func(ctx context.Context) error {
			if c.TripStore == nil {
				return errNoTripStore
			}
			return c.TripStore.HealthCheck(ctx)
		},
		"openapi": func(context.Context) error {
			if c.APILoaded == nil || !c.APILoaded() {
				return errNoAPI
			}
			return nil
		},
	}
	if c.IdempotencyStore != nil {
		checks["idempotency_store"] = c.IdempotencyStore.HealthCheck
	}
	return checks
}

// HandleHealth answers liveness probes with build information.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeHealthJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version, Commit: Commit})
	}
}

// HandleReady runs every dependency check in parallel and answers 503 if
// any of them fails.
func HandleReady(checks ReadinessChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		named := checks.named()
		results := make(map[string]CheckResult, len(named))
		var mu sync.Mutex
		var wg sync.WaitGroup
		for name, check := range named {
			wg.Go(func() {
				result := runCheck(r.Context(), check)
				mu.Lock()
				results[name] = result
				mu.Unlock()
			})
		}
		wg.Wait()

		resp := ReadinessResponse{Status: "ready", Checks: results}
		status := http.StatusOK
		for _, result := range results {
			if result.Status != "ok" {
				resp.Status = "not_ready"
				status = http.StatusServiceUnavailable
				break
			}
		}
		writeHealthJSON(w, status, resp)
	}
}

func runCheck(parent context.Context, check checkFunc) CheckResult {
	ctx, cancel := context.WithTimeout(parent, checkTimeout)
	defer cancel()

	start := time.Now()
	err := check(ctx)
	result := CheckResult{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		result.Status = "error"
		result.Error = err.Error()
	}
	return result
}

func writeHealthJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
