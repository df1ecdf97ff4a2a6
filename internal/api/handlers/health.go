package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/eventdeck/server/internal/domain/modules"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms"`
	Details   map[string]any `json:"details,omitempty"`
}

type HealthChecker struct {
	store     Pinger
	catalog   *modules.Catalog
	driver    string
	version   string
	gitCommit string
}

func NewHealthChecker(store Pinger, catalog *modules.Catalog, driver, version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		store:     store,
		catalog:   catalog,
		driver:    driver,
		version:   version,
		gitCommit: gitCommit,
	}
}

// Health reports each dependency. Any failing check turns the response into
// a 503.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
			return
		default:
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]CheckResult{
			"store":   h.checkStore(ctx),
			"catalog": h.checkCatalog(),
		}

		status, code := "healthy", http.StatusOK
		for _, check := range checks {
			if check.Status == "fail" {
				status, code = "unhealthy", http.StatusServiceUnavailable
				break
			}
			if check.Status == "warn" {
				status = "degraded"
			}
		}

		writeJSON(w, code, HealthCheck{
			Status:    status,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (h *HealthChecker) checkStore(ctx context.Context) CheckResult {
	if h.store == nil {
		return CheckResult{Status: "fail", Message: "Event store not initialized"}
	}

	storeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.store.Ping(storeCtx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{
			Status:    "fail",
			Message:   "Event store unreachable",
			LatencyMs: latency,
			Details:   map[string]any{"driver": h.driver, "error": err.Error()},
		}
	}
	return CheckResult{
		Status:    "pass",
		Message:   "Event store reachable",
		LatencyMs: latency,
		Details:   map[string]any{"driver": h.driver},
	}
}

func (h *HealthChecker) checkCatalog() CheckResult {
	if h.catalog == nil || h.catalog.Len() == 0 {
		return CheckResult{Status: "warn", Message: "Module catalog is empty"}
	}
	return CheckResult{
		Status:  "pass",
		Message: "Module catalog loaded",
		Details: map[string]any{"modules": h.catalog.Len()},
	}
}

// Readyz is the readiness probe: 200 only while the store answers.
func (h *HealthChecker) Readyz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check := h.checkStore(r.Context()); check.Status != "pass" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// Healthz is the liveness probe.
func Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Root is the service banner.
func Root(port int) http.HandlerFunc {
	body := map[string]string{
		"message": fmt.Sprintf("Server running on port %d.", port),
		"url":     fmt.Sprintf("http://localhost:%d/", port),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
