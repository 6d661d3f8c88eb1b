package handlers

import (
	"net/http"
	"sort"
	"time"

	domain "github.com/dashmart/promotions/internal/domain"
	"github.com/dashmart/promotions/internal/services"
)

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	system services.SystemService
	build  services.BuildInfo
	clock  func() time.Time
}

// HealthOption customises health handler construction.
type HealthOption func(*HealthHandlers)

// NewHealthHandlers constructs health handlers with optional system service wiring.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock: time.Now,
		build: services.BuildInfo{StartedAt: time.Now().UTC()},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithHealthSystemService wires the system service used by the readiness probe.
func WithHealthSystemService(system services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = system
	}
}

// WithHealthBuildInfo sets the build metadata reported by the liveness probe.
func WithHealthBuildInfo(build services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = build
	}
}

// WithHealthClock overrides the clock, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type readinessPayload struct {
	Status      string                        `json:"status"`
	Version     string                        `json:"version,omitempty"`
	CommitSHA   string                        `json:"commitSha,omitempty"`
	Environment string                        `json:"environment,omitempty"`
	Uptime      string                        `json:"uptime,omitempty"`
	GeneratedAt string                        `json:"generatedAt,omitempty"`
	Checks      map[string]healthCheckPayload `json:"checks"`
	Details     []string                      `json:"details"`
}

// Healthz reports process liveness and build metadata; it never probes dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	payload := map[string]any{
		"status":      domain.HealthStatusOK,
		"version":     h.build.Version,
		"commitSha":   h.build.CommitSHA,
		"environment": h.build.Environment,
		"timestamp":   now.Format(time.RFC3339),
	}
	if !h.build.StartedAt.IsZero() {
		payload["uptime"] = now.Sub(h.build.StartedAt).String()
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz probes dependencies through the system service. Responds 503 when the
// aggregate status is error or the probe itself fails.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, readinessPayload{
			Status:  domain.HealthStatusError,
			Checks:  map[string]healthCheckPayload{},
			Details: []string{err.Error()},
		})
		return
	}

	payload := readinessPayload{
		Status:      report.Status,
		Version:     report.Version,
		CommitSHA:   report.CommitSHA,
		Environment: report.Environment,
		Checks:      make(map[string]healthCheckPayload, len(report.Checks)),
		Details:     buildCheckDetails(report.Checks),
	}
	if report.Uptime > 0 {
		payload.Uptime = report.Uptime.String()
	}
	if !report.GeneratedAt.IsZero() {
		payload.GeneratedAt = report.GeneratedAt.UTC().Format(time.RFC3339)
	}
	for name, check := range report.Checks {
		entry := healthCheckPayload{
			Status:    check.Status,
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
		}
		if !check.CheckedAt.IsZero() {
			entry.CheckedAt = check.CheckedAt.UTC().Format(time.RFC3339)
		}
		payload.Checks[name] = entry
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, payload)
}

func buildCheckDetails(checks map[string]domain.SystemHealthCheck) []string {
	details := make([]string, 0)
	for name, check := range checks {
		if check.Status == domain.HealthStatusOK || check.Status == "" {
			continue
		}
		detail := name + ": " + check.Status
		if check.Error != "" {
			detail += " (" + check.Error + ")"
		}
		details = append(details, detail)
	}
	sort.Strings(details)
	return details
}
