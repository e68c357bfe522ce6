// Package health hosts the liveness, readiness and status probes.
package health

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"emblem/pkg/platform/httputil"
)

// Version is stamped at build time via ldflags.
var Version = "dev"

// CheckFunc probes one dependency. A nil return means ready.
type CheckFunc func() error

type probe struct {
	name  string
	check CheckFunc
}

// Handler serves the probe endpoints. Registered checks feed the
// readiness verdict; liveness never consults them.
type Handler struct {
	started     time.Time
	environment string

	mu     sync.RWMutex
	probes []probe
}

// New creates a Handler with no registered checks.
func New(environment string) *Handler {
	return &Handler{started: time.Now(), environment: environment}
}

// RegisterCheck adds a named readiness check. Registering a name twice
// replaces the earlier check.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.probes {
		if h.probes[i].name == name {
			h.probes[i].check = check
			return
		}
	}
	h.probes = append(h.probes, probe{name: name, check: check})
}

// Register mounts the probe routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.handleStatus)
	r.Get("/health/live", h.handleLiveness)
	r.Get("/health/ready", h.handleReadiness)
}

// handleLiveness answers 200 whenever the process can serve requests at all.
func (h *Handler) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "alive"})
}

type readinessBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleReadiness runs every registered check and answers 503 when any
// dependency is down. Checks run concurrently so one slow dependency
// does not hold up the verdict on the rest.
func (h *Handler) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	probes := make([]probe, len(h.probes))
	copy(probes, h.probes)
	h.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		verdict sync.Mutex
		checks  = make(map[string]string, len(probes))
		ready   = true
	)
	for _, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.check()

			verdict.Lock()
			defer verdict.Unlock()
			if err != nil {
				checks[p.name] = "down: " + err.Error()
				ready = false
				return
			}
			checks[p.name] = "up"
		}()
	}
	wg.Wait()

	body := readinessBody{Status: "ready", Checks: checks}
	if !ready {
		body.Status = "not_ready"
		httputil.WriteJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

type statusBody struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

// handleStatus reports version, environment and uptime alongside the
// overall verdict.
func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, statusBody{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}
