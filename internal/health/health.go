// Package health reports backend reachability and host load.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"docverify/pkg/platform/httputil"
)

const checkTimeout = 2 * time.Second

// Check tests one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// HostStats samples host load. Errors leave the corresponding field zero.
type HostStats func(ctx context.Context) Host

type Host struct {
	CPUPercent        float64 `json:"cpuPercent"`
	MemoryUsedPercent float64 `json:"memoryUsedPercent"`
	MemoryAvailableMB uint64  `json:"memoryAvailableMb"`
}

type Response struct {
	Status        string            `json:"status"`
	Checks        map[string]string `json:"checks"`
	Host          Host              `json:"host"`
	UptimeSeconds int64             `json:"uptimeSeconds"`
}

type Handler struct {
	checks  map[string]Check
	host    HostStats
	started time.Time
}

type Option func(*Handler)

// WithCheck registers a named dependency check.
func WithCheck(name string, check Check) Option {
	return func(h *Handler) {
		h.checks[name] = check
	}
}

// WithHostStats replaces the gopsutil sampler.
func WithHostStats(stats HostStats) Option {
	return func(h *Handler) {
		h.host = stats
	}
}

func New(opts ...Option) *Handler {
	h := &Handler{
		checks:  make(map[string]Check),
		host:    SampleHost,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
}

// HandleHealth handles GET /healthz. Any failing check turns the response 503.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.checks[name](ctx); err != nil {
				results[i] = err.Error()
				return
			}
			results[i] = "ok"
		}()
	}
	wg.Wait()

	resp := Response{
		Status:        "ok",
		Checks:        make(map[string]string, len(names)),
		Host:          h.host(ctx),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	status := http.StatusOK
	for i, name := range names {
		resp.Checks[name] = results[i]
		if results[i] != "ok" {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	httputil.WriteJSON(w, status, resp)
}

// SampleHost reads CPU and memory usage through gopsutil.
func SampleHost(ctx context.Context) Host {
	var host Host
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		host.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		host.MemoryUsedPercent = vm.UsedPercent
		host.MemoryAvailableMB = vm.Available / (1024 * 1024)
	}
	return host
}
