package services

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/ports"
)

const defaultCheckTimeout = 2 * time.Second

type (
	// Dependency is a named collaborator reported by the health checker. A
	// nil Pinger reports it as disabled.
	Dependency struct {
		Name   string
		Pinger ports.Pinger
	}

	// HealthChecker pings every dependency concurrently. Only failures of the
	// critical dependencies take the service down; the others degrade it.
	HealthChecker struct {
		app          config.App
		dependencies []Dependency
		critical     []string
		checkTimeout time.Duration
		startedAt    time.Time
		now          func() time.Time
	}

	HealthOption func(*HealthChecker)
)

var _ ports.HealthChecker = (*HealthChecker)(nil)

func WithCheckTimeout(d time.Duration) HealthOption {
	return func(h *HealthChecker) {
		h.checkTimeout = d
	}
}

func WithCritical(names ...string) HealthOption {
	return func(h *HealthChecker) {
		h.critical = names
	}
}

func NewHealthChecker(app config.App, dependencies []Dependency, opts ...HealthOption) *HealthChecker {
	h := &HealthChecker{
		app:          app,
		dependencies: dependencies,
		checkTimeout: defaultCheckTimeout,
		startedAt:    time.Now(),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Liveness only reports that the process is serving requests.
func (h *HealthChecker) Liveness(context.Context) (*model.LivenessReport, error) {
	return &model.LivenessReport{
		Status:    model.HealthStatusOK,
		Timestamp: h.now().UTC(),
		Version:   config.ServiceVersion,
	}, nil
}

func (h *HealthChecker) Readiness(ctx context.Context) (*model.ReadinessReport, error) {
	checks := h.runChecks(ctx)

	return &model.ReadinessReport{
		Status:    model.Aggregate(checks, h.critical...),
		Timestamp: h.now().UTC(),
		Version:   config.ServiceVersion,
		Checks:    checks,
	}, nil
}

func (h *HealthChecker) Health(ctx context.Context) (*model.HealthReport, error) {
	checks := h.runChecks(ctx)
	now := h.now().UTC()
	uptime := now.Sub(h.startedAt)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return &model.HealthReport{
		Status:    model.Aggregate(checks, h.critical...),
		Timestamp: now,
		Version: model.VersionInfo{
			API:   h.app.APIVersion,
			Build: config.CommitSHA,
			Go:    runtime.Version(),
		},
		Uptime: model.UptimeInfo{
			StartedAt:       h.startedAt.UTC(),
			Duration:        uptime.Round(time.Second).String(),
			DurationSeconds: uint64(uptime.Seconds()),
		},
		Checks: checks,
		System: model.SystemInfo{
			Goroutines: uint(runtime.NumGoroutine()),
			CPUCores:   uint(runtime.NumCPU()),
			AllocMB:    float64(mem.Alloc) / 1024 / 1024,
			SysMB:      float64(mem.Sys) / 1024 / 1024,
			GCCycles:   mem.NumGC,
		},
	}, nil
}

func (h *HealthChecker) runChecks(ctx context.Context) map[string]model.DependencyCheck {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]model.DependencyCheck, len(h.dependencies))
	)

	for _, dep := range h.dependencies {
		wg.Add(1)

		go func() {
			defer wg.Done()

			check := h.check(ctx, dep)

			mu.Lock()
			checks[dep.Name] = check
			mu.Unlock()
		}()
	}

	wg.Wait()

	return checks
}

func (h *HealthChecker) check(ctx context.Context, dep Dependency) model.DependencyCheck {
	if dep.Pinger == nil {
		return model.DependencyCheck{
			Status:      model.DependencyStatusDisabled,
			Message:     "disabled",
			LastChecked: h.now().UTC(),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, h.checkTimeout)
	defer cancel()

	start := time.Now()
	err := dep.Pinger.Ping(ctx)
	latency := uint64(time.Since(start).Milliseconds())

	if err != nil {
		return model.DependencyCheck{
			Status:      model.DependencyStatusDown,
			LatencyMs:   latency,
			Message:     "unreachable",
			LastChecked: h.now().UTC(),
			Error:       err.Error(),
		}
	}

	return model.DependencyCheck{
		Status:      model.DependencyStatusUp,
		LatencyMs:   latency,
		Message:     "ok",
		LastChecked: h.now().UTC(),
	}
}
