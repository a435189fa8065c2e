package poll

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"jobwatch-engine/internal/classify"
	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/sources"
	"jobwatch-engine/internal/state"
)

var ErrRunning = errors.New("a run is already in progress")

type Status struct {
	LastRunAt      string `json:"last_run_at"`
	LastOkAt       string `json:"last_ok_at"`
	LastError      string `json:"last_error"`
	LastNetNew     int    `json:"last_net_new"`
	LastExclusions int    `json:"last_exclusions"`
	Running        bool   `json:"running"`
}

// Runner serializes runs inside one process and remembers the outcome of
// the last one for the API. The state lock still guards against other
// processes.
type Runner struct {
	cfg   *atomic.Value // config.Config
	store state.Store
	hub   *events.Hub

	// FetchersFor builds the sources for a run; tests swap it out.
	FetchersFor func(config.Config) []sources.Fetcher

	running atomic.Bool
	status  atomic.Value // Status
	last    atomic.Value // domain.RunSummary
}

func NewRunner(cfg *atomic.Value, store state.Store, hub *events.Hub) *Runner {
	r := &Runner{cfg: cfg, store: store, hub: hub, FetchersFor: Fetchers}
	r.status.Store(Status{})
	return r
}

// Run starts a run unless one is already going, in which case it returns
// ErrRunning straight away.
func (r *Runner) Run(ctx context.Context) (domain.RunSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.hub.Emit(events.TypeRunSkipped, map[string]string{"reason": "already running"})
		return domain.RunSummary{}, ErrRunning
	}
	defer r.running.Store(false)

	cfg := r.cfg.Load().(config.Config)
	st := r.Status()
	st.Running = true
	st.LastRunAt = time.Now().Format(time.RFC3339)
	r.status.Store(st)

	sum, err := r.run(ctx, cfg)

	st = r.Status()
	st.Running = false
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastError = ""
		st.LastOkAt = time.Now().Format(time.RFC3339)
		st.LastNetNew = len(sum.NetNew)
		st.LastExclusions = len(sum.Exclusions)
		r.last.Store(sum)
	}
	r.status.Store(st)
	return sum, err
}

func (r *Runner) run(ctx context.Context, cfg config.Config) (domain.RunSummary, error) {
	cls, err := classify.New(cfg.Rules)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("compile rules: %w", err)
	}
	// the store was opened at startup; a later state.path edit does not move it
	return RunOnce(ctx, Deps{
		Fetchers:      r.FetchersFor(cfg),
		Classifier:    cls,
		Store:         r.store,
		LockPath:      r.store.Path(),
		SourceTimeout: time.Duration(cfg.HTTP.SourceTimeout) * time.Second,
		SummaryPath:   cfg.SummaryPath(),
		Hub:           r.hub,
	})
}

func (r *Runner) Running() bool { return r.running.Load() }

func (r *Runner) Status() Status {
	st, _ := r.status.Load().(Status)
	st.Running = r.running.Load()
	return st
}

// Last returns the summary of the last successful run in this process.
func (r *Runner) Last() (domain.RunSummary, bool) {
	sum, ok := r.last.Load().(domain.RunSummary)
	return sum, ok
}
