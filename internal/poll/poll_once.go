// Package poll runs the pipeline: gather, reconcile, persist, report.
package poll

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/reconcile"
	"jobwatch-engine/internal/sources"
	"jobwatch-engine/internal/state"
)

type Deps struct {
	Fetchers   []sources.Fetcher
	Classifier reconcile.Classifier
	Store      state.Store

	// LockPath is the state path the run lock is taken next to.
	LockPath string
	LockWait time.Duration

	SourceTimeout time.Duration
	// SummaryPath, when set, receives the summary JSON after each run.
	SummaryPath string

	Hub *events.Hub
	Now func() time.Time
}

// RunOnce performs one complete run. Source failures are reported in the
// summary notes. A lock, load or save failure aborts the run with an error
// and no summary; the stored state is then exactly what it was before.
func RunOnce(ctx context.Context, d Deps) (domain.RunSummary, error) {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	started := now().UTC()
	d.Hub.Emit(events.TypeRunStarted, map[string]any{"sources": len(d.Fetchers)})

	sum, err := runOnce(ctx, d, now, started)
	if err != nil {
		log.Printf("[poll] run failed: %v", err)
		d.Hub.Emit(events.TypeRunFailed, map[string]string{"error": err.Error()})
		return domain.RunSummary{}, err
	}

	log.Printf("[poll] ok net_new=%d exclusions=%d off_profile=%d skipped=%d took=%s",
		len(sum.NetNew), len(sum.Exclusions), sum.OffProfile, sum.Skipped, sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond))
	d.Hub.Emit(events.TypeRunCompleted, map[string]int{
		"net_new":    len(sum.NetNew),
		"exclusions": len(sum.Exclusions),
		"skipped":    sum.Skipped,
	})
	return sum, nil
}

func runOnce(ctx context.Context, d Deps, now func() time.Time, started time.Time) (domain.RunSummary, error) {
	batches := sources.Gather(ctx, d.Fetchers, d.SourceTimeout)
	if err := ctx.Err(); err != nil {
		return domain.RunSummary{}, err
	}

	unlock, err := state.Lock(ctx, d.LockPath, d.LockWait)
	if err != nil {
		return domain.RunSummary{}, err
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Printf("[poll] unlock: %v", err)
		}
	}()

	prior, err := d.Store.Load(ctx)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("load state: %w", err)
	}

	sum, next := reconcile.Reconcile(batches, prior, d.Classifier, now().UTC())
	sum.StartedAt = started

	if err := d.Store.Save(ctx, next); err != nil {
		return domain.RunSummary{}, fmt.Errorf("save state: %w", err)
	}

	// state is durable from here on; later failures are only logged
	finalize(ctx, d.Fetchers, batches)

	if rec, ok := d.Store.(state.RunRecorder); ok {
		if err := rec.RecordRun(ctx, sum); err != nil {
			log.Printf("[poll] record run history: %v", err)
		}
	}
	if d.SummaryPath != "" {
		if err := WriteSummary(d.SummaryPath, sum); err != nil {
			log.Printf("[poll] write summary %s: %v", d.SummaryPath, err)
		}
	}
	return sum, nil
}

// finalize acknowledges sources whose fetch succeeded.
func finalize(ctx context.Context, fetchers []sources.Fetcher, batches []domain.SourceBatch) {
	for i, f := range fetchers {
		fin, ok := f.(sources.Finalizer)
		if !ok || batches[i].Err != nil {
			continue
		}
		if err := fin.Finalize(ctx); err != nil {
			log.Printf("[poll] finalize source=%s err=%v", f.Name(), err)
		}
	}
}

func WriteSummary(path string, sum domain.RunSummary) error {
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return state.WriteFileAtomic(path, append(b, '\n'))
}
