package sources

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"jobwatch-engine/internal/domain"
)

// Gather runs every fetcher concurrently and returns one batch per fetcher,
// in the order given. A failing fetcher yields a batch with Err set and
// whatever records it managed to return; it never cancels its siblings.
// timeout bounds each fetcher separately; zero means no bound beyond ctx.
func Gather(ctx context.Context, fetchers []Fetcher, timeout time.Duration) []domain.SourceBatch {
	out := make([]domain.SourceBatch, len(fetchers))

	var g errgroup.Group
	for i, f := range fetchers {
		g.Go(func() error {
			fctx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			recs, err := safeFetch(fctx, f)
			out[i] = domain.SourceBatch{Source: f.Name(), Records: recs, Err: err}

			if err != nil {
				log.Printf("[sources] source=%s records=%d took=%s err=%v", f.Name(), len(recs), time.Since(start).Round(time.Millisecond), err)
			} else {
				log.Printf("[sources] source=%s records=%d took=%s", f.Name(), len(recs), time.Since(start).Round(time.Millisecond))
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func safeFetch(ctx context.Context, f Fetcher) (recs []domain.RawRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s fetcher: %v", f.Name(), r)
		}
	}()
	return f.Fetch(ctx)
}
