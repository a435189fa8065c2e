package sources

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
)

const companyWorkers = 8

// CompanyFetch loads the postings of one company board.
type CompanyFetch func(ctx context.Context, co config.Company) ([]domain.RawRecord, error)

// EachCompany fans fetch out over companies with a small worker pool.
// A failing company is logged and skipped; the call fails only when every
// company failed. Records keep the configured company order.
func EachCompany(ctx context.Context, source string, companies []config.Company, perCompany time.Duration, fetch CompanyFetch) ([]domain.RawRecord, error) {
	companies = cleanCompanies(companies)
	if len(companies) == 0 {
		return nil, nil
	}

	results := make([][]domain.RawRecord, len(companies))
	errs := make([]error, len(companies))

	work := make(chan int)
	var wg sync.WaitGroup
	workers := min(companyWorkers, len(companies))
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range work {
				co := companies[i]
				cctx, cancel := context.WithTimeout(ctx, perCompany)
				recs, err := fetch(cctx, co)
				cancel()
				if err != nil {
					log.Printf("[%s] company=%q slug=%q err=%v", source, co.Name, co.Slug, err)
					errs[i] = fmt.Errorf("%s: %w", co.Slug, err)
					continue
				}
				results[i] = recs
			}
		}()
	}

	go func() {
		defer close(work)
		for i := range companies {
			select {
			case <-ctx.Done():
				return
			case work <- i:
			}
		}
	}()
	wg.Wait()

	var out []domain.RawRecord
	failed := 0
	for i := range companies {
		out = append(out, results[i]...)
		if errs[i] != nil {
			failed++
		}
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}
	if failed == len(companies) {
		return out, fmt.Errorf("all %d companies failed: %w", failed, errors.Join(errs...))
	}
	log.Printf("[%s] companies=%d failed=%d records=%d", source, len(companies), failed, len(out))
	return out, nil
}

func cleanCompanies(in []config.Company) []config.Company {
	out := make([]config.Company, 0, len(in))
	for _, c := range in {
		slug := strings.TrimSpace(c.Slug)
		if slug == "" {
			continue
		}
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = slug
		}
		out = append(out, config.Company{Slug: slug, Name: name})
	}
	return out
}
