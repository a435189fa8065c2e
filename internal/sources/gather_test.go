package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
)

type fakeFetcher struct {
	name string
	recs []domain.RawRecord
	err  error
	wait time.Duration
	boom bool
}

func (f fakeFetcher) Name() string { return f.name }

func (f fakeFetcher) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	if f.boom {
		panic("kaboom")
	}
	if f.wait > 0 {
		select {
		case <-time.After(f.wait):
		case <-ctx.Done():
			return f.recs, ctx.Err()
		}
	}
	return f.recs, f.err
}

func TestGatherKeepsOrderAndIsolatesFailures(t *testing.T) {
	rec := domain.RawRecord{"url": "https://x.example/1"}
	fetchers := []Fetcher{
		fakeFetcher{name: "slow", recs: []domain.RawRecord{rec}, wait: 30 * time.Millisecond},
		fakeFetcher{name: "down", err: errors.New("503")},
		fakeFetcher{name: "panics", boom: true},
		fakeFetcher{name: "partial", recs: []domain.RawRecord{rec, rec}, err: errors.New("page 2 failed")},
	}

	batches := Gather(context.Background(), fetchers, time.Second)
	require.Len(t, batches, 4)

	assert.Equal(t, "slow", batches[0].Source)
	assert.NoError(t, batches[0].Err)
	assert.Len(t, batches[0].Records, 1)

	assert.Equal(t, "down", batches[1].Source)
	assert.EqualError(t, batches[1].Err, "503")

	assert.Equal(t, "panics", batches[2].Source)
	assert.ErrorContains(t, batches[2].Err, "panic")

	assert.Equal(t, "partial", batches[3].Source)
	assert.Error(t, batches[3].Err)
	assert.Len(t, batches[3].Records, 2)
}

func TestGatherTimeoutIsPerFetcher(t *testing.T) {
	fetchers := []Fetcher{
		fakeFetcher{name: "stuck", wait: time.Hour},
		fakeFetcher{name: "quick"},
	}
	start := time.Now()
	batches := Gather(context.Background(), fetchers, 50*time.Millisecond)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.ErrorIs(t, batches[0].Err, context.DeadlineExceeded)
	assert.NoError(t, batches[1].Err)
}

func TestEachCompanyFailsOnlyWhenAllFail(t *testing.T) {
	companies := []config.Company{{Slug: "a"}, {Slug: "b", Name: "Bee"}, {Slug: " "}}

	recs, err := EachCompany(context.Background(), "test", companies, time.Second,
		func(_ context.Context, co config.Company) ([]domain.RawRecord, error) {
			if co.Slug == "a" {
				return nil, errors.New("gone")
			}
			return []domain.RawRecord{{"company": co.Name}}, nil
		})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Bee", recs[0]["company"])

	_, err = EachCompany(context.Background(), "test", companies, time.Second,
		func(context.Context, config.Company) ([]domain.RawRecord, error) {
			return nil, errors.New("gone")
		})
	assert.ErrorContains(t, err, "all 2 companies failed")
}

func TestHostLimiterNilNeverWaits(t *testing.T) {
	var hl *HostLimiter
	assert.NoError(t, hl.WaitURL(context.Background(), "https://x.example"))
}

func TestHostLimiterIsPerHost(t *testing.T) {
	hl := NewHostLimiter(1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, hl.WaitURL(ctx, "https://a.example/x"))
	// different host has its own bucket
	require.NoError(t, hl.WaitURL(ctx, "https://b.example/x"))
	// same host must wait ~1s, longer than ctx allows
	assert.Error(t, hl.WaitURL(ctx, "https://a.example/y"))
	// hostname is case-insensitive and ignores the port
	assert.Error(t, hl.WaitURL(ctx, "https://A.Example:443/z"))
}

func TestHostLimiterHoldDelaysHost(t *testing.T) {
	hl := NewHostLimiter(100, 10)
	hl.Hold("https://a.example/jobs", time.Hour)
	hl.Hold("https://a.example/jobs", time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, hl.WaitURL(ctx, "https://a.example/other"), context.DeadlineExceeded)
	assert.NoError(t, hl.WaitURL(ctx, "https://b.example/jobs"))
}
