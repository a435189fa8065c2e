// Package greenhouse reads job boards through the public Greenhouse boards API.
package greenhouse

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/sources"
)

const DefaultBaseURL = "https://boards-api.greenhouse.io/v1/boards"

type Scraper struct {
	Companies []config.Company
	BaseURL   string

	client *sources.Client
}

func New(companies []config.Company, client *sources.Client) *Scraper {
	return &Scraper{Companies: companies, BaseURL: DefaultBaseURL, client: client}
}

func (s *Scraper) Name() string { return "greenhouse" }

func (s *Scraper) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	return sources.EachCompany(ctx, s.Name(), s.Companies, 30*time.Second, s.fetchCompany)
}

// boardResponse keeps each job as a raw map; absolute_url, title,
// location.name, offices and updated_at are read by the normalizer.
type boardResponse struct {
	Jobs []map[string]any `json:"jobs"`
}

func (s *Scraper) fetchCompany(ctx context.Context, co config.Company) ([]domain.RawRecord, error) {
	u := fmt.Sprintf("%s/%s/jobs", s.BaseURL, url.PathEscape(co.Slug))

	var br boardResponse
	if err := s.client.GetJSON(ctx, u, &br); err != nil {
		return nil, err
	}

	out := make([]domain.RawRecord, 0, len(br.Jobs))
	for _, j := range br.Jobs {
		rec := domain.RawRecord(j)
		rec["company"] = co.Name
		out = append(out, rec)
	}
	return out, nil
}
