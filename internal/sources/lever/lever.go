// Package lever reads postings from the public Lever postings API.
package lever

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/sources"
)

const DefaultBaseURL = "https://api.lever.co/v0/postings"

type Scraper struct {
	Companies []config.Company
	BaseURL   string

	client *sources.Client
}

func New(companies []config.Company, client *sources.Client) *Scraper {
	return &Scraper{Companies: companies, BaseURL: DefaultBaseURL, client: client}
}

func (s *Scraper) Name() string { return "lever" }

func (s *Scraper) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	return sources.EachCompany(ctx, s.Name(), s.Companies, 20*time.Second, s.fetchCompany)
}

// Postings are passed through as decoded: hostedUrl, text,
// categories.location, categories.allLocations, workplaceType, createdAt
// (ms epoch) and salaryRange all have normalizer aliases.
func (s *Scraper) fetchCompany(ctx context.Context, co config.Company) ([]domain.RawRecord, error) {
	u := fmt.Sprintf("%s/%s?mode=json", s.BaseURL, url.PathEscape(co.Slug))

	var postings []map[string]any
	if err := s.client.GetJSON(ctx, u, &postings); err != nil {
		return nil, err
	}

	out := make([]domain.RawRecord, 0, len(postings))
	for _, p := range postings {
		rec := domain.RawRecord(p)
		rec["company"] = co.Name
		out = append(out, rec)
	}
	return out, nil
}
