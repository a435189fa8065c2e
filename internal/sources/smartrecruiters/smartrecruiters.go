// Package smartrecruiters pages through the public SmartRecruiters postings API.
package smartrecruiters

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/sources"
)

const (
	DefaultBaseURL = "https://api.smartrecruiters.com/v1/companies"
	DefaultJobsURL = "https://jobs.smartrecruiters.com"

	pageSize    = 100
	maxPostings = 5000
)

type Scraper struct {
	Companies []config.Company
	BaseURL   string
	JobsURL   string

	client *sources.Client
}

func New(companies []config.Company, client *sources.Client) *Scraper {
	return &Scraper{
		Companies: companies,
		BaseURL:   DefaultBaseURL,
		JobsURL:   DefaultJobsURL,
		client:    client,
	}
}

func (s *Scraper) Name() string { return "smartrecruiters" }

func (s *Scraper) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	return sources.EachCompany(ctx, s.Name(), s.Companies, time.Minute, s.fetchCompany)
}

// { "content": [...], "totalFound": N, "offset": O, "limit": L }
type postingsResponse struct {
	Content    []posting `json:"content"`
	TotalFound int       `json:"totalFound"`
}

type posting struct {
	ID           string `json:"id"`
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	ReleasedDate string `json:"releasedDate"`
	Location     struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
		Remote  bool   `json:"remote"`
	} `json:"location"`
}

func (s *Scraper) fetchCompany(ctx context.Context, co config.Company) ([]domain.RawRecord, error) {
	base := fmt.Sprintf("%s/%s/postings", s.BaseURL, url.PathEscape(co.Slug))

	var out []domain.RawRecord
	for offset := 0; offset < maxPostings; offset += pageSize {
		u := fmt.Sprintf("%s?limit=%d&offset=%d", base, pageSize, offset)

		var pr postingsResponse
		if err := s.client.GetJSON(ctx, u, &pr); err != nil {
			return out, err
		}
		if len(pr.Content) == 0 {
			break
		}

		for _, p := range pr.Content {
			id := firstNonEmpty(p.ID, p.UUID)
			if id == "" {
				continue
			}
			rec := domain.RawRecord{
				"url":       fmt.Sprintf("%s/%s/%s", s.JobsURL, co.Slug, id),
				"title":     p.Name,
				"company":   co.Name,
				"location":  joinNonEmpty(p.Location.City, p.Location.Region, p.Location.Country),
				"posted_at": p.ReleasedDate,
			}
			if p.Location.Remote {
				rec["workplace"] = "Remote"
			}
			out = append(out, rec)
		}

		if pr.TotalFound > 0 && offset+pageSize >= pr.TotalFound {
			break
		}
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(vals ...string) string {
	parts := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}
