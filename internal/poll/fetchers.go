package poll

import (
	"log"
	"time"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/secrets"
	"jobwatch-engine/internal/sources"
	"jobwatch-engine/internal/sources/email"
	"jobwatch-engine/internal/sources/greenhouse"
	"jobwatch-engine/internal/sources/htmlboard"
	"jobwatch-engine/internal/sources/lever"
	"jobwatch-engine/internal/sources/smartrecruiters"
	"jobwatch-engine/internal/sources/workday"
)

// Fetchers builds the enabled sources in a fixed order: greenhouse, lever,
// smartrecruiters, workday, html boards, email. One host limiter is shared by all.
func Fetchers(cfg config.Config) []sources.Fetcher {
	limiter := sources.NewHostLimiter(cfg.HTTP.RequestsPerSecond, cfg.HTTP.Burst)
	client := sources.NewClient(time.Duration(cfg.HTTP.TimeoutSeconds)*time.Second, limiter)

	var out []sources.Fetcher
	if s := cfg.Sources.Greenhouse; s.Enabled && len(s.Companies) > 0 {
		out = append(out, greenhouse.New(s.Companies, client))
	}
	if s := cfg.Sources.Lever; s.Enabled && len(s.Companies) > 0 {
		out = append(out, lever.New(s.Companies, client))
	}
	if s := cfg.Sources.SmartRecruiters; s.Enabled && len(s.Companies) > 0 {
		out = append(out, smartrecruiters.New(s.Companies, client))
	}
	if s := cfg.Sources.Workday; s.Enabled && len(s.Companies) > 0 {
		out = append(out, workday.New(s.Companies, limiter, time.Duration(cfg.HTTP.TimeoutSeconds)*time.Second))
	}
	for _, b := range cfg.Sources.HTMLBoards {
		if b.URL == "" {
			continue
		}
		out = append(out, htmlboard.New(b, client))
	}
	if cfg.Email.Enabled {
		pw, err := secrets.IMAPPassword(cfg)
		if err != nil {
			// still added, so the run notes show the source failing
			log.Printf("[poll] email enabled but %v", err)
		}
		out = append(out, email.NewIMAP(cfg.Email, pw))
	}
	return out
}
