// Package workday pages through the JSON endpoint behind Workday career
// sites. A company's slug is the full board URL, for example
// https://acme.wd5.myworkdayjobs.com/en-US/External.
package workday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/sources"
)

const (
	pageSize    = 50
	maxPostings = 5000
	browserUA   = "Mozilla/5.0"
)

// ErrBlocked means the tenant's host answered with a bot wall. Every later
// company on that host is skipped for the rest of the run.
var ErrBlocked = errors.New("workday host blocked")

type Scraper struct {
	Companies []config.Company

	limiter *sources.HostLimiter
	timeout time.Duration

	mu      sync.Mutex
	blocked map[string]bool
}

func New(companies []config.Company, limiter *sources.HostLimiter, timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scraper{
		Companies: companies,
		limiter:   limiter,
		timeout:   timeout,
		blocked:   map[string]bool{},
	}
}

func (s *Scraper) Name() string { return "workday" }

func (s *Scraper) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	return sources.EachCompany(ctx, s.Name(), s.Companies, 90*time.Second, s.fetchCompany)
}

type board struct {
	Scheme string
	Host   string
	Tenant string
	Site   string
	Locale string
	URL    string
}

func parseBoardURL(raw string) (board, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return board{}, errors.New("empty board url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return board{}, err
	}
	if u.Scheme == "" || u.Host == "" {
		return board{}, fmt.Errorf("board url %q needs scheme and host", raw)
	}

	parts := strings.Split(u.Hostname(), ".")
	if len(parts) < 3 {
		return board{}, fmt.Errorf("unexpected host %q", u.Host)
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if segs[0] == "" {
		return board{}, fmt.Errorf("board url %q has no site path", raw)
	}
	locale := ""
	if len(segs) >= 2 && isLocale(segs[0]) {
		locale = strings.ToLower(segs[0][:2]) + "-" + strings.ToUpper(segs[0][3:])
		segs = segs[1:]
	}

	return board{
		Scheme: u.Scheme,
		Host:   u.Host,
		Tenant: parts[0],
		Site:   segs[len(segs)-1],
		Locale: locale,
		URL:    strings.TrimRight(raw, "/"),
	}, nil
}

// isLocale accepts en-US, en-us and the like.
func isLocale(s string) bool {
	if len(s) != 5 || s[2] != '-' {
		return false
	}
	for _, c := range s[:2] + s[3:] {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func (b board) origin() string { return b.Scheme + "://" + b.Host }

func (b board) jobsEndpoint() string {
	u := fmt.Sprintf("%s/wday/cxs/%s/%s/jobs", b.origin(), b.Tenant, b.Site)
	if b.Locale != "" {
		u += "?locale=" + url.QueryEscape(b.Locale)
	}
	return u
}

func (b board) jobURL(p posting) string {
	if p.ExternalURL != "" {
		return strings.TrimSpace(p.ExternalURL)
	}
	path := strings.TrimSpace(p.ExternalPath)
	switch {
	case path == "":
		return ""
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return path
	case !strings.HasPrefix(path, "/"):
		path = "/" + path
	}
	// external paths are relative to the site, not the host
	return b.URL + path
}

type jobsRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

type jobsResponse struct {
	Total       int       `json:"total"`
	JobPostings []posting `json:"jobPostings"`
}

type posting struct {
	Title         string `json:"title"`
	ExternalPath  string `json:"externalPath"`
	ExternalURL   string `json:"externalUrl"`
	LocationsText string `json:"locationsText"`
	Location      string `json:"location"`
	PostedOn      string `json:"postedOn"`
	PostedOnDate  string `json:"postedOnDate"`
}

func (s *Scraper) isBlocked(host string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked[host]
}

func (s *Scraper) block(host string) {
	s.mu.Lock()
	s.blocked[host] = true
	s.mu.Unlock()
	log.Printf("[workday] host=%s blocked; skipping its remaining companies", host)
}

func (s *Scraper) fetchCompany(ctx context.Context, co config.Company) ([]domain.RawRecord, error) {
	b, err := parseBoardURL(co.Slug)
	if err != nil {
		return nil, err
	}
	if s.isBlocked(b.Host) {
		return nil, ErrBlocked
	}

	// per-company jar so the session and CSRF cookies stick
	jar, _ := cookiejar.New(nil)
	hc := &http.Client{Jar: jar, Timeout: s.timeout}

	csrf, bootErr := s.bootstrap(ctx, hc, b)
	if errors.Is(bootErr, ErrBlocked) {
		s.block(b.Host)
		return nil, ErrBlocked
	}

	var out []domain.RawRecord
	for offset := 0; offset < maxPostings; offset += pageSize {
		data, status, err := s.postJobs(ctx, hc, b, csrf, offset)
		if err != nil {
			return out, err
		}
		if status >= 400 {
			if bootErr == nil {
				return out, fmt.Errorf("jobs status %d body=%s", status, truncate(string(data), 240))
			}
			// some tenants only hand out the token after a failed call
			if csrf, bootErr = s.bootstrap(ctx, hc, b); bootErr != nil {
				if errors.Is(bootErr, ErrBlocked) {
					s.block(b.Host)
				}
				return out, bootErr
			}
			if data, status, err = s.postJobs(ctx, hc, b, csrf, offset); err != nil {
				return out, err
			}
			if status >= 400 {
				return out, fmt.Errorf("jobs status %d after bootstrap body=%s", status, truncate(string(data), 240))
			}
		}

		var jr jobsResponse
		if err := json.Unmarshal(data, &jr); err != nil {
			return out, fmt.Errorf("decode jobs: %w body=%s", err, truncate(string(data), 240))
		}
		if len(jr.JobPostings) == 0 {
			break
		}

		for _, p := range jr.JobPostings {
			link := b.jobURL(p)
			if link == "" {
				continue
			}
			rec := domain.RawRecord{
				"url":      link,
				"title":    p.Title,
				"company":  co.Name,
				"location": firstNonEmpty(p.LocationsText, p.Location),
			}
			if t, ok := parsePostedOn(p.PostedOnDate); ok {
				rec["posted_at"] = t
			}
			out = append(out, rec)
		}

		if jr.Total > 0 && offset+pageSize >= jr.Total {
			break
		}
	}
	return out, nil
}

func (s *Scraper) postJobs(ctx context.Context, hc *http.Client, b board, csrf string, offset int) ([]byte, int, error) {
	payload, err := json.Marshal(jobsRequest{AppliedFacets: map[string]any{}, Limit: pageSize, Offset: offset})
	if err != nil {
		return nil, 0, err
	}

	endpoint := b.jobsEndpoint()
	if err := s.limiter.WaitURL(ctx, endpoint); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", b.origin())
	req.Header.Set("Referer", b.URL)
	req.Header.Set("Accept-Language", firstNonEmpty(b.Locale, "en-US"))
	if csrf != "" {
		req.Header.Set("X-Calypso-Csrf-Token", csrf)
	}

	res, err := hc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("post jobs: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 16<<20))
	if err != nil {
		return nil, 0, err
	}
	return data, res.StatusCode, nil
}

// bootstrap loads the board page once and returns the CSRF token the tenant
// set as a cookie.
func (s *Scraper) bootstrap(ctx context.Context, hc *http.Client, b board) (string, error) {
	if err := s.limiter.WaitURL(ctx, b.URL); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US")

	res, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	preview, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	_, _ = io.Copy(io.Discard, res.Body)

	if looksBlocked(res, string(preview)) {
		return "", ErrBlocked
	}

	u, _ := url.Parse(b.URL)
	for _, c := range hc.Jar.Cookies(u) {
		if c.Name == "CALYPSO_CSRF_TOKEN" && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("bootstrap: no CALYPSO_CSRF_TOKEN cookie (status=%d)", res.StatusCode)
}

func looksBlocked(res *http.Response, preview string) bool {
	if res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusTooManyRequests {
		return true
	}
	server := strings.ToLower(res.Header.Get("Server"))
	if strings.Contains(server, "cloudflare") && res.Header.Get("Cf-Ray") != "" {
		return true
	}
	low := strings.ToLower(preview)
	return strings.Contains(low, "/cdn-cgi/") ||
		strings.Contains(low, "cloudflare") && strings.Contains(low, "checking your browser") ||
		strings.Contains(low, "cloudflare") && strings.Contains(low, "attention required")
}

// parsePostedOn reads RFC3339, plain dates and epoch seconds or millis.
// Relative text such as "Posted 3 Days Ago" is not a date.
func parsePostedOn(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		if n >= 1_000_000_000_000 {
			return time.UnixMilli(n), true
		}
		return time.Unix(n, 0), true
	}
	return time.Time{}, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(s))
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
