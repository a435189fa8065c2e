package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "jobwatch/1.0 (+local)"

type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// Client is the HTTP client shared by the board adapters. Every request
// waits on the host limiter first.
type Client struct {
	hc      *http.Client
	limiter *HostLimiter
}

func NewClient(timeout time.Duration, limiter *HostLimiter) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

func (c *Client) get(ctx context.Context, u, accept string) (*http.Response, error) {
	if err := c.limiter.WaitURL(ctx, u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 400 {
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode == http.StatusServiceUnavailable {
			c.limiter.Hold(u, retryAfter(res.Header.Get("Retry-After")))
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
		res.Body.Close()
		return nil, &StatusError{URL: u, Code: res.StatusCode}
	}
	return res, nil
}

// retryAfter reads a Retry-After header in seconds or as an HTTP date,
// capped at five minutes.
func retryAfter(v string) time.Duration {
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = time.Until(t)
	}
	return min(d, 5*time.Minute)
}

func (c *Client) GetJSON(ctx context.Context, u string, v any) error {
	res, err := c.get(ctx, u, "application/json")
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if err := json.NewDecoder(io.LimitReader(res.Body, 32<<20)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}

func (c *Client) GetHTML(ctx context.Context, u string) (*goquery.Document, error) {
	res, err := c.get(ctx, u, "text/html")
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(res.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", u, err)
	}
	return doc, nil
}
