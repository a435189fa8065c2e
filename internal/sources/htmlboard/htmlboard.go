// Package htmlboard scrapes a careers page that has no API, using CSS
// selectors from config.
package htmlboard

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/normalize"
	"jobwatch-engine/internal/sources"
)

type Scraper struct {
	board  config.HTMLBoard
	client *sources.Client
}

func New(board config.HTMLBoard, client *sources.Client) *Scraper {
	if board.ItemSelector == "" {
		board.ItemSelector = "a[href]"
	}
	return &Scraper{board: board, client: client}
}

func (s *Scraper) Name() string {
	name := strings.TrimSpace(s.board.Name)
	if name == "" {
		if u, err := url.Parse(s.board.URL); err == nil {
			name = u.Host
		}
	}
	return "html:" + name
}

func (s *Scraper) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	base, err := url.Parse(s.board.URL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("bad board url %q", s.board.URL)
	}

	doc, err := s.client.GetHTML(ctx, s.board.URL)
	if err != nil {
		return nil, err
	}
	return Extract(doc, base, s.board), nil
}

// Extract turns each item matched by the board's selectors into a record.
// Items without a link are kept; the normalizer counts them as skipped.
func Extract(doc *goquery.Document, base *url.URL, b config.HTMLBoard) []domain.RawRecord {
	var out []domain.RawRecord

	doc.Find(b.ItemSelector).Each(func(_ int, item *goquery.Selection) {
		title := normalize.CleanText(pick(item, b.TitleSelector).Text())
		if title == "" {
			return
		}

		rec := domain.RawRecord{
			"title":   title,
			"company": b.Company,
		}

		link := pick(item, b.LinkSelector)
		if !link.Is("a") {
			link = link.Find("a[href]").First()
		}
		if href, ok := link.Attr("href"); ok {
			if abs := resolve(base, href); abs != "" {
				rec["url"] = abs
			}
		}

		if b.LocationSelector != "" {
			if loc := normalize.CleanText(item.Find(b.LocationSelector).First().Text()); loc != "" {
				rec["location"] = loc
			}
		}
		out = append(out, rec)
	})
	return out
}

// pick returns the first match of sel inside item, or item itself when sel
// is empty.
func pick(item *goquery.Selection, sel string) *goquery.Selection {
	if strings.TrimSpace(sel) == "" {
		return item
	}
	return item.Find(sel).First()
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") || strings.HasPrefix(strings.ToLower(href), "mailto:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
