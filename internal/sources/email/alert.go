package email

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/normalize"
)

var reLink = regexp.MustCompile(`https?://[^\s<>"']+`)

// alertJob merges every anchor in one alert that points at the same posting;
// the logo anchor usually comes first and carries no title.
type alertJob struct {
	link     string
	title    string
	company  string
	location string
	salary   string
}

// ParseAlertHTML extracts postings from a job-alert mail body. A card is the
// table (or row, or parent) around a posting anchor; its "Company · Location"
// line and any pay range are attached to the posting.
func ParseAlertHTML(body string) ([]domain.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	byLink := map[string]*alertJob{}
	var order []string

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		link := unwrapRedirect(strings.TrimSpace(href))
		if link == "" || !looksLikePosting(link) {
			return
		}

		j, ok := byLink[link]
		if !ok {
			j = &alertJob{link: link}
			byLink[link] = j
			order = append(order, link)
		}

		if t := cleanTitle(a.Text()); betterTitle(t, j.title) {
			j.title = t
		}

		card := a.Closest("table")
		if card.Length() == 0 {
			card = a.Closest("tr")
		}
		if card.Length() == 0 {
			card = a.Parent()
		}

		card.Find("p, span").Each(func(_ int, p *goquery.Selection) {
			if j.company != "" {
				return
			}
			t := normalize.CleanText(p.Text())
			if company, loc, ok := strings.Cut(t, " · "); ok && len(t) < 200 {
				j.company = strings.TrimSpace(company)
				j.location = strings.TrimSpace(loc)
			}
		})

		if j.salary == "" {
			if s, ok := normalize.Salary(normalize.CleanText(card.Text())); ok {
				j.salary = s
			}
		}
	})

	out := make([]domain.RawRecord, 0, len(order))
	for _, link := range order {
		j := byLink[link]
		if j.title == "" {
			continue
		}
		rec := domain.RawRecord{
			"url":     j.link,
			"title":   j.title,
			"company": j.company,
		}
		if j.location != "" {
			rec["location"] = j.location
		}
		if j.salary != "" {
			rec["salary"] = j.salary
		}
		out = append(out, rec)
	}
	return out, nil
}

// ParseAlertText is the fallback for plain-text alerts: every posting-like
// URL becomes a record titled by the nearest non-empty line above it.
func ParseAlertText(body string) []domain.RawRecord {
	var out []domain.RawRecord
	seen := map[string]bool{}
	var prev string

	for _, line := range strings.Split(body, "\n") {
		line = normalize.CleanText(line)
		if line == "" {
			continue
		}
		m := reLink.FindString(line)
		if m == "" {
			prev = line
			continue
		}
		link := unwrapRedirect(strings.TrimRight(m, ".,);:]\"'"))
		if link == "" || !looksLikePosting(link) || seen[link] {
			continue
		}
		seen[link] = true

		title := strings.TrimSpace(strings.Replace(line, m, "", 1))
		if title == "" {
			title = prev
		}
		out = append(out, domain.RawRecord{"url": link, "title": cleanTitle(title)})
		prev = ""
	}
	return out
}

func looksLikePosting(link string) bool {
	l := strings.ToLower(link)
	for _, bad := range []string{"unsubscribe", "/alerts", "preferences", "settings", "/help", "privacy"} {
		if strings.Contains(l, bad) {
			return false
		}
	}
	for _, good := range []string{"/jobs/", "/job/", "/careers/", "/postings/", "greenhouse.io", "lever.co", "smartrecruiters.com", "myworkdayjobs.com"} {
		if strings.Contains(l, good) {
			return true
		}
	}
	return false
}

// unwrapRedirect follows url= wrappers and Google /url?q= redirects.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return ""
	}
	if raw := u.Query().Get("url"); raw != "" {
		if uu, err := url.Parse(raw); err == nil && uu.Host != "" {
			return uu.String()
		}
	}
	if strings.Contains(strings.ToLower(u.Host), "google.") && strings.HasPrefix(u.Path, "/url") {
		if q := u.Query().Get("q"); q != "" {
			if uu, err := url.Parse(q); err == nil && uu.Host != "" {
				return uu.String()
			}
		}
	}
	return u.String()
}

func cleanTitle(s string) string {
	s = normalize.CleanText(s)
	for _, junk := range []string{"Actively recruiting", "Easy Apply", "Promoted", "View job", "Apply now"} {
		s = strings.ReplaceAll(s, junk, "")
	}
	s = normalize.CleanText(s)
	low := strings.ToLower(s)
	if strings.Contains(low, "alumni") || strings.Contains(low, "connections") || strings.Contains(low, "applicants") {
		return ""
	}
	return s
}

// betterTitle prefers a real title over an empty or overlong one.
func betterTitle(candidate, current string) bool {
	if candidate == "" || len(candidate) > 150 {
		return false
	}
	return current == "" || len(candidate) < len(current) && strings.Contains(current, candidate)
}
