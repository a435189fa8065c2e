// Package normalize turns raw source records into canonical candidates.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jobwatch-engine/internal/domain"
)

var (
	linkKeys     = []string{"url", "link", "absolute_url", "hostedUrl", "applyUrl", "href"}
	titleKeys    = []string{"title", "text", "name", "position"}
	companyKeys  = []string{"company", "companyName", "company_name"}
	locationKeys = []string{
		"location", "locations", "location_raw", "location.name",
		"categories.location", "allLocations", "categories.allLocations",
		"offices", "workplace", "workplaceType",
	}
	dateKeys = []string{"posted_at", "date", "updated_at", "createdAt"}
)

// Candidate builds a candidate from rec. ok is false when the record has no
// usable link; the caller counts and skips it. Optional fields that cannot
// be read come back empty.
func Candidate(source string, rec domain.RawRecord) (c domain.Candidate, ok bool) {
	id := Identity(firstString(rec, linkKeys))
	if id == "" {
		return domain.Candidate{}, false
	}

	locs := locationStrings(rec)

	c = domain.Candidate{
		Identity:         id,
		Source:           source,
		Company:          CleanText(firstString(rec, companyKeys)),
		Title:            CleanText(firstString(rec, titleKeys)),
		LocationEvidence: strings.Join(locs, " | "),
		Notes:            postedNote(rec),
	}
	if len(locs) > 0 {
		c.Location = NormalizeLocation(locs[0])
	}
	c.Salary = recordSalary(rec)
	return c, true
}

func lookup(rec domain.RawRecord, key string) (any, bool) {
	if v, ok := rec[key]; ok {
		return v, true
	}
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return nil, false
	}
	var cur any = map[string]any(rec)
	for _, p := range parts {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case domain.RawRecord:
		return m, true
	}
	return nil, false
}

func firstString(rec domain.RawRecord, keys []string) string {
	for _, k := range keys {
		v, ok := lookup(rec, k)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// flatten pulls every string out of v: plain strings, string slices, and
// maps carrying a name (Greenhouse offices, SmartRecruiters locations).
func flatten(v any) []string {
	switch x := v.(type) {
	case string:
		if s := CleanText(x); s != "" {
			return []string{s}
		}
	case []string:
		var out []string
		for _, s := range x {
			out = append(out, flatten(s)...)
		}
		return out
	case []any:
		var out []string
		for _, e := range x {
			out = append(out, flatten(e)...)
		}
		return out
	case map[string]any, domain.RawRecord:
		m, _ := asMap(x)
		for _, k := range []string{"name", "location", "text"} {
			if s, ok := m[k].(string); ok && CleanText(s) != "" {
				return []string{CleanText(s)}
			}
		}
		var parts []string
		for _, k := range []string{"city", "region", "country"} {
			if s, ok := m[k].(string); ok && CleanText(s) != "" {
				parts = append(parts, CleanText(s))
			}
		}
		if len(parts) > 0 {
			return []string{strings.Join(parts, ", ")}
		}
	}
	return nil
}

func locationStrings(rec domain.RawRecord) []string {
	seen := map[string]bool{}
	var out []string
	for _, k := range locationKeys {
		v, ok := lookup(rec, k)
		if !ok {
			continue
		}
		for _, s := range flatten(v) {
			key := strings.ToLower(s)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

func postedNote(rec domain.RawRecord) string {
	for _, k := range dateKeys {
		v, ok := lookup(rec, k)
		if !ok {
			continue
		}
		switch x := v.(type) {
		case time.Time:
			if !x.IsZero() {
				return "Posted " + x.UTC().Format("2006-01-02")
			}
		case *time.Time:
			if x != nil && !x.IsZero() {
				return "Posted " + x.UTC().Format("2006-01-02")
			}
		case float64:
			if x > 0 {
				return "Posted " + time.UnixMilli(int64(x)).UTC().Format("2006-01-02")
			}
		case int64:
			if x > 0 {
				return "Posted " + time.UnixMilli(x).UTC().Format("2006-01-02")
			}
		case string:
			if s := CleanText(x); s != "" {
				if t, err := time.Parse(time.RFC3339, s); err == nil {
					return "Posted " + t.UTC().Format("2006-01-02")
				}
				return "Posted " + s
			}
		}
	}
	return ""
}

var reSalary = regexp.MustCompile(`(?i)\$\s?\d[\d,]*(?:\.\d+)?\s?[km]?(?:\s*(?:-|–|—|to)\s*\$?\s?\d[\d,]*(?:\.\d+)?\s?[km]?)?(?:\s*(?:/|per)\s*(?:year|yr|annum|hour|hr))?`)

// Salary sniffs a compensation range out of free text. A miss is normal.
func Salary(text string) (string, bool) {
	m := reSalary.FindString(text)
	if m == "" {
		return "", false
	}
	// a bare "$5" is more likely a price than pay
	digits := 0
	for _, r := range m {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 3 && !strings.ContainsAny(strings.ToLower(m), "km") {
		return "", false
	}
	return CleanText(m), true
}

func recordSalary(rec domain.RawRecord) string {
	if v, ok := lookup(rec, "salary"); ok {
		switch x := v.(type) {
		case string:
			if s := CleanText(x); s != "" {
				return s
			}
		case map[string]any:
			if s := salaryRange(x); s != "" {
				return s
			}
		}
	}
	if v, ok := lookup(rec, "salaryRange"); ok {
		if m, ok := asMap(v); ok {
			if s := salaryRange(m); s != "" {
				return s
			}
		}
	}
	if s, ok := Salary(firstString(rec, []string{"description", "descriptionPlain", "content"})); ok {
		return s
	}
	return ""
}

// salaryRange formats Lever-style {min, max, currency, interval} objects.
func salaryRange(m map[string]any) string {
	lo, okLo := number(m["min"])
	hi, okHi := number(m["max"])
	if !okLo && !okHi {
		return ""
	}
	cur, _ := m["currency"].(string)
	if cur == "" {
		cur = "USD"
	}
	interval, _ := m["interval"].(string)

	var s string
	switch {
	case okLo && okHi:
		s = fmt.Sprintf("%s %s - %s", cur, groupDigits(lo), groupDigits(hi))
	case okLo:
		s = fmt.Sprintf("%s %s+", cur, groupDigits(lo))
	default:
		s = fmt.Sprintf("up to %s %s", cur, groupDigits(hi))
	}
	if interval != "" {
		s += " " + interval
	}
	return s
}

func number(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), x > 0
	case int:
		return int64(x), x > 0
	case int64:
		return x, x > 0
	case string:
		n, err := strconv.ParseInt(strings.ReplaceAll(x, ",", ""), 10, 64)
		return n, err == nil && n > 0
	}
	return 0, false
}

func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
