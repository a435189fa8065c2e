package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a copy with trimmed, case-insensitively
// deduplicated term lists, plus everything worth telling the user about.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	t := &out.Rules.Title
	t.ExactRoles = trimList(t.ExactRoles)
	t.DomainPhrases = trimList(t.DomainPhrases)
	t.DomainSeniority = trimList(t.DomainSeniority)
	t.BaseRoles = trimList(t.BaseRoles)
	t.BaseSeniority = trimList(t.BaseSeniority)

	l := &out.Rules.Location
	l.CityPhrases = trimList(l.CityPhrases)
	l.RemoteWords = trimList(l.RemoteWords)
	l.RemoteCity = trimList(l.RemoteCity)
	l.RemoteRegions = trimList(l.RemoteRegions)

	out.Email.SearchSubjectAny = trimList(out.Email.SearchSubjectAny)

	if err := Validate(out); err != nil {
		res.addErr("%v", err)
	}

	// at least one source enabled
	if !out.Email.Enabled && !out.Sources.Greenhouse.Enabled && !out.Sources.Lever.Enabled &&
		!out.Sources.SmartRecruiters.Enabled && !out.Sources.Workday.Enabled && len(out.Sources.HTMLBoards) == 0 {
		res.addWarn("no sources enabled; every run will be empty")
	}

	for name, src := range map[string]ATSSource{
		"greenhouse":      out.Sources.Greenhouse,
		"lever":           out.Sources.Lever,
		"smartrecruiters": out.Sources.SmartRecruiters,
		"workday":         out.Sources.Workday,
	} {
		if src.Enabled && len(src.Companies) == 0 {
			res.addWarn("sources.%s is enabled but has no companies", name)
		}
		for i, c := range src.Companies {
			if strings.TrimSpace(c.Slug) == "" {
				res.addErr("sources.%s.companies[%d].slug is required", name, i)
			}
		}
	}

	if len(l.RemoteWords) > 0 && len(l.RemoteCity)+len(l.RemoteRegions) == 0 {
		res.addWarn("remote_words is set but remote_city and remote_regions are empty; remote postings will never match")
	}

	// email required fields if enabled (password not required here; it's in keychain)
	if out.Email.Enabled {
		if strings.TrimSpace(out.Email.IMAPHost) == "" {
			res.addErr("email.imap_host is required when email.enabled=true")
		}
		if strings.TrimSpace(out.Email.Username) == "" {
			res.addErr("email.username is required when email.enabled=true")
		}
		if len(out.Email.SearchSubjectAny) == 0 {
			res.addWarn("email.search_subject_any is empty; every unseen message will be scanned")
		}
	}

	// a term that is both a domain phrase and an exact role makes the seniority check dead
	exact := map[string]bool{}
	for _, e := range t.ExactRoles {
		exact[strings.ToLower(e)] = true
	}
	for _, d := range t.DomainPhrases {
		if exact[strings.ToLower(d)] {
			res.addWarn("term appears in both exact_roles and domain_phrases: %q", d)
		}
	}

	return out, res
}
