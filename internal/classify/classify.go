// Package classify decides whether a candidate fits the role profile.
//
// Title rules run first. A title miss is final and location is never looked
// at, so every location rejection is for a posting whose role was relevant.
package classify

import (
	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
)

type Classifier struct {
	exact           *phraseSet
	domainPhrases   *phraseSet
	domainSeniority *phraseSet
	baseRoles       *phraseSet
	baseSeniority   *phraseSet

	cityPhrases   *phraseSet
	remoteWords   *phraseSet
	remoteCity    *phraseSet
	remoteRegions *phraseSet
}

// New compiles the rule table. It fails only on a table that cannot be
// compiled; emptiness is config.Validate's business.
func New(r config.Rules) (*Classifier, error) {
	c := &Classifier{}
	for _, p := range []struct {
		dst   **phraseSet
		terms []string
	}{
		{&c.exact, r.Title.ExactRoles},
		{&c.domainPhrases, r.Title.DomainPhrases},
		{&c.domainSeniority, r.Title.DomainSeniority},
		{&c.baseRoles, r.Title.BaseRoles},
		{&c.baseSeniority, r.Title.BaseSeniority},
		{&c.cityPhrases, r.Location.CityPhrases},
		{&c.remoteWords, r.Location.RemoteWords},
		{&c.remoteCity, r.Location.RemoteCity},
		{&c.remoteRegions, r.Location.RemoteRegions},
	} {
		set, err := compile(p.terms)
		if err != nil {
			return nil, err
		}
		*p.dst = set
	}
	return c, nil
}

// MustNew is New for rule tables known to be valid, such as test fixtures.
func MustNew(r config.Rules) *Classifier {
	c, err := New(r)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Classifier) Classify(cand domain.Candidate) domain.Verdict {
	if !c.MatchTitle(cand.Title) {
		return domain.VerdictRejectedTitle
	}
	if !c.MatchLocation(cand.LocationEvidence) {
		return domain.VerdictRejectedLocation
	}
	return domain.VerdictAccepted
}

func (c *Classifier) MatchTitle(title string) bool {
	t := fold(title)
	if t == "" {
		return false
	}
	switch {
	case c.exact.match(t):
		return true
	case c.domainPhrases.match(t) && c.domainSeniority.match(t):
		return true
	case c.baseRoles.match(t) && c.baseSeniority.match(t):
		return true
	}
	return false
}

func (c *Classifier) MatchLocation(evidence string) bool {
	e := fold(evidence)
	if e == "" {
		return false
	}
	if c.cityPhrases.match(e) {
		return true
	}
	return c.remoteWords.match(e) && (c.remoteCity.match(e) || c.remoteRegions.match(e))
}
