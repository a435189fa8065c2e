package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
)

func defaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(config.Default().Rules)
	require.NoError(t, err)
	return c
}

func TestClassifyScenarios(t *testing.T) {
	c := defaultClassifier(t)

	tests := []struct {
		title, location string
		want            domain.Verdict
	}{
		{"Senior Marketing Manager", "New York, NY, United States", domain.VerdictAccepted},
		{"Growth Marketing Lead", "Austin, TX", domain.VerdictRejectedLocation},
		{"Marketing Coordinator", "New York, NY", domain.VerdictRejectedTitle},
		{"Marketing Coordinator", "Austin, TX", domain.VerdictRejectedTitle},
		{"Marketing Manager", "Remote — United States", domain.VerdictAccepted},
	}
	for _, tt := range tests {
		got := c.Classify(domain.Candidate{Title: tt.title, LocationEvidence: tt.location})
		assert.Equal(t, tt.want, got, "%q @ %q", tt.title, tt.location)
	}
}

func TestMatchTitle(t *testing.T) {
	c := defaultClassifier(t)

	match := []string{
		"Director of Marketing",
		"SENIOR MARKETING MANAGER",
		"Product Marketing Lead, Payments",
		"Sr. Marketing Analyst",
		"Principal, Brand Marketing",
		"Lifecycle Marketing Manager (Contract)",
	}
	for _, title := range match {
		assert.True(t, c.MatchTitle(title), title)
	}

	miss := []string{
		"",
		"Marketing Coordinator",
		"Growth Marketing Specialist",
		"Senior Software Engineer",
		"Src Marketing Associate",
	}
	for _, title := range miss {
		assert.False(t, c.MatchTitle(title), title)
	}
}

func TestMatchLocation(t *testing.T) {
	c := defaultClassifier(t)

	match := []string{
		"New York, NY",
		"new york, new york, united states",
		"Hybrid | New York, NY",
		"Remote (US)",
		"Remote - USA",
		"Remote | New York",
		"remote, north america",
	}
	for _, loc := range match {
		assert.True(t, c.MatchLocation(loc), loc)
	}

	miss := []string{
		"",
		"Remote",
		"United States",
		"Remote - Australia",
		"Remote - Canada",
		"Austin, TX",
		"New York",
	}
	for _, loc := range miss {
		assert.False(t, c.MatchLocation(loc), loc)
	}
}

func TestTitleMissSkipsLocation(t *testing.T) {
	c := defaultClassifier(t)
	got := c.Classify(domain.Candidate{Title: "Office Manager", LocationEvidence: "Berlin"})
	assert.Equal(t, domain.VerdictRejectedTitle, got)
}

func TestEmptyRulesMatchNothing(t *testing.T) {
	c, err := New(config.Rules{})
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictRejectedTitle, c.Classify(domain.Candidate{
		Title: "Marketing Manager", LocationEvidence: "New York, NY",
	}))
}

func TestCustomRules(t *testing.T) {
	c := MustNew(config.Rules{
		Title: config.TitleRules{
			BaseRoles:     []string{"data engineer"},
			BaseSeniority: []string{"staff"},
		},
		Location: config.LocationRules{
			CityPhrases:   []string{"berlin"},
			RemoteWords:   []string{"remote", "anywhere"},
			RemoteRegions: []string{"eu", "europe"},
		},
	})

	assert.Equal(t, domain.VerdictAccepted, c.Classify(domain.Candidate{Title: "Staff Data Engineer", LocationEvidence: "Berlin, Germany"}))
	assert.Equal(t, domain.VerdictAccepted, c.Classify(domain.Candidate{Title: "Staff Data Engineer", LocationEvidence: "Anywhere in Europe"}))
	assert.Equal(t, domain.VerdictRejectedLocation, c.Classify(domain.Candidate{Title: "Staff Data Engineer", LocationEvidence: "Remote, Brazil"}))
	assert.Equal(t, domain.VerdictRejectedTitle, c.Classify(domain.Candidate{Title: "Data Engineer", LocationEvidence: "Berlin"}))
}
