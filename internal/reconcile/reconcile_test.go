package reconcile

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch-engine/internal/classify"
	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
)

type classifierFunc func(domain.Candidate) domain.Verdict

func (f classifierFunc) Classify(c domain.Candidate) domain.Verdict { return f(c) }

func always(v domain.Verdict) Classifier {
	return classifierFunc(func(domain.Candidate) domain.Verdict { return v })
}

var (
	t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(6 * time.Hour)
)

func scenarioBatch() domain.SourceBatch {
	return domain.SourceBatch{
		Source: "board",
		Records: []domain.RawRecord{
			{"url": "https://jobs.example/1", "title": "Senior Marketing Manager", "company": "Acme", "location": "New York, NY, United States"},
			{"url": "https://jobs.example/2", "title": "Growth Marketing Lead", "company": "Beta", "location": "Austin, TX"},
			{"url": "https://jobs.example/3", "title": "Marketing Coordinator", "company": "Gamma", "location": "New York, NY"},
			{"url": "https://jobs.example/4", "title": "Marketing Manager", "company": "Delta", "location": "Remote — United States"},
		},
	}
}

func links(cs []domain.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Identity)
	}
	return out
}

func TestReconcileScenarios(t *testing.T) {
	cls := classify.MustNew(config.Default().Rules)

	sum, next := Reconcile([]domain.SourceBatch{scenarioBatch()}, domain.EmptyState(), cls, t0)

	assert.Equal(t, []string{"https://jobs.example/1", "https://jobs.example/4"}, links(sum.NetNew))
	require.Len(t, sum.Exclusions, 1)
	assert.Equal(t, domain.Exclusion{
		Company:  "Beta",
		Title:    "Growth Marketing Lead",
		Location: "Austin, TX",
		Link:     "https://jobs.example/2",
		Reason:   domain.VerdictRejectedLocation.Reason(),
	}, sum.Exclusions[0])

	assert.Equal(t, []string{"https://jobs.example/1", "https://jobs.example/4"}, next.SeenIdentities.Sorted())
	assert.Equal(t, []string{"https://jobs.example/2", "https://jobs.example/3"}, next.ExcludedIdentities.Sorted())
	assert.Equal(t, 1, sum.OffProfile)
	assert.Equal(t, t0, next.LastRunTimestamp)
	assert.Equal(t, t0, sum.FinishedAt)

	require.Len(t, sum.Notes, 1)
	assert.Equal(t, domain.DiscoveryNote{
		Source: "board", Records: 4, Candidates: 4,
		Text: "board: 4 records, 4 candidates",
	}, sum.Notes[0])
}

func TestReconcileSecondRunIsQuiet(t *testing.T) {
	cls := classify.MustNew(config.Default().Rules)
	batches := []domain.SourceBatch{scenarioBatch()}

	_, first := Reconcile(batches, domain.EmptyState(), cls, t0)
	sum, second := Reconcile(batches, first, cls, t1)

	assert.Empty(t, sum.NetNew)
	assert.Empty(t, sum.Exclusions)
	assert.Equal(t, first.SeenIdentities, second.SeenIdentities)
	assert.Zero(t, sum.OffProfile)
	assert.Equal(t, first.ExcludedIdentities, second.ExcludedIdentities)
	assert.Equal(t, t1, second.LastRunTimestamp)
}

func TestReconcileEmptyRun(t *testing.T) {
	prior := domain.PersistedState{
		SeenIdentities:     domain.NewIdentitySet("a"),
		ExcludedIdentities: domain.NewIdentitySet("b"),
		LastRunTimestamp:   t0,
	}

	sum, next := Reconcile(nil, prior, always(domain.VerdictAccepted), t1)

	assert.NotNil(t, sum.NetNew)
	assert.NotNil(t, sum.Exclusions)
	assert.Empty(t, sum.NetNew)
	assert.Empty(t, sum.Exclusions)
	assert.Empty(t, sum.Notes)
	assert.Equal(t, prior.SeenIdentities, next.SeenIdentities)
	assert.Equal(t, prior.ExcludedIdentities, next.ExcludedIdentities)
	assert.Equal(t, t1, next.LastRunTimestamp)
}

func TestReconcileStickySuppression(t *testing.T) {
	prior := domain.PersistedState{
		SeenIdentities:     domain.NewIdentitySet("https://jobs.example/seen"),
		ExcludedIdentities: domain.NewIdentitySet("https://jobs.example/excluded"),
	}
	batch := domain.SourceBatch{Source: "board", Records: []domain.RawRecord{
		{"url": "https://jobs.example/seen#again"},
		{"url": "https://jobs.example/excluded"},
	}}

	// a rule change that now accepts everything does not resurface exclusions
	sum, next := Reconcile([]domain.SourceBatch{batch}, prior, always(domain.VerdictAccepted), t0)
	assert.Empty(t, sum.NetNew)
	assert.Equal(t, prior.ExcludedIdentities, next.ExcludedIdentities)

	// nor does a rule change that now rejects everything audit old postings
	sum, next = Reconcile([]domain.SourceBatch{batch}, prior, always(domain.VerdictRejectedLocation), t0)
	assert.Empty(t, sum.Exclusions)
	assert.True(t, next.SeenIdentities.Has("https://jobs.example/seen"))
	assert.False(t, next.ExcludedIdentities.Has("https://jobs.example/seen"))
}

func TestReconcileFirstOccurrenceWins(t *testing.T) {
	verdicts := map[string]domain.Verdict{
		"a": domain.VerdictAccepted,
		"b": domain.VerdictRejectedLocation,
	}
	// the same posting classified differently by each source's record
	cls := classifierFunc(func(c domain.Candidate) domain.Verdict { return verdicts[c.Company] })

	batches := []domain.SourceBatch{
		{Source: "greenhouse", Records: []domain.RawRecord{{"url": "https://jobs.example/1#x", "company": "a"}}},
		{Source: "email", Records: []domain.RawRecord{{"url": "https://jobs.example/1", "company": "b"}}},
	}

	sum, next := Reconcile(batches, domain.EmptyState(), cls, t0)

	require.Len(t, sum.NetNew, 1)
	assert.Equal(t, "greenhouse", sum.NetNew[0].Source)
	assert.Empty(t, sum.Exclusions)
	assert.True(t, next.SeenIdentities.Has("https://jobs.example/1"))
	assert.False(t, next.ExcludedIdentities.Has("https://jobs.example/1"))
}

func TestReconcileDoesNotMutatePrior(t *testing.T) {
	prior := domain.PersistedState{
		SeenIdentities:     domain.NewIdentitySet("s"),
		ExcludedIdentities: domain.NewIdentitySet("x"),
		LastRunTimestamp:   t0,
	}
	batch := domain.SourceBatch{Source: "board", Records: []domain.RawRecord{
		{"url": "new-1"}, {"url": "new-2"},
	}}

	_, next := Reconcile([]domain.SourceBatch{batch}, prior, always(domain.VerdictAccepted), t1)

	assert.Equal(t, []string{"s"}, prior.SeenIdentities.Sorted())
	assert.Equal(t, []string{"x"}, prior.ExcludedIdentities.Sorted())
	assert.Equal(t, t0, prior.LastRunTimestamp)
	assert.Equal(t, []string{"new-1", "new-2", "s"}, next.SeenIdentities.Sorted())
}

func TestReconcileFailedSourceBecomesNote(t *testing.T) {
	batches := []domain.SourceBatch{
		{Source: "lever", Err: errors.New("dial tcp: timeout")},
		{Source: "greenhouse", Err: errors.New("2 of 3 companies failed"), Records: []domain.RawRecord{{"url": "gh-1"}}},
		{Source: "board", Records: []domain.RawRecord{{"url": "b-1"}, {"title": "no link"}}},
	}

	sum, next := Reconcile(batches, domain.EmptyState(), always(domain.VerdictAccepted), t0)

	assert.Equal(t, []string{"gh-1", "b-1"}, links(sum.NetNew))
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 2, next.Size())

	require.Len(t, sum.Notes, 3)
	assert.Equal(t, "lever: failed: dial tcp: timeout", sum.Notes[0].Text)
	assert.Equal(t, "greenhouse: partial result (1 records) after error: 2 of 3 companies failed", sum.Notes[1].Text)
	assert.Equal(t, "board: 2 records, 1 candidates, 1 skipped without a link", sum.Notes[2].Text)
}

func TestReconcileSetsStayDisjointAndGrow(t *testing.T) {
	// every third identity is rejected on location and every seventh on
	// title; both kinds end up excluded, only the former is audited
	cls := classifierFunc(func(c domain.Candidate) domain.Verdict {
		var n int
		fmt.Sscanf(c.Identity, "id-%d", &n)
		switch {
		case n%7 == 0:
			return domain.VerdictRejectedTitle
		case n%3 == 0:
			return domain.VerdictRejectedLocation
		}
		return domain.VerdictAccepted
	})

	st := domain.EmptyState()
	now := t0
	for run := 0; run < 5; run++ {
		var recs []domain.RawRecord
		for i := run * 4; i < run*4+10; i++ {
			recs = append(recs, domain.RawRecord{"url": fmt.Sprintf("id-%d", i)})
		}
		now = now.Add(time.Hour)

		sum, next := Reconcile([]domain.SourceBatch{{Source: "s", Records: recs}}, st, cls, now)

		for id := range next.SeenIdentities {
			assert.False(t, next.ExcludedIdentities.Has(id), "run %d: %s in both sets", run, id)
		}
		for id := range st.SeenIdentities {
			assert.True(t, next.SeenIdentities.Has(id), "run %d: lost seen %s", run, id)
		}
		for id := range st.ExcludedIdentities {
			assert.True(t, next.ExcludedIdentities.Has(id), "run %d: lost excluded %s", run, id)
		}
		assert.Equal(t, st.Size()+len(sum.NetNew)+len(sum.Exclusions)+sum.OffProfile, next.Size())
		for _, c := range sum.NetNew {
			assert.False(t, st.Known(c.Identity))
		}
		for _, e := range sum.Exclusions {
			var n int
			fmt.Sscanf(e.Link, "id-%d", &n)
			assert.NotZero(t, n%7, "title rejection %s was audited", e.Link)
		}
		for id := range next.SeenIdentities {
			var n int
			fmt.Sscanf(id, "id-%d", &n)
			assert.NotZero(t, n%7, "title rejection %s was accepted", id)
		}
		st = next
	}
}

func TestReconcileTitleRejectionIsSticky(t *testing.T) {
	rec := domain.RawRecord{"url": "https://jobs.example/3", "title": "Marketing Coordinator", "location": "New York, NY"}
	batches := []domain.SourceBatch{{Source: "board", Records: []domain.RawRecord{rec}}}

	rules := config.Default().Rules
	sum, first := Reconcile(batches, domain.EmptyState(), classify.MustNew(rules), t0)
	assert.Empty(t, sum.NetNew)
	assert.Empty(t, sum.Exclusions, "title rejections are not audited")
	assert.Equal(t, 1, sum.OffProfile)
	assert.True(t, first.ExcludedIdentities.Has("https://jobs.example/3"))

	// widening the rules later does not resurface the posting
	rules.Title.ExactRoles = append(rules.Title.ExactRoles, "marketing coordinator")
	sum, second := Reconcile(batches, first, classify.MustNew(rules), t1)
	assert.Empty(t, sum.NetNew)
	assert.Empty(t, sum.Exclusions)
	assert.Equal(t, first.ExcludedIdentities, second.ExcludedIdentities)
	assert.False(t, second.SeenIdentities.Has("https://jobs.example/3"))
}

func TestReconcileFirstOccurrenceTitleRejected(t *testing.T) {
	cls := classify.MustNew(config.Default().Rules)
	batch := domain.SourceBatch{Source: "board", Records: []domain.RawRecord{
		{"url": "https://jobs.example/9#a", "title": "Marketing Coordinator", "location": "New York, NY"},
		{"url": "https://jobs.example/9#b", "title": "Senior Marketing Manager", "location": "New York, NY"},
	}}

	sum, next := Reconcile([]domain.SourceBatch{batch}, domain.EmptyState(), cls, t0)

	assert.Empty(t, sum.NetNew)
	assert.Empty(t, sum.Exclusions)
	assert.Equal(t, 1, sum.OffProfile)
	assert.Equal(t, []string{"https://jobs.example/9"}, next.ExcludedIdentities.Sorted())
	assert.Empty(t, next.SeenIdentities)
}
