// Package reconcile runs one classification and dedup pass over a run's
// source batches against the prior persisted state.
package reconcile

import (
	"fmt"
	"time"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/normalize"
)

type Classifier interface {
	Classify(domain.Candidate) domain.Verdict
}

// Reconcile partitions every candidate into net-new, already seen, newly
// excluded or already excluded, and returns the summary with the next
// state. Every decision reads prior as it was when the run began; prior is
// not modified.
//
// Classification is sticky: an identity in either prior set never surfaces
// again, whatever the classifier now says about it.
func Reconcile(batches []domain.SourceBatch, prior domain.PersistedState, c Classifier, now time.Time) (domain.RunSummary, domain.PersistedState) {
	prior = prior.Normalized()

	summary := domain.RunSummary{
		FinishedAt: now,
		NetNew:     []domain.Candidate{},
		Exclusions: []domain.Exclusion{},
		Notes:      make([]domain.DiscoveryNote, 0, len(batches)),
	}
	stagedSeen := domain.IdentitySet{}
	stagedExcluded := domain.IdentitySet{}

	for _, b := range batches {
		note := domain.DiscoveryNote{Source: b.Source, Records: len(b.Records)}

		for _, rec := range b.Records {
			cand, ok := normalize.Candidate(b.Source, rec)
			if !ok {
				note.Skipped++
				continue
			}
			note.Candidates++

			// first occurrence in a run wins
			if stagedSeen.Has(cand.Identity) || stagedExcluded.Has(cand.Identity) {
				continue
			}

			v := c.Classify(cand)
			switch {
			case !v.Accepted():
				if prior.Known(cand.Identity) {
					continue
				}
				stagedExcluded.Add(cand.Identity)
				// off-profile postings are remembered but not audited
				if v == domain.VerdictRejectedTitle {
					summary.OffProfile++
					continue
				}
				summary.Exclusions = append(summary.Exclusions, domain.Exclusion{
					Company:  cand.Company,
					Title:    cand.Title,
					Location: cand.Location,
					Link:     cand.Identity,
					Reason:   v.Reason(),
				})
			default:
				if prior.Known(cand.Identity) {
					continue
				}
				stagedSeen.Add(cand.Identity)
				summary.NetNew = append(summary.NetNew, cand)
			}
		}

		summary.Skipped += note.Skipped
		if b.Err != nil {
			note.Error = b.Err.Error()
		}
		note.Text = noteText(note)
		summary.Notes = append(summary.Notes, note)
	}

	next := domain.PersistedState{
		SeenIdentities:     prior.SeenIdentities.Clone(),
		ExcludedIdentities: prior.ExcludedIdentities.Clone(),
		LastRunTimestamp:   now,
	}
	for id := range stagedSeen {
		next.SeenIdentities.Add(id)
	}
	for id := range stagedExcluded {
		next.ExcludedIdentities.Add(id)
	}
	return summary, next
}

func noteText(n domain.DiscoveryNote) string {
	if n.Error != "" {
		if n.Records > 0 {
			return fmt.Sprintf("%s: partial result (%d records) after error: %s", n.Source, n.Records, n.Error)
		}
		return fmt.Sprintf("%s: failed: %s", n.Source, n.Error)
	}
	if n.Skipped > 0 {
		return fmt.Sprintf("%s: %d records, %d candidates, %d skipped without a link", n.Source, n.Records, n.Candidates, n.Skipped)
	}
	return fmt.Sprintf("%s: %d records, %d candidates", n.Source, n.Records, n.Candidates)
}
