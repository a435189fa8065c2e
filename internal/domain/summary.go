package domain

import "time"

// Exclusion is one audit entry: a posting that matched the role profile but
// was rejected, with the reason.
type Exclusion struct {
	Company  string `json:"company"`
	Title    string `json:"title"`
	Location string `json:"location"`
	Link     string `json:"link"`
	Reason   string `json:"reason"`
}

// DiscoveryNote records what one source returned, independent of how its
// candidates were classified.
type DiscoveryNote struct {
	Source     string `json:"source"`
	Records    int    `json:"records"`
	Candidates int    `json:"candidates"`
	Skipped    int    `json:"skipped"`
	Error      string `json:"error,omitempty"`
	Text       string `json:"text"`
}

// RunSummary is the output of one reconciliation. It is reported, never fed
// back into the next run.
type RunSummary struct {
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	NetNew     []Candidate     `json:"netNew"`
	Exclusions []Exclusion     `json:"exclusions"`
	Notes      []DiscoveryNote `json:"notes"`
	Skipped    int             `json:"skipped"`

	// OffProfile counts identities newly excluded on title. They join the
	// excluded set without an audit entry.
	OffProfile int `json:"offProfile"`
}
