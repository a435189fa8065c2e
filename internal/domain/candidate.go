package domain

// RawRecord is one posting as a source adapter saw it. Keys are adapter
// specific; the normalizer knows the common aliases.
type RawRecord map[string]any

// SourceBatch is everything one source produced for a run. Err marks a
// failed source; its Records may still hold a partial result.
type SourceBatch struct {
	Source  string
	Records []RawRecord
	Err     error
}

type Candidate struct {
	Identity string `json:"link"`
	Source   string `json:"source"`
	Company  string `json:"company"`
	Title    string `json:"title"`
	Location string `json:"location"`

	// LocationEvidence joins every location-bearing field of the record.
	// Only the classifier reads it.
	LocationEvidence string `json:"-"`

	Salary string `json:"salary,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

type Verdict string

const (
	VerdictAccepted         Verdict = "accepted"
	VerdictRejectedTitle    Verdict = "rejected_title"
	VerdictRejectedLocation Verdict = "rejected_location"
)

func (v Verdict) Accepted() bool { return v == VerdictAccepted }

// Reason is the audit text for a rejected verdict.
func (v Verdict) Reason() string {
	switch v {
	case VerdictRejectedTitle:
		return "title does not match role profile"
	case VerdictRejectedLocation:
		return "location not in target city or remote-eligible region"
	default:
		return ""
	}
}
