package match

import (
	"strings"

	"github.com/sells-group/catalog-etl/internal/model"
)

// DefaultThreshold is the acceptance threshold used when none is configured.
// It was lowered from 0.8 because stricter matching rejected too many true
// matches between catalogs with different title conventions.
const DefaultThreshold = 0.6

// Reason explains a verdict.
type Reason string

const (
	ReasonAccepted         Reason = "accepted"
	ReasonLowSimilarity    Reason = "low_similarity"
	ReasonNoCandidateFound Reason = "no_candidate_found"
	ReasonLookupError      Reason = "lookup_error"
	ReasonYearMismatch     Reason = "year_mismatch"
)

// Reasons lists every reason in reporting order.
var Reasons = []Reason{
	ReasonAccepted,
	ReasonLowSimilarity,
	ReasonNoCandidateFound,
	ReasonLookupError,
	ReasonYearMismatch,
}

// Policy holds the tunable acceptance rules for one resolution batch.
type Policy struct {
	// Threshold is the minimum similarity ratio, in [0,1].
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// YearTolerance is the largest accepted difference between release years
	// when both are known. Negative disables the check.
	YearTolerance int `json:"year_tolerance" yaml:"year_tolerance"`
}

// DefaultPolicy returns the default threshold with the year check disabled.
func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold, YearTolerance: -1}
}

// Verdict is the judgment for one source title against one candidate.
type Verdict struct {
	Accepted       bool    `json:"accepted"`
	Ratio          float64 `json:"similarity_ratio"`
	Reason         Reason  `json:"reason"`
	Threshold      float64 `json:"threshold"`
	SourceTitle    string  `json:"source_title"`
	CandidateTitle string  `json:"candidate_title,omitempty"`
}

// Decide judges a candidate against the source title. A nil candidate, one
// flagged as not found, or one without a title all count as nothing found.
func Decide(sourceTitle string, candidate *model.CandidateRecord, policy Policy) Verdict {
	v := Verdict{Threshold: policy.Threshold, SourceTitle: sourceTitle}
	if candidate == nil || !candidate.Found || strings.TrimSpace(candidate.ReturnedTitle) == "" {
		v.Reason = ReasonNoCandidateFound
		return v
	}

	v.CandidateTitle = candidate.ReturnedTitle
	v.Ratio = Score(sourceTitle, candidate.ReturnedTitle)
	if v.Ratio < policy.Threshold {
		v.Reason = ReasonLowSimilarity
		return v
	}
	v.Accepted = true
	v.Reason = ReasonAccepted
	return v
}

// DecideRecord is Decide plus the optional release-year check.
func DecideRecord(rec model.SourceRecord, candidate *model.CandidateRecord, policy Policy) Verdict {
	v := Decide(rec.Title, candidate, policy)
	if v.Accepted && yearsDisagree(rec.ReleaseYear, candidate.ReturnedYear, policy.YearTolerance) {
		v.Accepted = false
		v.Reason = ReasonYearMismatch
	}
	return v
}

// LookupFailed builds the verdict for a record whose lookup errored.
func LookupFailed(sourceTitle string, policy Policy) Verdict {
	return Verdict{Threshold: policy.Threshold, SourceTitle: sourceTitle, Reason: ReasonLookupError}
}

func yearsDisagree(source, candidate *int, tolerance int) bool {
	if tolerance < 0 || source == nil || candidate == nil {
		return false
	}
	d := *source - *candidate
	if d < 0 {
		d = -d
	}
	return d > tolerance
}
