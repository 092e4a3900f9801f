package xref

import (
	"github.com/sells-group/catalog-etl/internal/match"
	"github.com/sells-group/catalog-etl/internal/model"
)

// Summary counts the verdicts of a run by reason.
type Summary struct {
	Total   int                  `json:"total" yaml:"total"`
	Matched int                  `json:"matched" yaml:"matched"`
	Reasons map[match.Reason]int `json:"reasons" yaml:"reasons"`
}

// Summarize counts resolutions.
func Summarize(res []Resolution) Summary {
	s := Summary{Reasons: make(map[match.Reason]int, len(match.Reasons))}
	s.Add(res...)
	return s
}

// Add counts more resolutions into s.
func (s *Summary) Add(res ...Resolution) {
	if s.Reasons == nil {
		s.Reasons = make(map[match.Reason]int, len(match.Reasons))
	}
	for _, r := range res {
		s.Total++
		if r.Verdict.Accepted {
			s.Matched++
		}
		s.Reasons[r.Verdict.Reason]++
	}
}

// Merge adds the counts of o into s.
func (s *Summary) Merge(o Summary) {
	if s.Reasons == nil {
		s.Reasons = make(map[match.Reason]int, len(o.Reasons))
	}
	s.Total += o.Total
	s.Matched += o.Matched
	for k, v := range o.Reasons {
		s.Reasons[k] += v
	}
}

// RunResult converts the summary into the stored run result.
func (s Summary) RunResult() *model.RunResult {
	reasons := make(map[string]int, len(s.Reasons))
	for k, v := range s.Reasons {
		reasons[string(k)] = v
	}
	return &model.RunResult{Total: s.Total, Matched: s.Matched, Reasons: reasons}
}
