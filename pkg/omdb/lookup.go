package omdb

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/catalog-etl/internal/model"
	"github.com/sells-group/catalog-etl/internal/xref"
)

const notAvailable = "N/A"

// Lookup adapts a Client to xref.Lookup.
type Lookup struct {
	Client Client
}

var _ xref.Lookup = Lookup{}

// Lookup implements xref.Lookup. A title OMDB does not know yields a nil
// candidate; "N/A" rating fields become nil.
func (l Lookup) Lookup(ctx context.Context, q xref.Query) (*model.CandidateRecord, error) {
	resp, err := l.Client.Title(ctx, q.Title, q.Year, q.EntityType.OMDBType())
	if err != nil {
		return nil, err
	}
	return Candidate(resp), nil
}

// Candidate converts a title response into a candidate record, or nil when
// nothing was found.
func Candidate(resp *TitleResponse) *model.CandidateRecord {
	if !resp.Found() {
		return nil
	}
	c := &model.CandidateRecord{
		ReturnedTitle: resp.Title,
		ReturnedYear:  resp.StartYear(),
		Found:         true,
	}
	if v := strings.TrimSpace(resp.IMDBRating); v != "" && v != notAvailable {
		if d, err := decimal.NewFromString(v); err == nil {
			c.RatingValue = &d
		}
	}
	if v := strings.TrimSpace(resp.IMDBVotes); v != "" && v != notAvailable {
		c.VoteCount = &v
	}
	return c
}
