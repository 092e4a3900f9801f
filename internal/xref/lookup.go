// Package xref resolves titles from the listing catalog against the rating
// catalog and returns the accepted rating enrichment for each one.
package xref

import (
	"context"

	"github.com/sells-group/catalog-etl/internal/model"
)

// Query is what the resolver sends to the rating catalog for one record.
type Query struct {
	Title      string
	Year       *int
	EntityType model.EntityType
}

// Lookup queries the rating catalog. A nil candidate with a nil error means
// nothing was found. An error means the lookup itself failed.
type Lookup interface {
	Lookup(ctx context.Context, q Query) (*model.CandidateRecord, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, q Query) (*model.CandidateRecord, error)

// Lookup implements Lookup.
func (f LookupFunc) Lookup(ctx context.Context, q Query) (*model.CandidateRecord, error) {
	return f(ctx, q)
}

// QueryFor builds the query for a source record.
func QueryFor(rec model.SourceRecord) Query {
	return Query{Title: rec.Title, Year: rec.ReleaseYear, EntityType: rec.EntityType}
}
